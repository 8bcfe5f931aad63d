package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
)

// AuthHandler implements registration and the session lifecycle endpoints.
type AuthHandler struct {
	Users        UserStore
	Sessions     SessionService
	CookieSecure bool
	NowFunc      func() time.Time
}

// Register handles POST /api/v1/users/register.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req registerRequest
	if err := decodeAndValidate(w, r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}

	username := auth.NormalizeIdentifier(req.Username)
	email := auth.NormalizeIdentifier(req.Email)

	exists, err := h.Users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if exists {
		logger.Warn("register existing account", "username", username)
		respondError(ctx, w, apperrors.Conflict("user with email or username already exists"))
		return
	}

	hash, err := h.Sessions.HashPassword(req.Password)
	if err != nil {
		respondError(ctx, w, apperrors.Internal(err))
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		FullName:  req.FullName,
		Password:  hash,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			respondError(ctx, w, apperrors.Conflict("user with email or username already exists"))
			return
		}
		respondError(ctx, w, err)
		return
	}

	logger.Info("user registered", "userId", user.ID)
	respondJSON(ctx, w, http.StatusCreated, user.Public(), "user registered successfully")
}

// Login handles POST /api/v1/users/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeAndValidate(w, r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}

	identifier := req.Email
	if strings.TrimSpace(identifier) == "" {
		identifier = req.Username
	}

	session, err := h.Sessions.Login(ctx, identifier, req.Password)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	h.setSessionCookies(w, session.Tokens)
	respondJSON(ctx, w, http.StatusOK, loginResponse{User: session.User, SessionTokens: session.Tokens}, "user logged in successfully")
}

// Refresh handles POST /api/v1/users/refresh-token. The credential is read
// from the refresh cookie first and from the body otherwise.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	presented := ""
	if cookie, err := r.Cookie(middleware.RefreshTokenCookie); err == nil {
		presented = cookie.Value
	}
	if strings.TrimSpace(presented) == "" {
		var req refreshRequest
		if err := decodeAndValidate(w, r, &req, true); err != nil {
			respondError(ctx, w, err)
			return
		}
		presented = req.RefreshToken
	}
	if strings.TrimSpace(presented) == "" {
		respondError(ctx, w, apperrors.Unauthorized("unauthorized request"))
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, presented)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	h.setSessionCookies(w, tokens)
	respondJSON(ctx, w, http.StatusOK, tokens, "access token refreshed")
}

// Logout handles POST /api/v1/users/logout.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := callerFrom(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := h.Sessions.Logout(ctx, user.ID); err != nil {
		respondError(ctx, w, err)
		return
	}

	h.clearSessionCookies(w)
	respondJSON(ctx, w, http.StatusOK, struct{}{}, "user logged out")
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := callerFrom(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	var req changePasswordRequest
	if err := decodeAndValidate(w, r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := h.Sessions.ChangePassword(ctx, user.ID, req.OldPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, struct{}{}, "password changed successfully")
}

// CurrentUser handles GET /api/v1/users/current-user.
func (h AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := callerFrom(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, user.Public(), "current user fetched successfully")
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"fullName" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (r *registerRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required_without=Username"`
	Username string `json:"username" validate:"required_without=Email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type loginResponse struct {
	User models.PublicUser `json:"user"`
	models.SessionTokens
}

func (h AuthHandler) setSessionCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	now := h.now()
	http.SetCookie(w, h.cookie(middleware.AccessTokenCookie, tokens.AccessToken, tokens.AccessExpiresAt.Sub(now)))
	http.SetCookie(w, h.cookie(middleware.RefreshTokenCookie, tokens.RefreshToken, tokens.RefreshExpiresAt.Sub(now)))
}

func (h AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		c := h.cookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (h AuthHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
