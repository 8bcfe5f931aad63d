package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
)

// ErrUserNotFound is returned by stores when the referenced user does not exist.
var ErrUserNotFound = apperrors.NotFound("user")

// SessionStore persists the single active refresh credential of each user.
// Implementations must make Swap atomic per user.
type SessionStore interface {
	Get(ctx context.Context, userID string) (string, error)
	Set(ctx context.Context, userID, refreshToken string) error
	Swap(ctx context.Context, userID, expected, next string) (bool, error)
	Clear(ctx context.Context, userID string) error
}

// UserStore captures the account lookups the manager depends on.
type UserStore interface {
	FindByLogin(ctx context.Context, identifier string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

// Config carries the immutable signing material and lifetimes.
type Config struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	HashCost      int
}

// Session is the result of a successful login.
type Session struct {
	Tokens models.SessionTokens
	User   models.PublicUser
}

// Manager issues, rotates and invalidates user sessions.
type Manager struct {
	access     *Codec
	refresh    *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
	hashCost   int

	users UserStore
	store SessionStore
	now   func() time.Time
}

// NewManager constructs a Manager from its configuration and stores.
func NewManager(cfg Config, users UserStore, store SessionStore) *Manager {
	if users == nil || store == nil {
		panic("auth: user and session stores must not be nil")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		panic("auth: access and refresh secrets must differ")
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	return &Manager{
		access:     NewCodec(cfg.AccessSecret, TokenTypeAccess),
		refresh:    NewCodec(cfg.RefreshSecret, TokenTypeRefresh),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		hashCost:   cfg.HashCost,
		users:      users,
		store:      store,
		now:        time.Now,
	}
}

// WithNowFunc overrides the clock used for issuing and verifying credentials.
func (m *Manager) WithNowFunc(now func() time.Time) *Manager {
	m.now = now
	m.access.WithNowFunc(now)
	m.refresh.WithNowFunc(now)
	return m
}

// AccessCodec exposes the access credential verifier for the auth gate.
func (m *Manager) AccessCodec() *Codec {
	return m.access
}

// Login authenticates by username or email and starts a new session,
// replacing any session the user already had.
func (m *Manager) Login(ctx context.Context, identifier, password string) (Session, error) {
	ctx, span := logging.StartSpan(ctx, "auth.login")
	defer span.End()
	logger := logging.FromContext(ctx)

	identifier = NormalizeIdentifier(identifier)
	if identifier == "" || password == "" {
		metrics.AuthEvent("login", "invalid_input")
		return Session{}, apperrors.InvalidInput("username or email and password are required")
	}

	user, err := m.users.FindByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("login unknown identifier")
			metrics.AuthEvent("login", "rejected")
			return Session{}, apperrors.Unauthorized("invalid credentials")
		}
		metrics.AuthEvent("login", "error")
		return Session{}, apperrors.Internal(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		metrics.AuthEvent("login", "rejected")
		return Session{}, apperrors.Unauthorized("invalid credentials")
	}

	tokens, err := m.mint(user.ID)
	if err != nil {
		metrics.AuthEvent("login", "error")
		return Session{}, apperrors.Internal(err)
	}

	if err := m.store.Set(ctx, user.ID, tokens.RefreshToken); err != nil {
		logger.Error("persist refresh token", "userId", user.ID, "error", err)
		metrics.AuthEvent("login", "error")
		return Session{}, apperrors.Internal(err)
	}

	metrics.AuthEvent("login", "success")
	return Session{Tokens: tokens, User: user.Public()}, nil
}

// Refresh rotates the presented refresh credential into a new pair. The
// presented value becomes unusable whether or not the caller receives the
// response.
func (m *Manager) Refresh(ctx context.Context, presented string) (models.SessionTokens, error) {
	ctx, span := logging.StartSpan(ctx, "auth.refresh")
	defer span.End()
	logger := logging.FromContext(ctx)

	presented = strings.TrimSpace(presented)
	if presented == "" {
		metrics.AuthEvent("refresh", "rejected")
		return models.SessionTokens{}, apperrors.Unauthorized("refresh token is required")
	}

	claims, err := m.refresh.Verify(presented)
	if err != nil {
		logger.Warn("refresh token verification failed", "error", err)
		metrics.AuthEvent("refresh", "invalid")
		return models.SessionTokens{}, apperrors.InvalidCredential("invalid or expired refresh token").WithCause(err)
	}

	stored, err := m.store.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			metrics.AuthEvent("refresh", "rejected")
			return models.SessionTokens{}, apperrors.NotFound("user").WithCause(err)
		}
		metrics.AuthEvent("refresh", "error")
		return models.SessionTokens{}, apperrors.Internal(err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		logger.Warn("refresh token reuse detected", "userId", claims.Subject)
		metrics.AuthEvent("refresh", "reused")
		return models.SessionTokens{}, apperrors.Unauthorized("refresh token is expired or used")
	}

	tokens, err := m.mint(claims.Subject)
	if err != nil {
		metrics.AuthEvent("refresh", "error")
		return models.SessionTokens{}, apperrors.Internal(err)
	}

	swapped, err := m.store.Swap(ctx, claims.Subject, presented, tokens.RefreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			metrics.AuthEvent("refresh", "rejected")
			return models.SessionTokens{}, apperrors.NotFound("user").WithCause(err)
		}
		logger.Error("rotate refresh token", "userId", claims.Subject, "error", err)
		metrics.AuthEvent("refresh", "error")
		return models.SessionTokens{}, apperrors.Internal(err)
	}
	if !swapped {
		logger.Warn("refresh token rotated concurrently", "userId", claims.Subject)
		metrics.AuthEvent("refresh", "reused")
		return models.SessionTokens{}, apperrors.Unauthorized("refresh token is expired or used")
	}

	metrics.AuthEvent("refresh", "success")
	return tokens, nil
}

// Logout clears the stored refresh credential. Calling it repeatedly is safe.
func (m *Manager) Logout(ctx context.Context, userID string) error {
	if err := m.store.Clear(ctx, userID); err != nil {
		metrics.AuthEvent("logout", "error")
		return apperrors.Internal(err)
	}
	metrics.AuthEvent("logout", "success")
	return nil
}

// ChangePassword replaces the password hash after checking the current one.
// Existing sessions stay valid.
func (m *Manager) ChangePassword(ctx context.Context, userID, current, next, confirmation string) error {
	logger := logging.FromContext(ctx)

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user").WithCause(err)
		}
		return apperrors.Internal(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		logger.Warn("change password mismatch", "userId", userID)
		metrics.AuthEvent("change_password", "rejected")
		return apperrors.Unauthorized("current password is incorrect")
	}

	if next == "" || next != confirmation {
		metrics.AuthEvent("change_password", "invalid_input")
		return apperrors.InvalidInput("new password and confirmation do not match")
	}

	hash, err := m.HashPassword(next)
	if err != nil {
		return apperrors.Internal(err)
	}

	if err := m.users.UpdatePassword(ctx, userID, hash, m.now().UTC()); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("user").WithCause(err)
		}
		return apperrors.Internal(err)
	}

	metrics.AuthEvent("change_password", "success")
	return nil
}

// HashPassword hashes a plaintext password with the configured bcrypt cost.
func (m *Manager) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (m *Manager) mint(userID string) (models.SessionTokens, error) {
	accessToken, accessExpiresAt, err := m.access.Issue(userID, m.accessTTL)
	if err != nil {
		return models.SessionTokens{}, err
	}

	refreshToken, refreshExpiresAt, err := m.refresh.Issue(userID, m.refreshTTL)
	if err != nil {
		return models.SessionTokens{}, err
	}

	return models.SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// NormalizeIdentifier trims and lower-cases a username or email.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
