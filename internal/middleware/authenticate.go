package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/response"
)

// Cookie names carrying the session credentials.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// AccessVerifier validates access credentials.
type AccessVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// UserLoader fetches the public view of a user by id.
type UserLoader interface {
	FindPublicByID(ctx context.Context, id string) (models.User, error)
}

// Authenticate admits requests bearing a valid access credential and attaches
// the caller to the request context. The Authorization header takes
// precedence over the access cookie.
func Authenticate(verifier AccessVerifier, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := accessToken(r)
			if token == "" {
				response.Error(ctx, w, apperrors.Unauthorized("unauthorized request"))
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				message := "invalid access token"
				if errors.Is(err, auth.ErrExpired) {
					message = "access token expired"
				}
				response.Error(ctx, w, apperrors.Unauthorized(message).WithCause(err))
				return
			}

			user, err := users.FindPublicByID(ctx, claims.Subject)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					response.Error(ctx, w, apperrors.Unauthorized("invalid access token").WithCause(err))
					return
				}
				response.Error(ctx, w, err)
				return
			}

			ctx = auth.WithUser(ctx, user)
			ctx = logging.With(ctx, "user_id", user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessToken(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
