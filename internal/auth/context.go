package auth

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

type ctxKey struct{}

// WithUser attaches the authenticated caller to ctx.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFromContext returns the caller attached by the auth gate.
func UserFromContext(ctx context.Context) (models.User, bool) {
	if ctx == nil {
		return models.User{}, false
	}
	user, ok := ctx.Value(ctxKey{}).(models.User)
	return user, ok
}
