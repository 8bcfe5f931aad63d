package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesKindSentinel(t *testing.T) {
	cause := errors.New("boom")
	err := Unauthorized("stale refresh token").WithCause(cause)

	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.False(t, errors.Is(err, ErrForbidden))
	assert.True(t, errors.Is(err, cause))
}

func TestFromWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("load user: %w", NotFound("user"))

	got := From(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, KindNotFound, got.Kind)
	assert.Equal(t, "user not found", got.Message)
}

func TestFromUnknownErrorIsInternal(t *testing.T) {
	got := From(errors.New("connection reset"))

	assert.Equal(t, KindInternal, got.Kind)
	assert.Equal(t, "an internal error occurred", got.Message)
	assert.Equal(t, http.StatusInternalServerError, got.Status())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{InvalidInput("bad"), http.StatusBadRequest},
		{Unauthorized("no"), http.StatusUnauthorized},
		{InvalidCredential("forged"), http.StatusUnauthorized},
		{Forbidden("not yours"), http.StatusForbidden},
		{NotFound("video"), http.StatusNotFound},
		{Conflict("taken"), http.StatusConflict},
		{TooManyRequests("slow down"), http.StatusTooManyRequests},
		{Unavailable("db down"), http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestFromNil(t *testing.T) {
	assert.Nil(t, From(nil))
}
