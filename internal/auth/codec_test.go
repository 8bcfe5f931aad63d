package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCodecIssueAndVerify(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := NewCodec("access-secret", TokenTypeAccess).WithNowFunc(fixedClock(now))

	token, expiresAt, err := codec.Issue("user-1", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), expiresAt)

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.True(t, claims.IssuedAt.Equal(now))
	assert.True(t, claims.ExpiresAt.Equal(expiresAt))
}

func TestCodecTokensAreDistinctWithinTheSameSecond(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := NewCodec("refresh-secret", TokenTypeRefresh).WithNowFunc(fixedClock(now))

	first, _, err := codec.Issue("user-1", time.Hour)
	require.NoError(t, err)
	second, _, err := codec.Issue("user-1", time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCodecVerifyExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := NewCodec("access-secret", TokenTypeAccess).WithNowFunc(fixedClock(now))

	token, _, err := codec.Issue("user-1", time.Minute)
	require.NoError(t, err)

	codec.WithNowFunc(fixedClock(now.Add(2 * time.Minute)))
	_, err = codec.Verify(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExpired))
	assert.False(t, errors.Is(err, ErrInvalidCredential))
}

func TestCodecVerifyRejects(t *testing.T) {
	now := time.Now().UTC()
	access := NewCodec("access-secret", TokenTypeAccess)
	refresh := NewCodec("refresh-secret", TokenTypeRefresh)

	accessToken, _, err := access.Issue("user-1", time.Hour)
	require.NoError(t, err)

	sameSecretOtherType := NewCodec("access-secret", TokenTypeRefresh)
	crossType, _, err := sameSecretOtherType.Issue("user-1", time.Hour)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		TokenType: TokenTypeAccess,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		codec *Codec
		token string
	}{
		{name: "wrong secret", codec: refresh, token: accessToken},
		{name: "wrong token type", codec: access, token: crossType},
		{name: "alg none", codec: access, token: unsigned},
		{name: "garbage", codec: access, token: "not-a-token"},
		{name: "tampered", codec: access, token: tamper(accessToken)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.codec.Verify(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCredential))
			assert.False(t, errors.Is(err, ErrExpired))
		})
	}
}

func tamper(token string) string {
	b := []byte(token)
	i := strings.LastIndex(token, ".") + 5
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

func TestCodecIssueRequiresSubject(t *testing.T) {
	_, _, err := NewCodec("secret", TokenTypeAccess).Issue("", time.Minute)
	assert.Error(t, err)
}
