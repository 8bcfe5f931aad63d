package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredential indicates a token with a bad signature, algorithm, type or shape.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrExpired indicates a well-formed token whose lifetime has elapsed.
	ErrExpired = errors.New("credential expired")
)

// TokenType distinguishes the two credential classes.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the verified contents of a credential.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"typ"`
}

// Codec signs and verifies HS256 credentials of a single class.
type Codec struct {
	secret    []byte
	tokenType TokenType
	now       func() time.Time
}

// NewCodec constructs a codec keyed by secret for the given credential class.
func NewCodec(secret string, tokenType TokenType) *Codec {
	if secret == "" {
		panic("auth: codec secret must not be empty")
	}
	return &Codec{
		secret:    []byte(secret),
		tokenType: tokenType,
		now:       time.Now,
	}
}

// WithNowFunc allows tests to override the time source.
func (c *Codec) WithNowFunc(now func() time.Time) *Codec {
	c.now = now
	return c
}

// Issue signs a credential for subjectID that expires after ttl.
func (c *Codec) Issue(subjectID string, ttl time.Duration) (string, time.Time, error) {
	if subjectID == "" {
		return "", time.Time{}, errors.New("subject id must be provided")
	}

	now := c.now().UTC()
	expiresAt := now.Add(ttl)
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: c.tokenType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", c.tokenType, err)
	}

	return signed, expiresAt, nil
}

// Verify checks the signature, algorithm, class and lifetime of token.
func (c *Codec) Verify(token string) (Claims, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%w: %w", ErrExpired, err)
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	if !parsed.Valid || claims.TokenType != c.tokenType || claims.Subject == "" {
		return Claims{}, ErrInvalidCredential
	}

	out := Claims{Subject: claims.Subject}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
