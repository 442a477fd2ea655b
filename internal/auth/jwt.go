// Package auth implements the session credential issuer. Credentials are
// HS256 JWTs carrying only subject and validity window; the signing secret is
// the application secret and never leaves this package.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token fails signature or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// CredentialIssuer mints and validates session tokens. The core only needs
// subject plus validity window; anything richer belongs to the caller.
type CredentialIssuer interface {
	Mint(subject string, issuedAt, expiresAt time.Time) (string, error)
}

// JWTIssuer issues HS256-signed JWTs.
type JWTIssuer struct {
	Secret []byte
	Issuer string
}

// NewJWTIssuer constructs a JWTIssuer for the given secret.
func NewJWTIssuer(secret, issuer string) *JWTIssuer {
	return &JWTIssuer{Secret: []byte(secret), Issuer: issuer}
}

// Mint signs a token for subject valid over [issuedAt, expiresAt).
func (j *JWTIssuer) Mint(subject string, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    j.Issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

// Validate parses a token and returns its subject. Tokens signed with any
// method other than HS256, or past their expiry, are rejected.
func (j *JWTIssuer) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, ErrInvalidToken
			}
			return j.Secret, nil
		},
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
