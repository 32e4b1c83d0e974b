package hub

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned when the handshake token is missing,
// malformed, expired, or signed with the wrong key.
var ErrUnauthorized = errors.New("hub: unauthorized")

// Claims is the handshake token payload.
type Claims struct {
	UserID   string `json:"sub"`
	UserName string `json:"name"`
	jwt.RegisteredClaims
}

// Authenticator verifies the handshake JWT against a shared secret with
// a bounded clock-skew leeway.
type Authenticator struct {
	secret []byte
	leeway time.Duration
}

// NewAuthenticator returns an Authenticator using secret for HMAC
// verification.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), leeway: 30 * time.Second}
}

// Verify parses and validates tokenString, returning the authenticated
// identity on success.
func (a *Authenticator) Verify(tokenString string) (Claims, error) {
	var claims Claims

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrUnauthorized, t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithLeeway(a.leeway))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !token.Valid || claims.UserID == "" {
		return Claims{}, ErrUnauthorized
	}

	return claims, nil
}
