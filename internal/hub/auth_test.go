package hub

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestVerifyAcceptsAWellFormedToken(t *testing.T) {
	a := NewAuthenticator("secret")
	tok := signedToken(t, "secret", Claims{UserID: "u1", UserName: "Alice"})

	claims, err := a.Verify(tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.UserID != "u1" {
		t.Fatalf("want UserID u1, got %q", claims.UserID)
	}
}

func TestVerifyRejectsWrongSigningSecret(t *testing.T) {
	a := NewAuthenticator("secret")
	tok := signedToken(t, "wrong-secret", Claims{UserID: "u1"})

	if _, err := a.Verify(tok); err == nil {
		t.Fatal("want an error for a token signed with the wrong secret")
	}
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	a := NewAuthenticator("secret")
	tok := signedToken(t, "secret", Claims{})

	if _, err := a.Verify(tok); err == nil {
		t.Fatal("want an error when the token carries no subject/userId")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	a := NewAuthenticator("secret")
	claims := Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	tok := signedToken(t, "secret", claims)

	if _, err := a.Verify(tok); err == nil {
		t.Fatal("want an error for an expired token")
	}
}
