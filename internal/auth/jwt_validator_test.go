package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

func buildToken(t *testing.T, issuer string, issued, notBefore, expires time.Time) jwt.Token {
	t.Helper()
	token, err := jwt.NewBuilder().
		Issuer(issuer).
		Audience([]string{"sellsi-api"}).
		Subject("user-1").
		IssuedAt(issued).
		NotBefore(notBefore).
		Expiration(expires).
		Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	return token
}

func TestTokenValidatorValidateSuccess(t *testing.T) {
	now := time.Now()
	token := buildToken(t, "sellsi", now, now, now.Add(15*time.Minute))

	validator := TokenValidator{Issuer: "sellsi", Audience: "sellsi-api", ClockSkew: time.Second, Algorithm: jwa.HS256}
	if err := validator.Validate(token, jwa.HS256, now); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestTokenValidatorIssuerMismatch(t *testing.T) {
	now := time.Now()
	token := buildToken(t, "someone-else", now, now, now.Add(time.Minute))

	validator := TokenValidator{Issuer: "sellsi", Audience: "sellsi-api", Algorithm: jwa.HS256}
	if err := validator.Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestTokenValidatorExpiry(t *testing.T) {
	now := time.Now()
	token := buildToken(t, "sellsi", now.Add(-2*time.Hour), now.Add(-2*time.Hour), now.Add(-time.Minute))

	validator := TokenValidator{Issuer: "sellsi", Audience: "sellsi-api", Algorithm: jwa.HS256}
	if err := validator.Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected expiration error")
	}
}

func TestTokenValidatorNotBefore(t *testing.T) {
	now := time.Now()
	token := buildToken(t, "sellsi", now, now.Add(5*time.Minute), now.Add(10*time.Minute))

	validator := TokenValidator{Issuer: "sellsi", Audience: "sellsi-api", Algorithm: jwa.HS256, ClockSkew: time.Second}
	if err := validator.Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected not-before validation error")
	}
}

func TestTokenValidatorAlgorithmMismatch(t *testing.T) {
	now := time.Now()
	token := buildToken(t, "sellsi", now, now, now.Add(time.Minute))

	validator := TokenValidator{Issuer: "sellsi", Audience: "sellsi-api", Algorithm: jwa.HS256}
	if err := validator.Validate(token, jwa.RS256, now); err == nil {
		t.Fatal("expected algorithm mismatch error")
	}
}
