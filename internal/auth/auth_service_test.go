package auth

import (
	"testing"
	"time"
)

func newTestService(t *testing.T, secret string) *AuthService {
	t.Helper()
	svc, err := NewAuthService(secret, 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return svc
}

func TestGenerateAndValidateTokenPair(t *testing.T) {
	svc := newTestService(t, "unit-test-secret")

	pair, err := svc.GenerateTokenPair(42, "user@example.com", "USER")
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	access, err := svc.ValidateToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if access.UserID != 42 || access.Email != "user@example.com" || access.TokenType != "access" {
		t.Fatalf("unexpected access claims %+v", access)
	}

	refresh, err := svc.ValidateToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("validate refresh token: %v", err)
	}
	if refresh.TokenType != "refresh" {
		t.Fatalf("expected refresh type got %q", refresh.TokenType)
	}
	if refresh.ID == "" {
		t.Fatalf("expected refresh token jti")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := newTestService(t, "secret-one")
	verifier := newTestService(t, "secret-two")

	pair, err := issuer.GenerateTokenPair(1, "user@example.com", "USER")
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	if _, err := verifier.ValidateToken(pair.AccessToken); err == nil {
		t.Fatalf("expected validation failure for wrong secret")
	}
}

func TestNewAuthServiceRequiresSecret(t *testing.T) {
	if _, err := NewAuthService("", time.Minute, time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	svc := newTestService(t, "unit-test-secret")

	hash, err := svc.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !svc.CheckPasswordHash("hunter2", hash) {
		t.Fatalf("expected matching password to verify")
	}
	if svc.CheckPasswordHash("wrong", hash) {
		t.Fatalf("expected mismatched password to fail")
	}
}
