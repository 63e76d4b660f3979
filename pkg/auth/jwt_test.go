package auth

import (
	"testing"
	"time"
)

func TestNewTokenIssuer_RequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer("", time.Hour); err == nil {
		t.Fatal("Expected error for empty secret")
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("Failed to create issuer: %v", err)
	}

	token, err := issuer.IssueToken("alice")
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	userID, err := issuer.VerifyToken(token)
	if err != nil {
		t.Fatalf("Failed to verify token: %v", err)
	}
	if userID != "alice" {
		t.Errorf("Expected alice, got %s", userID)
	}
}

func TestTokenIssuer_RejectsWrongSecret(t *testing.T) {
	issuer, _ := NewTokenIssuer("secret-a", time.Hour)
	other, _ := NewTokenIssuer("secret-b", time.Hour)

	token, _ := issuer.IssueToken("alice")
	if _, err := other.VerifyToken(token); err == nil {
		t.Fatal("Expected verification to fail with wrong secret")
	}
}

func TestTokenIssuer_RejectsExpiredToken(t *testing.T) {
	issuer, _ := NewTokenIssuer("test-secret", time.Hour)
	issuer.TokenExpiry = -time.Minute

	token, _ := issuer.IssueToken("alice")
	if _, err := issuer.VerifyToken(token); err == nil {
		t.Fatal("Expected verification to fail for expired token")
	}
}

func TestTokenIssuer_RejectsGarbage(t *testing.T) {
	issuer, _ := NewTokenIssuer("test-secret", time.Hour)
	if _, err := issuer.VerifyToken("not.a.token"); err == nil {
		t.Fatal("Expected verification to fail for garbage input")
	}
}

func TestExtractToken(t *testing.T) {
	token, err := ExtractToken("Bearer abc123")
	if err != nil {
		t.Fatalf("Failed to extract token: %v", err)
	}
	if token != "abc123" {
		t.Errorf("Expected abc123, got %s", token)
	}

	if _, err := ExtractToken(""); err == nil {
		t.Error("Expected error for empty header")
	}
	if _, err := ExtractToken("abc123"); err == nil {
		t.Error("Expected error for missing Bearer prefix")
	}
	if _, err := ExtractToken("Bearer "); err == nil {
		t.Error("Expected error for empty token")
	}
}
