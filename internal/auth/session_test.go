package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/store"
)

func TestNewSessionManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewSessionManager("too-short", time.Hour); err == nil {
		t.Fatal("expected an error for a secret under 32 bytes")
	}
}

func TestIssueAndValidateTokenRoundTrip(t *testing.T) {
	sm, err := NewSessionManager(GenerateDevSecret(), time.Hour)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}

	roles := []store.TenantRole{{TenantID: uuid.New(), Role: "owner"}}
	token, jti, err := sm.IssueToken("user-1", "user@example.com", roles)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if token == "" || jti == "" {
		t.Fatal("expected a non-empty token and jti")
	}

	claims, exp, err := sm.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("subject = %q, want %q", claims.Subject, "user-1")
	}
	if claims.Email != "user@example.com" {
		t.Errorf("email = %q, want %q", claims.Email, "user@example.com")
	}
	if claims.TokenID != jti {
		t.Errorf("jti = %q, want %q", claims.TokenID, jti)
	}
	if exp.Before(time.Now()) {
		t.Error("expected expiry to be in the future")
	}
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	sm1, err := NewSessionManager(GenerateDevSecret(), time.Hour)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	sm2, err := NewSessionManager(GenerateDevSecret(), time.Hour)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}

	token, _, err := sm1.IssueToken("user-1", "user@example.com", nil)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, _, err := sm2.ValidateToken(token); err == nil {
		t.Fatal("expected validation with a different signing key to fail")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	sm, err := NewSessionManager(GenerateDevSecret(), -time.Hour)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}

	token, _, err := sm.IssueToken("user-1", "user@example.com", nil)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, _, err := sm.ValidateToken(token); err == nil {
		t.Fatal("expected validation of an already-expired token to fail")
	}
}

func TestGenerateDevSecretLength(t *testing.T) {
	secret := GenerateDevSecret()
	if len(secret) < 32 {
		t.Errorf("dev secret length = %d, want >= 32", len(secret))
	}
	if strings.TrimSpace(secret) != secret {
		t.Error("dev secret should not contain leading/trailing whitespace")
	}
}
