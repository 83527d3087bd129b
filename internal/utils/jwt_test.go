package utils

import (
	"testing"
	"time"
)

func init() {
	SetJWTSecret("test-secret-key-for-testing")
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken("u-1", "Alice", "alice@school.fr", "student", 24)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if token == "" {
		t.Error("GenerateToken() returned empty token")
	}
}

func TestGenerateToken_DifferentTokens(t *testing.T) {
	token1, _ := GenerateToken("u-1", "Alice", "alice@school.fr", "student", 24)
	token2, _ := GenerateToken("u-2", "Bob", "bob@school.fr", "admin", 24)

	if token1 == token2 {
		t.Error("different users should produce different tokens")
	}
}

func TestParseToken(t *testing.T) {
	token, _ := GenerateToken("u-42", "Alice", "alice@school.fr", "admin", 24)

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	if claims.UserID != "u-42" {
		t.Errorf("UserID = %q, expected %q", claims.UserID, "u-42")
	}
	if claims.Name != "Alice" {
		t.Errorf("Name = %q, expected %q", claims.Name, "Alice")
	}
	if claims.Email != "alice@school.fr" {
		t.Errorf("Email = %q, expected %q", claims.Email, "alice@school.fr")
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q, expected %q", claims.Role, "admin")
	}
}

func TestParseToken_InvalidToken(t *testing.T) {
	invalidTokens := []string{
		"",
		"invalid",
		"not.a.token",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature",
	}

	for _, token := range invalidTokens {
		_, err := ParseToken(token)
		if err == nil {
			t.Errorf("ParseToken(%q) should return error", token)
		}
	}
}

func TestParseToken_MissingIdentity(t *testing.T) {
	token, _ := GenerateToken("u-1", "Alice", "", "student", 24)
	if _, err := ParseToken(token); err == nil {
		t.Error("ParseToken should reject a token without email")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	SetJWTSecret("original-secret")
	token, _ := GenerateToken("u-1", "Alice", "alice@school.fr", "admin", 24)

	SetJWTSecret("different-secret")
	_, err := ParseToken(token)

	SetJWTSecret("test-secret-key-for-testing")

	if err == nil {
		t.Error("ParseToken should fail with wrong secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	token, _ := GenerateToken("u-1", "Alice", "alice@school.fr", "student", -1)
	if _, err := ParseToken(token); err == nil {
		t.Error("ParseToken should reject an expired token")
	}
}

func TestGenerateToken_Expiration(t *testing.T) {
	token, _ := GenerateToken("u-1", "Alice", "alice@school.fr", "admin", 1)
	claims, _ := ParseToken(token)

	expiresAt := claims.ExpiresAt.Time
	now := time.Now()

	if expiresAt.Before(now) {
		t.Error("token should not be expired immediately")
	}

	expectedExpiry := now.Add(1 * time.Hour)
	diff := expiresAt.Sub(expectedExpiry)
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiration time is off by more than 1 minute: %v", diff)
	}
}
