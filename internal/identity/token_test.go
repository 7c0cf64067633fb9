package identity

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	defer ResetSecretForTests()

	token, err := GenerateToken("user-1", true, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if !claims.Staff {
		t.Fatal("staff claim lost")
	}
}

func TestTokenRejectsExpiredAndGarbage(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	defer ResetSecretForTests()

	if _, err := GenerateToken("", false, time.Minute); err == nil {
		t.Fatal("expected error for empty user id")
	}
	if _, err := GenerateToken("user-1", false, 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
	if _, err := ParseAndValidate(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseAndValidate("aaa.bbb.ccc"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv(secretEnvVariable, "")
	ResetSecretForTests()
	defer ResetSecretForTests()

	if _, err := GenerateToken("user-1", false, time.Minute); !errors.Is(err, errMissingSecret) {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}
