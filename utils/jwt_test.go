package utils

import "testing"

func TestGenerateAndVerifyToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	tok, err := GenerateToken("user-1", "ADMIN")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := VerifyToken(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "ADMIN" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyTokenRejectsOtherSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "first")
	tok, err := GenerateToken("user-1", "AUDITOR")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	t.Setenv("JWT_SECRET", "second")
	if _, err := VerifyToken(tok); err == nil {
		t.Fatalf("expected verification to fail with a different secret")
	}
}

func TestGenerateTokenWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := GenerateToken("user-1", "ADMIN"); err == nil {
		t.Fatalf("expected error when JWT_SECRET is empty")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("admin123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "admin123") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("expected mismatch")
	}
}
