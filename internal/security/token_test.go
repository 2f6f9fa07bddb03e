package security

import (
	"errors"
	"testing"
	"time"
)

func TestSignAndParseToken(t *testing.T) {
	signed, errSign := SignToken("test-secret", time.Hour, 42, "citizen@example.com", "citizen")
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}

	claims, errParse := ParseToken("test-secret", signed)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 42 {
		t.Fatalf("expected uid=42, got %d", claims.UserID)
	}
	if claims.Email != "citizen@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.Role != "citizen" {
		t.Fatalf("unexpected role %q", claims.Role)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	signed, errSign := SignToken("secret-a", time.Hour, 1, "a@example.com", "citizen")
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}
	if _, errParse := ParseToken("secret-b", signed); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestParseTokenExpired(t *testing.T) {
	signed, errSign := SignToken("test-secret", -time.Minute, 1, "a@example.com", "citizen")
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}
	if _, errParse := ParseToken("test-secret", signed); !errors.Is(errParse, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", errParse)
	}
}

func TestSignTokenEmptySecret(t *testing.T) {
	if _, errSign := SignToken("  ", time.Hour, 1, "a@example.com", "citizen"); errSign == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, errHash := HashPassword("hunter2!")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if !CheckPassword(hash, "hunter2!") {
		t.Fatalf("expected matching password accepted")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("expected wrong password rejected")
	}
}

func TestValidateTOTPEmptyInputs(t *testing.T) {
	if ValidateTOTP("", "123456") {
		t.Fatalf("expected empty secret rejected")
	}
	if ValidateTOTP("SECRET", "") {
		t.Fatalf("expected empty code rejected")
	}
}
