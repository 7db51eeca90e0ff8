package utils

import (
	"errors"
	"strings"
	"testing"

	"github.com/huangang/issuetrack/pkg/response"
)

func TestHashPassword_StoredFormIsNotPlaintext(t *testing.T) {
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "secret123" || strings.Contains(hash, "secret123") {
		t.Error("stored hash must not contain the plaintext password")
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("expected a bcrypt hash, got %q", hash)
	}

	other, _ := HashPassword("secret123")
	if other == hash {
		t.Error("two accounts with the same password should not share a hash")
	}
}

func TestHashPassword_LengthLimit(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"at limit", strings.Repeat("a", MaxPasswordBytes), false},
		{"one byte over", strings.Repeat("a", MaxPasswordBytes+1), true},
		// 25 runes but 75 bytes
		{"multibyte over", strings.Repeat("密", 25), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HashPassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HashPassword() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, response.ErrValidation) {
				t.Errorf("expected a validation failure, got %v", err)
			}
		})
	}
}

func TestCheckPassword_LoginAttempts(t *testing.T) {
	hash, err := HashPassword("admin123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		expected bool
	}{
		{"correct password", "admin123", hash, true},
		{"wrong password", "admin124", hash, false},
		{"case sensitive", "ADMIN123", hash, false},
		{"empty password", "", hash, false},
		{"account without hash", "admin123", "", false},
		{"corrupt hash", "admin123", "not-a-bcrypt-hash", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.password, tt.hash); got != tt.expected {
				t.Errorf("CheckPassword(%q) = %v, expected %v", tt.password, got, tt.expected)
			}
		})
	}
}
