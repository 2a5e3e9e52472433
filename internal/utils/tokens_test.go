package utils

import (
	"encoding/base64"
	"regexp"
	"testing"
)

func TestNewSessionToken_RoundTrip(t *testing.T) {
	token, err := NewSessionToken(32)
	if err != nil {
		t.Fatalf("NewSessionToken error: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("token is not url-safe base64: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("want 32 random bytes, got %d", len(raw))
	}
}

func TestNewSessionToken_DefaultSize(t *testing.T) {
	token, err := NewSessionToken(0)
	if err != nil {
		t.Fatalf("NewSessionToken error: %v", err)
	}
	// 32 байта → 43 символа base64 без паддинга
	if len(token) != 43 {
		t.Fatalf("want 43 chars, got %d (%q)", len(token), token)
	}
}

func TestNewSessionToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := NewSessionToken(32)
		if err != nil {
			t.Fatalf("NewSessionToken error: %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token after %d iterations", i)
		}
		seen[token] = true
	}
}

func TestNewVerificationCode_Format(t *testing.T) {
	re := regexp.MustCompile(`^[A-Za-z0-9]{6}$`)
	for i := 0; i < 50; i++ {
		code, err := NewVerificationCode(6)
		if err != nil {
			t.Fatalf("NewVerificationCode error: %v", err)
		}
		if !re.MatchString(code) {
			t.Fatalf("code %q does not match [A-Za-z0-9]{6}", code)
		}
	}
}

func TestNewVerificationCode_DefaultLength(t *testing.T) {
	code, err := NewVerificationCode(0)
	if err != nil {
		t.Fatalf("NewVerificationCode error: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("want 6 chars, got %d (%q)", len(code), code)
	}
}
