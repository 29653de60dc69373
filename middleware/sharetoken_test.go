package middleware

import (
	"testing"
	"time"
)

func TestShareToken_RoundTrip(t *testing.T) {
	secret := []byte("secret-a")
	token, err := NewShareToken(secret, "d1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	designID, err := ParseShareToken(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if designID != "d1" {
		t.Errorf("design id = %q, want d1", designID)
	}
}

func TestShareToken_RejectsWrongSecret(t *testing.T) {
	token, err := NewShareToken([]byte("secret-a"), "d1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseShareToken([]byte("secret-b"), token); err == nil {
		t.Error("token signed with another secret should not parse")
	}
}

func TestShareToken_RejectsExpired(t *testing.T) {
	token, err := NewShareToken([]byte("secret-a"), "d1", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseShareToken([]byte("secret-a"), token); err == nil {
		t.Error("expired token should not parse")
	}
}

func TestShareToken_RejectsGarbage(t *testing.T) {
	if _, err := ParseShareToken([]byte("secret-a"), "not-a-token"); err == nil {
		t.Error("garbage token should not parse")
	}
}
