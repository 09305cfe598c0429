package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyToken(t *testing.T) {
	token := "correct-horse-battery-staple"
	hash, err := HashToken(token)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Fatalf("expected bcrypt hash, got %q", hash)
	}
	if !VerifyToken(hash, token) {
		t.Fatal("expected hash to verify")
	}
	if VerifyToken(hash, "wrong-token-value-here") {
		t.Fatal("expected wrong token to fail")
	}
}

func TestHashTokenRejectsShortTokens(t *testing.T) {
	if _, err := HashToken("short"); err == nil {
		t.Fatal("expected short token to be rejected")
	}
}

func TestVerifyTokenPlaintextFallback(t *testing.T) {
	if !VerifyToken("plain-reference-token", "plain-reference-token") {
		t.Fatal("expected plaintext match")
	}
	if VerifyToken("plain-reference-token", "other") {
		t.Fatal("expected plaintext mismatch to fail")
	}
	if VerifyToken("", "anything") {
		t.Fatal("empty reference must never verify")
	}
}
