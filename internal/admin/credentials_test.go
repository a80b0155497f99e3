package admin

import (
	"errors"
	"strings"
	"testing"
)

func TestVerifier(t *testing.T) {
	v, err := NewVerifier(HashSecret("hunter2"))
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	if err := v.Verify("hunter2"); err != nil {
		t.Fatalf("correct secret rejected: %v", err)
	}
	if err := v.Verify("hunter3"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("want ErrInvalidCredential, got %v", err)
	}
	if err := v.Verify(""); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("empty secret accepted: %v", err)
	}
}

func TestNewVerifier_BadHash(t *testing.T) {
	if _, err := NewVerifier("not-hex"); err == nil {
		t.Fatal("non-hex hash accepted")
	}
	if _, err := NewVerifier("abcd"); err == nil {
		t.Fatal("short hash accepted")
	}
}

func TestHashSecret(t *testing.T) {
	h := HashSecret("hunter2")
	if len(h) != 64 || strings.ToLower(h) != h {
		t.Fatalf("unexpected hash format: %q", h)
	}
	if h != HashSecret("hunter2") {
		t.Fatal("hash not deterministic")
	}
	if h == HashSecret("hunter3") {
		t.Fatal("distinct secrets collide")
	}
}
