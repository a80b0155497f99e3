// Package admin exposes operator overrides: force release, dispute
// resolution, and blocklist management. Every override is credential
// gated and lands in an append-only audit log.
package admin

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidCredential indicates a wrong or missing admin secret.
var ErrInvalidCredential = errors.New("invalid admin credential")

// Verifier checks admin secrets against a stored SHA-256 hash. The
// raw secret is never persisted.
type Verifier struct {
	hash []byte
}

// NewVerifier creates a verifier from a hex-encoded SHA-256 hash.
func NewVerifier(hexHash string) (*Verifier, error) {
	h, err := hex.DecodeString(hexHash)
	if err != nil {
		return nil, fmt.Errorf("admin secret hash is not valid hex: %w", err)
	}
	if len(h) != sha256.Size {
		return nil, fmt.Errorf("admin secret hash must be %d bytes, got %d", sha256.Size, len(h))
	}
	return &Verifier{hash: h}, nil
}

// Verify checks a presented secret in constant time.
func (v *Verifier) Verify(secret string) error {
	if secret == "" {
		return ErrInvalidCredential
	}
	sum := sha256.Sum256([]byte(secret))
	if subtle.ConstantTimeCompare(sum[:], v.hash) != 1 {
		return ErrInvalidCredential
	}
	return nil
}

// HashSecret returns the hex SHA-256 of a secret, for provisioning.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
