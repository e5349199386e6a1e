// Package apikey verifies admin API keys against a configured bcrypt hash.
// The plaintext key is never stored; operators generate the hash once and
// put it in the environment.
package apikey

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Verification errors.
var (
	// ErrMissingKey is returned when no key was supplied.
	ErrMissingKey = errors.New("apikey: missing key")

	// ErrInvalidKey is returned when the supplied key does not match.
	ErrInvalidKey = errors.New("apikey: invalid key")

	// ErrNotConfigured is returned when no hash is configured; verification
	// must fail closed rather than let every key through.
	ErrNotConfigured = errors.New("apikey: no key hash configured")
)

// Verifier checks presented API keys against a stored bcrypt hash.
type Verifier struct {
	hash []byte
}

// NewVerifier creates a Verifier from a bcrypt hash string.
// An empty hash is allowed at construction time so the service can start
// without admin endpoints configured; Verify then always fails.
func NewVerifier(bcryptHash string) (*Verifier, error) {
	hash := strings.TrimSpace(bcryptHash)
	if hash == "" {
		return &Verifier{}, nil
	}
	if !strings.HasPrefix(hash, "$2a$") && !strings.HasPrefix(hash, "$2b$") && !strings.HasPrefix(hash, "$2y$") {
		return nil, errors.New("apikey: hash is not a bcrypt hash")
	}
	return &Verifier{hash: []byte(hash)}, nil
}

// Configured reports whether a hash is present.
func (v *Verifier) Configured() bool {
	return len(v.hash) > 0
}

// Verify checks the presented key. It returns nil only when the key
// matches the configured hash.
func (v *Verifier) Verify(key string) error {
	if key == "" {
		return ErrMissingKey
	}
	if !v.Configured() {
		return ErrNotConfigured
	}

	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(key)); err != nil {
		return ErrInvalidKey
	}
	return nil
}

// HashKey produces a bcrypt hash for a plaintext key. Used by operators
// (and tests) to generate the configured hash.
func HashKey(key string) (string, error) {
	if key == "" {
		return "", ErrMissingKey
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Equal compares two plaintext tokens in constant time. Used for
// non-secret identifiers where bcrypt is overkill.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
