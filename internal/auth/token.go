package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const minTokenLength = 16

// ValidateToken checks minimal API token requirements before hashing.
func ValidateToken(token string) error {
	if len(token) < minTokenLength {
		return fmt.Errorf("token must be at least %d characters", minTokenLength)
	}
	return nil
}

// HashToken hashes one API token for storage in config. Keeping only the
// hash means a leaked config file does not leak the token.
func HashToken(token string) (string, error) {
	if err := ValidateToken(token); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyToken verifies a presented token against either a bcrypt hash or a
// plaintext reference value. Hashes are recognized by their bcrypt prefix;
// plaintext comparison is constant-time.
func VerifyToken(reference, candidate string) bool {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return false
	}
	if strings.HasPrefix(reference, "$2a$") || strings.HasPrefix(reference, "$2b$") || strings.HasPrefix(reference, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(reference), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(reference), []byte(candidate)) == 1
}
