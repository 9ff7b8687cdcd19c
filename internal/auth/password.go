package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost targets roughly 100ms per hash (§4.3).
const bcryptCost = 10

// HashPassword salts and hashes a plaintext password. The caller must run
// password-policy validation (httpserver's "password" validator tag)
// before calling this — HashPassword does not re-check policy.
func HashPassword(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(digest), nil
}

// VerifyPassword reports whether plaintext matches digest. bcrypt's
// comparison runs in time independent of the plaintext's content (§4.3).
func VerifyPassword(digest, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
