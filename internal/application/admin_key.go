package application

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidAdminKeyHash is returned when the configured hash cannot be parsed.
var ErrInvalidAdminKeyHash = errors.New("application: invalid admin key hash")

// HashAdminKey returns the bcrypt hash stored in configuration for key.
func HashAdminKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if len(key) < 12 {
		return "", fmt.Errorf("admin key must be at least 12 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAdminKey compares key against hash, returning ErrUnauthorized on mismatch.
func VerifyAdminKey(hash, key string) error {
	if hash == "" || key == "" {
		return ErrUnauthorized
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrUnauthorized
	default:
		return fmt.Errorf("%w: %v", ErrInvalidAdminKeyHash, err)
	}
}
