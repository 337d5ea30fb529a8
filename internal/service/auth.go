package service

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidKey   = errors.New("invalid api key")
	ErrMissingKey   = errors.New("api key not configured")
	ErrWeakKey      = errors.New("api key does not meet requirements")
	ErrMalformedKey = errors.New("api key hash is not a bcrypt hash")
)

const (
	minKeyLength = 16
	// bcrypt ignores input beyond this many bytes.
	maxKeyLength = 72
)

func validateKeyStrength(key string) error {
	if len(key) < minKeyLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakKey, minKeyLength)
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("%w: must be at most %d bytes", ErrWeakKey, maxKeyLength)
	}
	return nil
}

// HashKey returns the bcrypt hash stored in API_KEY_HASH.
func HashKey(key string) (string, error) {
	if err := validateKeyStrength(key); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// AuthService checks the shared API key. Only the bcrypt hash is kept in
// memory.
type AuthService struct {
	hash []byte
}

// NewAuthService prefers keyHash when both are set.
func NewAuthService(key, keyHash string) (*AuthService, error) {
	if keyHash != "" {
		if _, err := bcrypt.Cost([]byte(keyHash)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
		}
		return &AuthService{hash: []byte(keyHash)}, nil
	}
	if key == "" {
		return nil, ErrMissingKey
	}

	hash, err := HashKey(key)
	if err != nil {
		return nil, err
	}
	return &AuthService{hash: []byte(hash)}, nil
}

func (s *AuthService) Verify(key string) error {
	if key == "" || len(key) > maxKeyLength {
		return ErrInvalidKey
	}
	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(key)); err != nil {
		return ErrInvalidKey
	}
	return nil
}
