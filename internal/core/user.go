package core

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

const (
	minPasswordLength = 6
	// bcrypt only hashes the first 72 bytes.
	maxPasswordBytes = 72
)

var (
	ErrEmptyName        = errors.New("name is required")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
)

// User is a registered account. Name doubles as the expense storage key.
type User struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// NormalizeEmail lowercases and trims an address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateRegistration checks the raw registration form values.
func ValidateRegistration(name, email, password string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}
