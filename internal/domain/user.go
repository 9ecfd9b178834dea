// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	MaxUsernameLen = 36
	MaxEmailLen    = 254
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrEmailInvalid    = errors.New("email invalid")
)

type UserID string

type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	// EmailNotifications gates invite/reminder mail; live notifications
	// are delivered regardless.
	EmailNotifications bool `json:"emailNotifications"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(username, email string) (*User, error) {
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	email = NormalizeEmail(email)
	if !strings.Contains(email, "@") || len(email) > MaxEmailLen {
		return nil, ErrEmailInvalid
	}
	return &User{
		ID:                 UserID(uuid.NewString()),
		Username:           username,
		Email:              email,
		EmailNotifications: true,
	}, nil
}

// NormalizeEmail lowercases and trims an address so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
