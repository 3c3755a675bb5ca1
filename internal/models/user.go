package models

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// User is an account. PasswordHash is empty for accounts created through OAuth.
type User struct {
	ID           string     `json:"id"`
	Sequence     int        `json:"-"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	AvatarURL    string     `json:"avatarUrl,omitempty"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// NewUser creates a user with normalized email and fresh timestamps.
func NewUser(email, name string) *User {
	now := time.Now().UTC()
	return &User{
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the email address and name length.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return errors.New("email is invalid")
	}
	if len(u.Name) > 100 {
		return errors.New("name must be at most 100 characters")
	}
	return nil
}

// DisplayName returns the name, falling back to the email's local part.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// Session ties a cookie token to a user until it expires.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
