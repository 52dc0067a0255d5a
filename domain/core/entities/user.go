package entities

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is an account identified by email. Accounts are created on
// first magic-link sign-in; there is no password.
type User struct {
	id         string
	email      string
	name       string
	verifiedAt time.Time
	groqAPIKey string
	createdAt  time.Time
	updatedAt  time.Time
}

// NewUser creates a user for a verified email address
func NewUser(email string) (*User, error) {
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, errors.New("invalid email address")
	}

	now := time.Now()
	return &User{
		id:        uuid.New().String(),
		email:     email,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructUser rebuilds a user from persisted state. A zero
// verifiedAt means the email has never been verified.
func ReconstructUser(id, email, name, groqAPIKey string, verifiedAt, createdAt, updatedAt time.Time) *User {
	return &User{
		id:         id,
		email:      email,
		name:       name,
		verifiedAt: verifiedAt,
		groqAPIKey: groqAPIKey,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

// ID returns the user identifier
func (u *User) ID() string { return u.id }

// Email returns the normalized email address
func (u *User) Email() string { return u.email }

// Name returns the optional display name, empty if never set
func (u *User) Name() string { return u.name }

// EmailVerified reports whether the address has completed a magic
// link sign-in
func (u *User) EmailVerified() bool { return !u.verifiedAt.IsZero() }

// VerifiedAt returns when the email was first verified, zero if never
func (u *User) VerifiedAt() time.Time { return u.verifiedAt }

// GroqAPIKey returns the user's stored provider key, empty if unset
func (u *User) GroqAPIKey() string { return u.groqAPIKey }

// HasAPIKey reports whether a provider key is stored
func (u *User) HasAPIKey() bool { return u.groqAPIKey != "" }

// CreatedAt returns the creation timestamp
func (u *User) CreatedAt() time.Time { return u.createdAt }

// UpdatedAt returns the last modification timestamp
func (u *User) UpdatedAt() time.Time { return u.updatedAt }

// SetName stores the display name
func (u *User) SetName(name string) {
	u.name = strings.TrimSpace(name)
	u.updatedAt = time.Now()
}

// MarkEmailVerified records the first successful verification. Later
// sign-ins keep the original timestamp.
func (u *User) MarkEmailVerified() {
	if !u.verifiedAt.IsZero() {
		return
	}
	u.verifiedAt = time.Now()
	u.updatedAt = u.verifiedAt
}

// SetGroqAPIKey stores or clears the user's provider key
func (u *User) SetGroqAPIKey(key string) {
	u.groqAPIKey = strings.TrimSpace(key)
	u.updatedAt = time.Now()
}

// NormalizeEmail lowercases and trims an email for use as a lookup key
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
