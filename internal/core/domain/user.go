package domain

import "time"

// MinPasswordLength is the shortest plaintext password accepted at registration.
const MinPasswordLength = 3

// MaxPasswordBytes is the longest password, in bytes, that bcrypt can hash.
const MaxPasswordBytes = 72

// User models a registered account holder.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUserInput is the raw registration payload. Password and
// PasswordConfirmation are only read during validation and never stored.
type NewUserInput struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
}
