package domain

import "time"

// Identity is an account that can authenticate. Email uniqueness and lookup
// are case-insensitive; the canonical form is lowercased.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	Active       bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
