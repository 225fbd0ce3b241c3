package domain

import "time"

// ResetToken is a single-use password-reset credential. As with refresh
// tokens, only the hash of the secret is persisted.
type ResetToken struct {
	ID         string
	IdentityID string
	TokenHash  string
	Consumed   bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}
