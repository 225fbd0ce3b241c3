package domain

import "time"

// RefreshToken is the stored record for an opaque refresh token. Only the
// SHA-256 hash of the secret is persisted; the raw token exists solely in
// the client's hands between issue and use.
type RefreshToken struct {
	ID         string
	IdentityID string
	SessionID  string
	TokenHash  string
	Revoked    bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

// Usable reports whether the token can still be redeemed at the given time.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
