package domain

import "time"

// Session represents one authenticated device/browser lifetime. It is paired
// 1:1 with a refresh token and is the liveness anchor for access tokens: an
// access token's jti must resolve to an active session or the token is
// rejected regardless of its own exp.
type Session struct {
	ID             string
	IdentityID     string
	RefreshTokenID string
	UserAgent      string
	IPAddress      string
	Active         bool
	CreatedAt      time.Time
	LastActiveAt   time.Time
	ExpiresAt      time.Time
}

// Live reports whether the session is active and unexpired at the given time.
func (s *Session) Live(now time.Time) bool {
	return s != nil && s.Active && now.Before(s.ExpiresAt)
}
