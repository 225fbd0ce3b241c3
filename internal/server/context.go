package server

import "context"

type contextKey struct{ name string }

var (
	identityIDKey = contextKey{"identity_id"}
	sessionIDKey  = contextKey{"session_id"}
	emailKey      = contextKey{"email"}
)

// WithIdentity returns a context with identity_id, email and session_id set.
// Handlers read these via GetIdentityID, GetEmail, GetSessionID.
func WithIdentity(ctx context.Context, identityID, email, sessionID string) context.Context {
	ctx = context.WithValue(ctx, identityIDKey, identityID)
	ctx = context.WithValue(ctx, emailKey, email)
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return ctx
}

// GetIdentityID returns the identity_id from context and true if set.
func GetIdentityID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(identityIDKey).(string)
	return v, ok
}

// GetEmail returns the email from context and true if set.
func GetEmail(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(emailKey).(string)
	return v, ok
}

// GetSessionID returns the session_id from context and true if set.
func GetSessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok
}
