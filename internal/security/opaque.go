package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// opaqueTokenBytes is the entropy of refresh and reset tokens. 32 bytes keeps
// long-lived credentials free of embedded claims while staying unguessable.
const opaqueTokenBytes = 32

// NewOpaqueToken returns a high-entropy random token string (256 bits,
// base64url without padding). Used for refresh and password-reset tokens,
// which are opaque by design: a long-lived artifact must not carry claims.
func NewOpaqueToken() (string, error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the hex-encoded SHA-256 of a raw opaque token. Only the
// hash is persisted; the raw token is shown to the client once.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
