package repository

import (
	"context"
	"time"

	"fitstack/auth/internal/token/domain"
)

// Repository persists refresh token records. Lookups are by token hash,
// never by raw token.
type Repository interface {
	Create(ctx context.Context, t *domain.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	// Consume atomically revokes the live token with the given hash and
	// returns it. It returns nil when no live token matches, so exactly one
	// of any set of concurrent callers receives the record.
	Consume(ctx context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeAllByIdentity(ctx context.Context, identityID string, at time.Time) error
	RevokeBySession(ctx context.Context, sessionID string, at time.Time) error
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
