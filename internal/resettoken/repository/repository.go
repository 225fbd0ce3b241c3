package repository

import (
	"context"
	"time"

	"fitstack/auth/internal/resettoken/domain"
)

// Repository persists password-reset token records.
type Repository interface {
	Create(ctx context.Context, t *domain.ResetToken) error
	// Consume atomically marks the live token with the given hash consumed
	// and returns it, or returns nil when no live token matches.
	Consume(ctx context.Context, tokenHash string, now time.Time) (*domain.ResetToken, error)
	InvalidateByIdentity(ctx context.Context, identityID string, at time.Time) error
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
