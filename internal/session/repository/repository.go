package repository

import (
	"context"
	"time"

	"fitstack/auth/internal/session/domain"
)

// Repository defines persistence for sessions. Deactivation never deletes a
// row; inactive sessions are retained for audit.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// ListActiveByIdentity returns active sessions ordered most-recently-active first.
	ListActiveByIdentity(ctx context.Context, identityID string) ([]*domain.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	SetRefreshToken(ctx context.Context, sessionID, refreshTokenID string) error
	Deactivate(ctx context.Context, id string) error
	DeactivateAllByIdentity(ctx context.Context, identityID string) error
	// DeactivateStale deactivates sessions that are past expiry or idle since
	// before idleBefore. Returns the number of sessions deactivated.
	DeactivateStale(ctx context.Context, now, idleBefore time.Time) (int64, error)
}
