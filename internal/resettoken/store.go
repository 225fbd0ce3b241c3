package resettoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitstack/auth/internal/resettoken/domain"
	"fitstack/auth/internal/resettoken/repository"
	"fitstack/auth/internal/security"
)

// ErrInvalid covers missing, consumed and expired reset tokens alike. The
// caller has no legitimate need to distinguish them.
var ErrInvalid = errors.New("reset token invalid")

// Store issues and redeems single-use password-reset tokens.
type Store struct {
	repo   repository.Repository
	ttl    time.Duration
	logger *zap.Logger
	nowF   func() time.Time
}

// NewStore returns a reset-token store with the given lifetime.
func NewStore(repo repository.Repository, ttl time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{repo: repo, ttl: ttl, logger: logger, nowF: time.Now}
}

// Issue mints a reset token for the identity, superseding any outstanding
// ones. The returned string is the raw token; only its hash is persisted.
func (s *Store) Issue(ctx context.Context, identityID string) (string, error) {
	now := s.nowF().UTC()
	if err := s.repo.InvalidateByIdentity(ctx, identityID, now); err != nil {
		return "", err
	}
	raw, err := security.NewOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("issue reset token: %w", err)
	}
	rec := &domain.ResetToken{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		TokenHash:  security.HashToken(raw),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return "", err
	}
	return raw, nil
}

// Consume redeems the raw token and returns the identity it belongs to.
// Missing, already consumed and expired tokens all yield ErrInvalid.
func (s *Store) Consume(ctx context.Context, raw string) (string, error) {
	rec, err := s.repo.Consume(ctx, security.HashToken(raw), s.nowF().UTC())
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", ErrInvalid
	}
	return rec.IdentityID, nil
}

// PurgeExpired deletes records whose expiry has passed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredBefore(ctx, s.nowF().UTC())
}

// RunPurger deletes expired records on the given interval until ctx is done.
func (s *Store) RunPurger(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				s.logger.Warn("reset token purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("purged expired reset tokens", zap.Int64("count", n))
			}
		}
	}
}
