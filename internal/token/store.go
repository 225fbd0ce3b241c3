package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitstack/auth/internal/security"
	"fitstack/auth/internal/token/domain"
	"fitstack/auth/internal/token/repository"
)

var (
	ErrNotFound = errors.New("refresh token not found")
	ErrRevoked  = errors.New("refresh token revoked")
	ErrExpired  = errors.New("refresh token expired")
)

// Store issues and redeems opaque refresh tokens. Raw tokens are returned to
// the caller exactly once, at issue time; the store never sees them again in
// unhashed form except as input to a lookup.
type Store struct {
	repo   repository.Repository
	ttl    time.Duration
	logger *zap.Logger
	nowF   func() time.Time
}

// NewStore returns a refresh-token store with the given default lifetime.
func NewStore(repo repository.Repository, ttl time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
		nowF:   time.Now,
	}
}

// Issue mints a new opaque refresh token bound to the session. The returned
// string is the raw token for the client; only its hash is persisted.
func (s *Store) Issue(ctx context.Context, identityID, sessionID string) (string, *domain.RefreshToken, error) {
	raw, err := security.NewOpaqueToken()
	if err != nil {
		return "", nil, fmt.Errorf("issue refresh token: %w", err)
	}
	now := s.nowF().UTC()
	rec := &domain.RefreshToken{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		SessionID:  sessionID,
		TokenHash:  security.HashToken(raw),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return "", nil, err
	}
	return raw, rec, nil
}

// FindActive returns the live record for the raw token. Missing, revoked and
// expired tokens are reported with distinct sentinel errors so callers can
// log the specific cause while presenting a generic failure upstream.
func (s *Store) FindActive(ctx context.Context, raw string) (*domain.RefreshToken, error) {
	rec, err := s.repo.GetByHash(ctx, security.HashToken(raw))
	if err != nil {
		return nil, err
	}
	return s.classify(rec)
}

// Consume redeems the raw token, revoking it in the same operation. Exactly
// one of any set of concurrent callers presenting the same token succeeds;
// the rest observe ErrRevoked.
func (s *Store) Consume(ctx context.Context, raw string) (*domain.RefreshToken, error) {
	hash := security.HashToken(raw)
	now := s.nowF().UTC()
	rec, err := s.repo.Consume(ctx, hash, now)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}
	// The update matched nothing. Re-read to tell the caller why.
	prior, err := s.repo.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if _, err := s.classify(prior); err != nil {
		return nil, err
	}
	// A live row appeared between the update and the read; a concurrent
	// caller cannot have won with a live row still present, so treat the
	// race as a lost rotation.
	return nil, ErrRevoked
}

// Revoke marks the token revoked. Revoking an already revoked token is a no-op.
func (s *Store) Revoke(ctx context.Context, id string) error {
	return s.repo.Revoke(ctx, id, s.nowF().UTC())
}

// RevokeAllForIdentity revokes every live token of the identity.
func (s *Store) RevokeAllForIdentity(ctx context.Context, identityID string) error {
	return s.repo.RevokeAllByIdentity(ctx, identityID, s.nowF().UTC())
}

// RevokeForSession revokes the live tokens bound to the session.
func (s *Store) RevokeForSession(ctx context.Context, sessionID string) error {
	return s.repo.RevokeBySession(ctx, sessionID, s.nowF().UTC())
}

// PurgeExpired deletes records whose expiry has passed. Revoked-but-unexpired
// records are kept so reuse of a rotated token stays detectable.
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
				s.logger.Warn("refresh token purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("purged expired refresh tokens", zap.Int64("count", n))
			}
		}
	}
}

func (s *Store) classify(rec *domain.RefreshToken) (*domain.RefreshToken, error) {
	switch {
	case rec == nil:
		return nil, ErrNotFound
	case rec.Revoked:
		return nil, ErrRevoked
	case !s.nowF().UTC().Before(rec.ExpiresAt):
		return nil, ErrExpired
	}
	return rec, nil
}
