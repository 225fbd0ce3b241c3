// Package session tracks active login sessions and enforces the per-identity
// concurrency cap and idle/expiry sweeping.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitstack/auth/internal/session/domain"
	"fitstack/auth/internal/session/repository"
)

// Metadata is the client context captured when a session is created.
type Metadata struct {
	UserAgent string
	IPAddress string
}

// Store wraps the session repository with the eviction policy and the
// background sweeper.
type Store struct {
	repo          repository.Repository
	maxConcurrent int
	ttl           time.Duration
	idleTimeout   time.Duration
	logger        *zap.Logger
	nowF          func() time.Time
}

// NewStore returns a session store. maxConcurrent bounds active sessions per
// identity; ttl bounds session lifetime; idleTimeout bounds inactivity.
func NewStore(repo repository.Repository, maxConcurrent int, ttl, idleTimeout time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		repo:          repo,
		maxConcurrent: maxConcurrent,
		ttl:           ttl,
		idleTimeout:   idleTimeout,
		logger:        logger,
		nowF:          time.Now,
	}
}

// Create opens a new session for the identity. When the identity is already
// at the concurrency cap, the least-recently-active sessions are deactivated
// (retained for audit, never deleted) to make room. Concurrent creates for
// one identity may briefly overshoot the cap by one; the next create or sweep
// converges it.
func (s *Store) Create(ctx context.Context, identityID string, meta Metadata) (*domain.Session, error) {
	active, err := s.repo.ListActiveByIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	for i := len(active); i >= s.maxConcurrent && i > 0; i-- {
		victim := active[i-1] // list is most-recently-active first
		if err := s.repo.Deactivate(ctx, victim.ID); err != nil {
			return nil, fmt.Errorf("evict session: %w", err)
		}
		s.logger.Info("session evicted",
			zap.String("identity_id", identityID),
			zap.String("session_id", victim.ID),
			zap.Time("last_active_at", victim.LastActiveAt))
	}

	now := s.nowF().UTC()
	sess := &domain.Session{
		ID:           uuid.New().String(),
		IdentityID:   identityID,
		UserAgent:    meta.UserAgent,
		IPAddress:    meta.IPAddress,
		Active:       true,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the session for id, or nil when unknown.
func (s *Store) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.repo.GetByID(ctx, id)
}

// GetLive returns the session only if it is active and unexpired.
func (s *Store) GetLive(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.Live(s.nowF().UTC()) {
		return nil, nil
	}
	return sess, nil
}

// Touch updates last-active-at. Called on every authenticated request, not
// just refresh; this is what makes the idle timeout meaningful.
func (s *Store) Touch(ctx context.Context, id string) error {
	return s.repo.Touch(ctx, id, s.nowF().UTC())
}

// LinkRefreshToken records the 1:1 paired refresh-token id on the session.
func (s *Store) LinkRefreshToken(ctx context.Context, sessionID, refreshTokenID string) error {
	return s.repo.SetRefreshToken(ctx, sessionID, refreshTokenID)
}

// Deactivate ends the session. Idempotent.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	return s.repo.Deactivate(ctx, id)
}

// DeactivateAll ends every session of the identity ("log out everywhere").
func (s *Store) DeactivateAll(ctx context.Context, identityID string) error {
	return s.repo.DeactivateAllByIdentity(ctx, identityID)
}

// Sweep deactivates expired and idle sessions once. Exposed for tests and
// called periodically by RunSweeper.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	now := s.nowF().UTC()
	return s.repo.DeactivateStale(ctx, now, now.Add(-s.idleTimeout))
}

// RunSweeper blocks, sweeping at the given interval until ctx is cancelled.
// It runs on its own goroutine so maintenance never blocks request handling.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("session sweep", zap.Int64("deactivated", n))
			}
		}
	}
}
