package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	mu    sync.Mutex
	start time.Time
	dur   time.Duration
	count int64
	// lastSeen drives janitor eviction of idle keys.
	lastSeen time.Time
}

// MemoryStore is an in-process CounterStore: one locked counter per key with
// periodic cleanup of idle keys. Counter state is lost on restart, which is
// acceptable for admission control.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*window

	idleTTL      time.Duration
	cleanupEvery time.Duration
	nowF         func() time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithIdleTTL sets how long an untouched key survives before the janitor drops it.
func WithIdleTTL(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.idleTTL = d }
}

// WithCleanupEvery sets the janitor cadence.
func WithCleanupEvery(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

// withNow overrides the clock. Tests only.
func withNow(f func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.nowF = f }
}

// NewMemoryStore returns an in-process counter store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:      make(map[string]*window),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		nowF:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Incr implements CounterStore. The per-key mutex makes the
// check-elapsed-then-reset-or-increment step a single atomic mutation.
func (s *MemoryStore) Incr(ctx context.Context, key string, windowDur time.Duration) (int64, time.Time, error) {
	now := s.nowF()

	s.mu.Lock()
	w, ok := s.entries[key]
	if !ok {
		w = &window{start: now, lastSeen: now}
		s.entries[key] = w
	}
	s.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeen = now
	w.dur = windowDur
	if now.Sub(w.start) >= windowDur {
		w.start = now
		w.count = 0
	}
	w.count++
	return w.count, w.start, nil
}

// Cleanup drops keys idle longer than the idle TTL. A key whose fixed window
// is still open is never evicted: dropping it would hand the caller a fresh
// budget mid-window.
func (s *MemoryStore) Cleanup() {
	now := s.nowF()
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, w := range s.entries {
		w.mu.Lock()
		dead := w.lastSeen.Before(cutoff) && now.Sub(w.start) >= w.dur
		w.mu.Unlock()
		if dead {
			delete(s.entries, k)
		}
	}
}

// StartJanitor starts a goroutine that evicts idle keys periodically.
// Stops when ctx is cancelled.
func (s *MemoryStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}
	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
