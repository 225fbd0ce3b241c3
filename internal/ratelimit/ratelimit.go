// Package ratelimit implements fixed-window admission control per client key.
//
// The window is coarse by design: counting restarts when a window elapses, so
// a burst straddling a window edge can reach twice the limit. Callers must not
// assume exact precision.
package ratelimit

import (
	"context"
	"time"
)

// Config is one named rate-limit budget. Separate configs exist for login
// attempts, general API calls, and password-reset requests, each with its own
// window, limit, and key scheme.
type Config struct {
	// Name prefixes counter keys so budgets never share counters.
	Name string
	// MaxRequests allowed per window.
	MaxRequests int
	// Window is the fixed window duration.
	Window time.Duration
}

// Result is the outcome of a single admission check.
type Result struct {
	Allowed   bool
	Remaining int
	// ResetTime is when the current window ends and counting restarts.
	ResetTime time.Time
	// RetryAfter is how long a rejected caller should wait; zero when allowed.
	RetryAfter time.Duration
}

// CounterStore atomically increments the counter for a key inside the current
// fixed window, starting a fresh window when the previous one has elapsed.
// Implementations must guarantee that concurrent calls for the same key never
// double-reset the window or under-count.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, windowStart time.Time, err error)
}

// Limiter answers admission checks against a CounterStore.
type Limiter struct {
	store CounterStore
}

// NewLimiter returns a Limiter backed by the given counter store.
func NewLimiter(store CounterStore) *Limiter {
	return &Limiter{store: store}
}

// Check records one request attempt for key under cfg and reports whether it
// is admitted. The attempt is counted regardless of the outcome: a rejected
// request still consumes a slot, matching apply-then-record semantics.
func (l *Limiter) Check(ctx context.Context, key string, cfg Config) (Result, error) {
	count, windowStart, err := l.store.Incr(ctx, cfg.Name+":"+key, cfg.Window)
	if err != nil {
		return Result{}, err
	}
	resetTime := windowStart.Add(cfg.Window)
	remaining := cfg.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:   count <= int64(cfg.MaxRequests),
		Remaining: remaining,
		ResetTime: resetTime,
	}
	if !res.Allowed {
		if ra := time.Until(resetTime); ra > 0 {
			res.RetryAfter = ra
		} else {
			res.RetryAfter = time.Millisecond
		}
	}
	return res, nil
}
