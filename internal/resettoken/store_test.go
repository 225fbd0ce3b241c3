package resettoken

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fitstack/auth/internal/resettoken/domain"
)

type memResetRepo struct {
	mu sync.Mutex
	m  map[string]*domain.ResetToken
}

func newMemResetRepo() *memResetRepo {
	return &memResetRepo{m: make(map[string]*domain.ResetToken)}
}

func (r *memResetRepo) Create(ctx context.Context, t *domain.ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t2 := *t
	r.m[t.TokenHash] = &t2
	return nil
}

func (r *memResetRepo) Consume(ctx context.Context, tokenHash string, now time.Time) (*domain.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.m[tokenHash]
	if !ok || t.Consumed || !t.ExpiresAt.After(now) {
		return nil, nil
	}
	t.Consumed = true
	at := now
	t.ConsumedAt = &at
	t2 := *t
	return &t2, nil
}

func (r *memResetRepo) InvalidateByIdentity(ctx context.Context, identityID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.m {
		if t.IdentityID == identityID && !t.Consumed {
			t.Consumed = true
			a := at
			t.ConsumedAt = &a
		}
	}
	return nil
}

func (r *memResetRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for h, t := range r.m {
		if t.ExpiresAt.Before(cutoff) {
			delete(r.m, h)
			n++
		}
	}
	return n, nil
}

func TestIssueAndConsume(t *testing.T) {
	store := NewStore(newMemResetRepo(), time.Hour, nil)
	ctx := context.Background()

	raw, err := store.Issue(ctx, "id-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	identityID, err := store.Consume(ctx, raw)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if identityID != "id-1" {
		t.Errorf("identity: want id-1, got %s", identityID)
	}
	if _, err := store.Consume(ctx, raw); !errors.Is(err, ErrInvalid) {
		t.Errorf("second Consume: want ErrInvalid, got %v", err)
	}
}

func TestConsumeRejectsUnknownAndExpired(t *testing.T) {
	repo := newMemResetRepo()
	ctx := context.Background()

	store := NewStore(repo, time.Hour, nil)
	if _, err := store.Consume(ctx, "no-such-token"); !errors.Is(err, ErrInvalid) {
		t.Errorf("unknown token: want ErrInvalid, got %v", err)
	}

	expStore := NewStore(repo, -time.Minute, nil)
	raw, err := expStore.Issue(ctx, "id-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := store.Consume(ctx, raw); !errors.Is(err, ErrInvalid) {
		t.Errorf("expired token: want ErrInvalid, got %v", err)
	}
}

func TestIssueSupersedesOutstanding(t *testing.T) {
	store := NewStore(newMemResetRepo(), time.Hour, nil)
	ctx := context.Background()

	first, err := store.Issue(ctx, "id-1")
	if err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	second, err := store.Issue(ctx, "id-1")
	if err != nil {
		t.Fatalf("second Issue: %v", err)
	}

	if _, err := store.Consume(ctx, first); !errors.Is(err, ErrInvalid) {
		t.Errorf("superseded token: want ErrInvalid, got %v", err)
	}
	if _, err := store.Consume(ctx, second); err != nil {
		t.Errorf("latest token should redeem, got %v", err)
	}
}

func TestRunPurgerDeletesExpired(t *testing.T) {
	repo := newMemResetRepo()
	ctx, cancel := context.WithCancel(context.Background())

	expStore := NewStore(repo, -time.Minute, nil)
	if _, err := expStore.Issue(ctx, "id-1"); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	store := NewStore(repo, time.Hour, nil)
	done := make(chan struct{})
	go func() {
		store.RunPurger(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		repo.mu.Lock()
		n := len(repo.m)
		repo.mu.Unlock()
		if n == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("purger did not delete the expired token in time")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purger did not stop on context cancel")
	}
}
