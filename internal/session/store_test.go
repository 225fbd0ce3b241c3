package session

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"fitstack/auth/internal/session/domain"
)

type memSessionRepo struct {
	mu sync.Mutex
	m  map[string]*domain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{m: make(map[string]*domain.Session)}
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		s2 := *s
		return &s2, nil
	}
	return nil, nil
}

func (r *memSessionRepo) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s2 := *s
	r.m[s.ID] = &s2
	return nil
}

func (r *memSessionRepo) ListActiveByIdentity(ctx context.Context, identityID string) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.m {
		if s.IdentityID == identityID && s.Active {
			s2 := *s
			out = append(out, &s2)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	return out, nil
}

func (r *memSessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		s.LastActiveAt = at
	}
	return nil
}

func (r *memSessionRepo) SetRefreshToken(ctx context.Context, sessionID, refreshTokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[sessionID]; ok {
		s.RefreshTokenID = refreshTokenID
	}
	return nil
}

func (r *memSessionRepo) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		s.Active = false
	}
	return nil
}

func (r *memSessionRepo) DeactivateAllByIdentity(ctx context.Context, identityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.m {
		if s.IdentityID == identityID {
			s.Active = false
		}
	}
	return nil
}

func (r *memSessionRepo) DeactivateStale(ctx context.Context, now, idleBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.m {
		if s.Active && (!s.ExpiresAt.After(now) || s.LastActiveAt.Before(idleBefore)) {
			s.Active = false
			n++
		}
	}
	return n, nil
}

func newTestStore(repo *memSessionRepo, max int) *Store {
	return NewStore(repo, max, 24*time.Hour, time.Hour, nil)
}

func TestCreateAndGet(t *testing.T) {
	repo := newMemSessionRepo()
	store := newTestStore(repo, 5)
	ctx := context.Background()

	sess, err := store.Create(ctx, "id-1", Metadata{UserAgent: "ua", IPAddress: "1.2.3.4"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.ID == "" || !sess.Active {
		t.Fatal("created session should be active with an id")
	}

	got, err := store.GetLive(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetLive: %v", err)
	}
	if got == nil || got.ID != sess.ID {
		t.Fatal("GetLive should return the created session")
	}
}

func TestCreateEvictsLeastRecentlyActive(t *testing.T) {
	repo := newMemSessionRepo()
	store := newTestStore(repo, 3)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		s, err := store.Create(ctx, "id-1", Metadata{})
		if err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		ids = append(ids, s.ID)
		// Distinct last-active ordering: ids[0] is oldest.
		if err := repo.Touch(ctx, s.ID, time.Now().Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Touch: %v", err)
		}
	}

	if _, err := store.Create(ctx, "id-1", Metadata{}); err != nil {
		t.Fatalf("Create over cap: %v", err)
	}

	active, err := repo.ListActiveByIdentity(ctx, "id-1")
	if err != nil {
		t.Fatalf("ListActiveByIdentity: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("active count: want 3, got %d", len(active))
	}
	for _, s := range active {
		if s.ID == ids[0] {
			t.Error("least-recently-active session should have been evicted")
		}
	}

	// Evicted session is retained, just inactive.
	evicted, err := store.Get(ctx, ids[0])
	if err != nil {
		t.Fatalf("Get evicted: %v", err)
	}
	if evicted == nil {
		t.Fatal("evicted session should still exist")
	}
	if evicted.Active {
		t.Error("evicted session should be inactive")
	}
}

func TestDeactivateIsIdempotent(t *testing.T) {
	repo := newMemSessionRepo()
	store := newTestStore(repo, 5)
	ctx := context.Background()

	sess, err := store.Create(ctx, "id-1", Metadata{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Deactivate(ctx, sess.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if err := store.Deactivate(ctx, sess.ID); err != nil {
		t.Fatalf("second Deactivate: %v", err)
	}
	got, err := store.GetLive(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetLive: %v", err)
	}
	if got != nil {
		t.Error("deactivated session should not be live")
	}
}

func TestSweepDeactivatesExpiredAndIdle(t *testing.T) {
	repo := newMemSessionRepo()
	store := newTestStore(repo, 5)
	ctx := context.Background()

	fresh, err := store.Create(ctx, "id-1", Metadata{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	now := time.Now().UTC()
	expired := &domain.Session{
		ID: "expired", IdentityID: "id-1", Active: true,
		CreatedAt: now.Add(-48 * time.Hour), LastActiveAt: now,
		ExpiresAt: now.Add(-time.Minute),
	}
	idle := &domain.Session{
		ID: "idle", IdentityID: "id-1", Active: true,
		CreatedAt: now.Add(-3 * time.Hour), LastActiveAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(24 * time.Hour),
	}
	for _, s := range []*domain.Session{expired, idle} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	n, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 2 {
		t.Errorf("swept count: want 2, got %d", n)
	}
	if got, _ := store.GetLive(ctx, fresh.ID); got == nil {
		t.Error("fresh session should survive the sweep")
	}
	if got, _ := store.GetLive(ctx, "expired"); got != nil {
		t.Error("expired session should be deactivated")
	}
	if got, _ := store.GetLive(ctx, "idle"); got != nil {
		t.Error("idle session should be deactivated")
	}
}

func TestDeactivateAll(t *testing.T) {
	repo := newMemSessionRepo()
	store := newTestStore(repo, 5)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.Create(ctx, "id-1", Metadata{}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if _, err := store.Create(ctx, "id-2", Metadata{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.DeactivateAll(ctx, "id-1"); err != nil {
		t.Fatalf("DeactivateAll: %v", err)
	}
	a1, _ := repo.ListActiveByIdentity(ctx, "id-1")
	if len(a1) != 0 {
		t.Errorf("id-1 active sessions: want 0, got %d", len(a1))
	}
	a2, _ := repo.ListActiveByIdentity(ctx, "id-2")
	if len(a2) != 1 {
		t.Errorf("id-2 active sessions: want 1, got %d", len(a2))
	}
}
