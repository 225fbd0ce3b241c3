package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fitstack/auth/internal/audit/domain"
)

type memAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
	err     error
}

func (r *memAuditRepo) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	return nil, nil
}

func (r *memAuditRepo) ListByOrg(ctx context.Context, orgID string, limit, offset int32) ([]*domain.AuditLog, error) {
	return nil, nil
}

func (r *memAuditRepo) Create(ctx context.Context, a *domain.AuditLog) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, a)
	return nil
}

func TestLogEventPersistsEntry(t *testing.T) {
	repo := &memAuditRepo{}
	l := NewLogger(repo, func(context.Context) string { return "10.0.0.1" }, nil)

	l.LogEvent(context.Background(), "org-1", "id-1", "login", "auth", `{"ok":true}`)

	if len(repo.entries) != 1 {
		t.Fatalf("entries: want 1, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.ID == "" {
		t.Error("entry should have an id")
	}
	if e.OrgID != "org-1" || e.IdentityID != "id-1" || e.Action != "login" || e.Resource != "auth" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.IP != "10.0.0.1" {
		t.Errorf("ip: want 10.0.0.1, got %s", e.IP)
	}
}

func TestLogEventDefaultsOrgAndIP(t *testing.T) {
	repo := &memAuditRepo{}
	l := NewLogger(repo, nil, nil)

	l.LogEvent(context.Background(), "", "id-1", "login_failure", "auth", "")

	e := repo.entries[0]
	if e.OrgID != SentinelOrgID {
		t.Errorf("org: want %s, got %s", SentinelOrgID, e.OrgID)
	}
	if e.IP != "unknown" {
		t.Errorf("ip: want unknown, got %s", e.IP)
	}
}

func TestLogEventSwallowsRepoFailure(t *testing.T) {
	repo := &memAuditRepo{err: errors.New("db down")}
	l := NewLogger(repo, nil, nil)

	// Must not panic or propagate the error.
	l.LogEvent(context.Background(), "org-1", "id-1", "login", "auth", "")
}

func TestNilRepoIsSafe(t *testing.T) {
	l := NewLogger(nil, nil, nil)
	l.LogEvent(context.Background(), "org-1", "id-1", "login", "auth", "")
}
