package permission

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"fitstack/auth/internal/permission/domain"
	"fitstack/auth/internal/permission/engine"
	"fitstack/auth/internal/permission/repository"
)

// Resolver answers authorization questions by running an ordered rule chain:
//
//	1. system-admin role allows everything
//	2. owning the target resource allows
//	3. org owner or admin of the target scope allows
//	4. an explicit grant covering resource/action/scope allows
//	5. an enabled org policy deriving allow grants access
//
// Everything else is denied. Results and resolved permission sets are cached
// for a short TTL; mutations to the authorization model must call Invalidate.
type Resolver struct {
	repo     repository.Repository
	eval     engine.Evaluator
	cacheTTL time.Duration
	logger   *zap.Logger
	nowF     func() time.Time

	mu        sync.Mutex
	sets      map[string]setEntry
	decisions map[string]decisionEntry
}

type setEntry struct {
	set     *domain.PermissionSet
	expires time.Time
}

type decisionEntry struct {
	allowed bool
	expires time.Time
}

// NewResolver returns a resolver with the given decision-cache TTL.
func NewResolver(repo repository.Repository, eval engine.Evaluator, cacheTTL time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		repo:      repo,
		eval:      eval,
		cacheTTL:  cacheTTL,
		logger:    logger,
		nowF:      time.Now,
		sets:      make(map[string]setEntry),
		decisions: make(map[string]decisionEntry),
	}
}

// GetPermissions resolves the identity's roles and the union of role-derived
// and direct grants, serving from cache within the TTL.
func (r *Resolver) GetPermissions(ctx context.Context, identityID string) (*domain.PermissionSet, error) {
	now := r.nowF()
	r.mu.Lock()
	if e, ok := r.sets[identityID]; ok && now.Before(e.expires) {
		r.mu.Unlock()
		return e.set, nil
	}
	r.mu.Unlock()

	roles, err := r.repo.ListRoles(ctx, identityID)
	if err != nil {
		return nil, err
	}
	grants, err := r.repo.ListGrants(ctx, identityID)
	if err != nil {
		return nil, err
	}
	set := &domain.PermissionSet{IdentityID: identityID, Roles: roles, Grants: grants}

	r.mu.Lock()
	r.sets[identityID] = setEntry{set: set, expires: now.Add(r.cacheTTL)}
	r.mu.Unlock()
	return set, nil
}

// CheckAccess runs the rule chain for the given question. A cached decision
// within the TTL is returned without touching the repository.
func (r *Resolver) CheckAccess(ctx context.Context, ac domain.AccessContext) (bool, error) {
	key := decisionKey(ac)
	now := r.nowF()
	r.mu.Lock()
	if e, ok := r.decisions[key]; ok && now.Before(e.expires) {
		r.mu.Unlock()
		return e.allowed, nil
	}
	r.mu.Unlock()

	allowed, err := r.resolve(ctx, ac)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	r.decisions[key] = decisionEntry{allowed: allowed, expires: now.Add(r.cacheTTL)}
	r.mu.Unlock()
	return allowed, nil
}

func (r *Resolver) resolve(ctx context.Context, ac domain.AccessContext) (bool, error) {
	set, err := r.GetPermissions(ctx, ac.SubjectID)
	if err != nil {
		return false, err
	}
	if set.HasRole(domain.SystemAdminRole) {
		return true, nil
	}

	if ac.ScopeID != "" {
		owns, err := r.repo.IsOwner(ctx, ac.Resource, ac.ScopeID, ac.SubjectID)
		if err != nil {
			return false, err
		}
		if owns {
			return true, nil
		}
		role, err := r.repo.GetOrgRole(ctx, ac.SubjectID, ac.ScopeID)
		if err != nil {
			return false, err
		}
		if role == domain.OrgRoleOwner || role == domain.OrgRoleAdmin {
			return true, nil
		}
	}

	if set.Allows(ac.Resource, ac.Action, ac.ScopeID) {
		return true, nil
	}

	return r.evalOrgPolicies(ctx, ac, set)
}

// evalOrgPolicies is the last rule in the chain: enabled Rego policies of
// the target org may grant access that the static model does not. A policy
// that fails to evaluate denies rather than erroring; the static rules have
// already had their say.
func (r *Resolver) evalOrgPolicies(ctx context.Context, ac domain.AccessContext, set *domain.PermissionSet) (bool, error) {
	if ac.ScopeID == "" {
		return false, nil
	}
	policies, err := r.repo.ListEnabledPolicies(ctx, ac.ScopeID)
	if err != nil {
		return false, err
	}
	if len(policies) == 0 {
		return false, nil
	}
	input := map[string]any{
		"subject": map[string]any{
			"id":    ac.SubjectID,
			"roles": set.Roles,
		},
		"resource": ac.Resource,
		"action":   ac.Action,
		"scope_id": ac.ScopeID,
	}
	allowed, err := r.eval.Allow(ctx, policies, input)
	if err != nil {
		r.logger.Warn("org policy evaluation failed",
			zap.String("org_id", ac.ScopeID), zap.Error(err))
		return false, nil
	}
	return allowed, nil
}

// Invalidate drops all cached state for the identity. Call after any change
// to its roles, grants, memberships or owned resources.
func (r *Resolver) Invalidate(identityID string) {
	prefix := identityID + "|"
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sets, identityID)
	for k := range r.decisions {
		if strings.HasPrefix(k, prefix) {
			delete(r.decisions, k)
		}
	}
}

func decisionKey(ac domain.AccessContext) string {
	return ac.SubjectID + "|" + ac.Resource + "|" + ac.Action + "|" + ac.ScopeID
}
