package repository

import (
	"context"

	"fitstack/auth/internal/permission/domain"
)

// Repository reads the authorization model: roles, grants, ownership,
// org membership and org policy sources.
type Repository interface {
	ListRoles(ctx context.Context, identityID string) ([]string, error)
	// ListGrants returns the union of role-derived permissions (unscoped)
	// and direct grants (possibly scoped) for the identity.
	ListGrants(ctx context.Context, identityID string) ([]domain.Grant, error)
	IsOwner(ctx context.Context, resource, resourceID, identityID string) (bool, error)
	// GetOrgRole returns the identity's role in the org, or "" for non-members.
	GetOrgRole(ctx context.Context, identityID, orgID string) (string, error)
	// ListEnabledPolicies returns the Rego sources of the org's enabled
	// access policies.
	ListEnabledPolicies(ctx context.Context, orgID string) ([]string, error)
}
