package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fitstack/auth/internal/permission/domain"
)

// PostgresRepository implements Repository on Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an authorization-model repository using the
// given pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListRoles returns the identity's role ids.
func (r *PostgresRepository) ListRoles(ctx context.Context, identityID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT role_id FROM identity_roles WHERE identity_id = $1`, identityID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return out, nil
}

// ListGrants unions role-derived permissions with direct grants. Role-derived
// permissions are unscoped; direct grants keep their scope.
func (r *PostgresRepository) ListGrants(ctx context.Context, identityID string) ([]domain.Grant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.resource, p.action, '' AS scope_id
		   FROM identity_roles ir
		   JOIN role_permissions rp ON rp.role_id = ir.role_id
		   JOIN permissions p ON p.id = rp.permission_id
		  WHERE ir.identity_id = $1
		 UNION
		 SELECT p.resource, p.action, ip.scope_id
		   FROM identity_permissions ip
		   JOIN permissions p ON p.id = ip.permission_id
		  WHERE ip.identity_id = $1`, identityID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var out []domain.Grant
	for rows.Next() {
		var g domain.Grant
		if err := rows.Scan(&g.Resource, &g.Action, &g.ScopeID); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return out, nil
}

// IsOwner reports whether the identity owns the given resource instance.
func (r *PostgresRepository) IsOwner(ctx context.Context, resource, resourceID, identityID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM resource_owners
		  WHERE resource_type = $1 AND resource_id = $2 AND owner_id = $3`,
		resource, resourceID, identityID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check ownership: %w", err)
	}
	return true, nil
}

// GetOrgRole returns the identity's role in the org, or "" for non-members.
func (r *PostgresRepository) GetOrgRole(ctx context.Context, identityID, orgID string) (string, error) {
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT role FROM org_memberships WHERE identity_id = $1 AND org_id = $2`,
		identityID, orgID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get org role: %w", err)
	}
	return role, nil
}

// ListEnabledPolicies returns the Rego sources of the org's enabled policies.
func (r *PostgresRepository) ListEnabledPolicies(ctx context.Context, orgID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rules FROM access_policies WHERE org_id = $1 AND enabled`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var rules string
		if err := rows.Scan(&rules); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		if rules != "" {
			out = append(out, rules)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}
	return out, nil
}
