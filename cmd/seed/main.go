// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the admin user (admin@example.com) already exists.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"fitstack/auth/internal/config"
	"fitstack/auth/internal/db"
	"fitstack/auth/internal/security"
)

// devRegoPolicy lets org members read workout content without an explicit
// grant. Policies are evaluated per org by internal/permission.
const devRegoPolicy = `package fitstack.authz

default allow = false

allow if {
	input.action == "read"
	input.resource == "workout"
}
`

const (
	adminEmail  = "admin@example.com"
	memberEmail = "member@example.com"
	devPassword = "Password123!dev"

	adminID  = "dev-identity-001"
	memberID = "dev-identity-002"
	devOrgID = "dev-org-001"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()

	var existing string
	err = conn.QueryRowContext(ctx,
		`SELECT id FROM identities WHERE LOWER(email) = LOWER($1)`, adminEmail).Scan(&existing)
	if err == nil {
		log.Println("Seed already applied (admin@example.com exists). Skipping.")
		os.Exit(0)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Fatalf("seed check: %v", err)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()

	exec := func(what, query string, args ...any) {
		if _, err := conn.ExecContext(ctx, query, args...); err != nil {
			log.Fatalf("%s: %v", what, err)
		}
	}

	exec("create admin identity",
		`INSERT INTO identities (id, email, password_hash, active, created_at, updated_at)
		 VALUES ($1, $2, $3, TRUE, $4, $4)`,
		adminID, adminEmail, passwordHash, now)
	exec("create member identity",
		`INSERT INTO identities (id, email, password_hash, active, created_at, updated_at)
		 VALUES ($1, $2, $3, TRUE, $4, $4)`,
		memberID, memberEmail, passwordHash, now)

	exec("create roles",
		`INSERT INTO roles (id, description) VALUES
		 ('system-admin', 'Full access to every resource'),
		 ('member', 'Standard account access')`)

	exec("create permissions",
		`INSERT INTO permissions (id, resource, action) VALUES
		 ('perm-profile-read',  'profile', 'read'),
		 ('perm-profile-write', 'profile', 'write'),
		 ('perm-workout-read',  'workout', 'read'),
		 ('perm-workout-write', 'workout', 'write')`)

	exec("grant member role permissions",
		`INSERT INTO role_permissions (role_id, permission_id) VALUES
		 ('member', 'perm-profile-read'),
		 ('member', 'perm-profile-write'),
		 ('member', 'perm-workout-read')`)

	exec("assign roles",
		`INSERT INTO identity_roles (identity_id, role_id) VALUES
		 ($1, 'system-admin'),
		 ($1, 'member'),
		 ($2, 'member')`,
		adminID, memberID)

	exec("create org memberships",
		`INSERT INTO org_memberships (identity_id, org_id, role) VALUES
		 ($1, $3, 'owner'),
		 ($2, $3, 'member')`,
		adminID, memberID, devOrgID)

	exec("grant scoped workout write",
		`INSERT INTO identity_permissions (identity_id, permission_id, scope_id)
		 VALUES ($1, 'perm-workout-write', $2)`,
		memberID, devOrgID)

	exec("create dev policy",
		`INSERT INTO access_policies (id, org_id, rules, enabled, created_at)
		 VALUES ('dev-policy-001', $1, $2, TRUE, $3)`,
		devOrgID, devRegoPolicy, now)

	log.Println("Seed completed successfully.")
	fmt.Printf("Admin login: %s / %s\n", adminEmail, devPassword)
	fmt.Printf("Member login: %s / %s\n", memberEmail, devPassword)
}
