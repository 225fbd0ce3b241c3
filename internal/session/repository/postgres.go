package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fitstack/auth/internal/session/domain"
)

// PostgresRepository implements Repository on Postgres. Single-row atomicity
// comes from the database; no in-process locking is needed here.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository using the given pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, identity_id, refresh_token_id, user_agent, ip_address, active, created_at, last_active_at, expires_at`

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.IdentityID, s.RefreshTokenID, s.UserAgent, s.IPAddress,
		s.Active, s.CreatedAt, s.LastActiveAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// ListActiveByIdentity returns the identity's active sessions, most recently
// active first. The ordering is what the eviction policy keys on.
func (r *PostgresRepository) ListActiveByIdentity(ctx context.Context, identityID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE identity_id = $1 AND active
		 ORDER BY last_active_at DESC`, identityID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Touch sets the session's last-active timestamp.
func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_active_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// SetRefreshToken records the paired refresh-token id on the session.
func (r *PostgresRepository) SetRefreshToken(ctx context.Context, sessionID, refreshTokenID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET refresh_token_id = $2 WHERE id = $1`, sessionID, refreshTokenID)
	if err != nil {
		return fmt.Errorf("set session refresh token: %w", err)
	}
	return nil
}

// Deactivate clears the active flag. Idempotent: deactivating an already
// inactive session is a no-op.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}

// DeactivateAllByIdentity clears the active flag on every session of the identity.
func (r *PostgresRepository) DeactivateAllByIdentity(ctx context.Context, identityID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = FALSE WHERE identity_id = $1 AND active`, identityID)
	if err != nil {
		return fmt.Errorf("deactivate sessions: %w", err)
	}
	return nil
}

// DeactivateStale deactivates expired and idle sessions in one statement.
func (r *PostgresRepository) DeactivateStale(ctx context.Context, now, idleBefore time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = FALSE
		 WHERE active AND (expires_at <= $1 OR last_active_at < $2)`, now, idleBefore)
	if err != nil {
		return 0, fmt.Errorf("deactivate stale sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate stale sessions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.IdentityID, &s.RefreshTokenID, &s.UserAgent,
		&s.IPAddress, &s.Active, &s.CreatedAt, &s.LastActiveAt, &s.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
