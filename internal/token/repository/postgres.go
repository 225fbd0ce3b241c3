package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fitstack/auth/internal/token/domain"
)

// PostgresRepository implements Repository on Postgres. Single-use semantics
// rely on the database's row-level atomicity, not in-process locking.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a refresh-token repository using the given pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const tokenColumns = `id, identity_id, session_id, token_hash, revoked, created_at, expires_at, revoked_at`

// Create persists the token record.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+tokenColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.IdentityID, t.SessionID, t.TokenHash, t.Revoked,
		t.CreatedAt, t.ExpiresAt, t.RevokedAt)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// GetByHash returns the token with the given hash, or nil if not found.
func (r *PostgresRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return t, nil
}

// Consume revokes the live token with the given hash and returns it. The
// single UPDATE makes the operation atomic: of any set of concurrent callers
// presenting the same token, exactly one gets the row back and the rest get
// nil, because the WHERE clause no longer matches after the first revocation.
func (r *PostgresRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2
		 WHERE token_hash = $1 AND NOT revoked AND expires_at > $2
		 RETURNING `+tokenColumns, tokenHash, now)
	t, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}
	return t, nil
}

// Revoke marks the token revoked. Idempotent.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2
		 WHERE id = $1 AND NOT revoked`, id, at)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllByIdentity revokes every live token belonging to the identity.
func (r *PostgresRepository) RevokeAllByIdentity(ctx context.Context, identityID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2
		 WHERE identity_id = $1 AND NOT revoked`, identityID, at)
	if err != nil {
		return fmt.Errorf("revoke identity refresh tokens: %w", err)
	}
	return nil
}

// RevokeBySession revokes the live tokens bound to the session.
func (r *PostgresRepository) RevokeBySession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2
		 WHERE session_id = $1 AND NOT revoked`, sessionID, at)
	if err != nil {
		return fmt.Errorf("revoke session refresh tokens: %w", err)
	}
	return nil
}

// DeleteExpiredBefore removes token records that expired before the cutoff.
func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := row.Scan(&t.ID, &t.IdentityID, &t.SessionID, &t.TokenHash,
		&t.Revoked, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
