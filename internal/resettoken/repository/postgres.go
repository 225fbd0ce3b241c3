package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fitstack/auth/internal/resettoken/domain"
)

// PostgresRepository implements Repository on Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a reset-token repository using the given pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const resetColumns = `id, token_hash, identity_id, expires_at, consumed, consumed_at, created_at`

// Create persists the token record.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.ResetToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reset_tokens (`+resetColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.TokenHash, t.IdentityID, t.ExpiresAt, t.Consumed, t.ConsumedAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}
	return nil
}

// Consume marks the live token consumed and returns it. The single UPDATE
// makes the redemption atomic; a second caller matches nothing and gets nil.
func (r *PostgresRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (*domain.ResetToken, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE reset_tokens SET consumed = TRUE, consumed_at = $2
		 WHERE token_hash = $1 AND NOT consumed AND expires_at > $2
		 RETURNING `+resetColumns, tokenHash, now)
	var t domain.ResetToken
	err := row.Scan(&t.ID, &t.TokenHash, &t.IdentityID, &t.ExpiresAt,
		&t.Consumed, &t.ConsumedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("consume reset token: %w", err)
	}
	return &t, nil
}

// InvalidateByIdentity consumes every live token of the identity. Issuing a
// new reset token supersedes any outstanding ones.
func (r *PostgresRepository) InvalidateByIdentity(ctx context.Context, identityID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reset_tokens SET consumed = TRUE, consumed_at = $2
		 WHERE identity_id = $1 AND NOT consumed`, identityID, at)
	if err != nil {
		return fmt.Errorf("invalidate reset tokens: %w", err)
	}
	return nil
}

// DeleteExpiredBefore removes token records that expired before the cutoff.
func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM reset_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge reset tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge reset tokens: %w", err)
	}
	return n, nil
}
