package repository

import (
	"context"
	"time"

	"fitstack/auth/internal/identity/domain"
)

// Repository persists identities. Email lookups are case-insensitive.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
}
