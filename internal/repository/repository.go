// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/docshare/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository is the credential store.
type UserRepository interface {
	// Create inserts a new user; errs.ErrAlreadyExists if the username is taken.
	Create(ctx context.Context, u *model.User) error
	// GetByUsername loads a user by username; errs.ErrNotFound if absent.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

// FileRepository is the file registry.
type FileRepository interface {
	// Create inserts a new file record.
	Create(ctx context.Context, f *model.FileRecord) error
	// GetByID loads a file record; errs.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.FileRecord, error)
	// List returns all records in insertion order.
	List(ctx context.Context) ([]model.FileRecord, error)
}

// GrantRepository holds download grants.
type GrantRepository interface {
	// Create stores a new grant.
	Create(ctx context.Context, g *model.Grant) error
	// GetByToken loads a grant; errs.ErrNotFound if absent.
	GetByToken(ctx context.Context, token string) (*model.Grant, error)
	// Redeem atomically marks an unexpired, unredeemed grant as redeemed at
	// the given time; errs.ErrNotFound otherwise.
	Redeem(ctx context.Context, token string, at time.Time) (*model.Grant, error)
	// DeleteExpired removes grants expired at or before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
