package postgres

import (
	"context"
	"errors"

	"github.com/and161185/docshare/internal/errs"
	"github.com/and161185/docshare/internal/model"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (username, email, full_name, disabled, role, password_hash)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, u.Username, u.Email, u.FullName, u.Disabled, string(u.Role), u.PasswordHash)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByUsername selects a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `
SELECT username, email, full_name, disabled, role, password_hash, created_at
FROM users WHERE username=$1`
	var (
		u    model.User
		role string
	)
	err := r.db.Pool.QueryRow(ctx, q, username).
		Scan(&u.Username, &u.Email, &u.FullName, &u.Disabled, &role, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}
