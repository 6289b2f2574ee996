package postgres

import (
	"context"
	"crypto/sha256"
	"errors"
	"time"

	"github.com/and161185/docshare/internal/errs"
	"github.com/and161185/docshare/internal/model"
	"github.com/jackc/pgx/v5"
)

// GrantRepo implements GrantRepository using PostgreSQL.
// Only a SHA-256 fingerprint of each grant token is stored.
type GrantRepo struct{ db *DB }

// NewGrantRepo constructs a grant repository.
func NewGrantRepo(db *DB) *GrantRepo { return &GrantRepo{db: db} }

func tokenHash(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

// Create inserts a new grant row.
func (r *GrantRepo) Create(ctx context.Context, g *model.Grant) error {
	const q = `
INSERT INTO download_grants (token_hash, file_id, grantee, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, tokenHash(g.Token), g.FileID, g.Grantee, g.CreatedAt, g.ExpiresAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByToken selects a grant by token.
func (r *GrantRepo) GetByToken(ctx context.Context, token string) (*model.Grant, error) {
	const q = `
SELECT file_id, grantee, created_at, expires_at, redeemed_at
FROM download_grants WHERE token_hash=$1`
	g := model.Grant{Token: token}
	err := r.db.Pool.QueryRow(ctx, q, tokenHash(token)).
		Scan(&g.FileID, &g.Grantee, &g.CreatedAt, &g.ExpiresAt, &g.RedeemedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// Redeem sets redeemed_at only if the grant is unredeemed and unexpired at the
// given time, so concurrent redemptions race on a single row update. As with
// model.Grant.Expired, a grant is already expired at expires_at.
func (r *GrantRepo) Redeem(ctx context.Context, token string, at time.Time) (*model.Grant, error) {
	const q = `
UPDATE download_grants
SET redeemed_at = $2
WHERE token_hash = $1 AND redeemed_at IS NULL AND expires_at > $2
RETURNING file_id, grantee, created_at, expires_at`
	g := model.Grant{Token: token}
	err := r.db.Pool.QueryRow(ctx, q, tokenHash(token), at).
		Scan(&g.FileID, &g.Grantee, &g.CreatedAt, &g.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	ts := at
	g.RedeemedAt = &ts
	return &g, nil
}

// DeleteExpired removes grants expired at or before the given time.
func (r *GrantRepo) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	const q = `DELETE FROM download_grants WHERE expires_at <= $1`
	tag, err := r.db.Pool.Exec(ctx, q, before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
