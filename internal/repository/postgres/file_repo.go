package postgres

import (
	"context"
	"errors"

	"github.com/and161185/docshare/internal/errs"
	"github.com/and161185/docshare/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// FileRepo implements FileRepository using PostgreSQL.
type FileRepo struct{ db *DB }

// NewFileRepo constructs a file repository.
func NewFileRepo(db *DB) *FileRepo { return &FileRepo{db: db} }

// Create inserts a new file row.
func (r *FileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	const q = `
INSERT INTO files (id, filename, uploaded_by, uploaded_at, size, locator)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, f.ID, f.Filename, f.UploadedBy, f.UploadedAt, f.Size, f.Locator)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a file by id.
func (r *FileRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.FileRecord, error) {
	const q = `
SELECT id, filename, uploaded_by, uploaded_at, size, locator
FROM files WHERE id=$1`
	var f model.FileRecord
	err := r.db.Pool.QueryRow(ctx, q, id).
		Scan(&f.ID, &f.Filename, &f.UploadedBy, &f.UploadedAt, &f.Size, &f.Locator)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// List returns all files ordered by insertion.
func (r *FileRepo) List(ctx context.Context) ([]model.FileRecord, error) {
	const q = `
SELECT id, filename, uploaded_by, uploaded_at, size, locator
FROM files ORDER BY seq`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.FileRecord, 0, 16)
	for rows.Next() {
		var f model.FileRecord
		if err := rows.Scan(&f.ID, &f.Filename, &f.UploadedBy, &f.UploadedAt, &f.Size, &f.Locator); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
