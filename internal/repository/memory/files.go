package memory

import (
	"context"
	"sync"

	"github.com/and161185/docshare/internal/errs"
	"github.com/and161185/docshare/internal/model"
	"github.com/gofrs/uuid/v5"
)

// FileRepo is an in-memory file registry preserving insertion order.
type FileRepo struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]model.FileRecord
	order []uuid.UUID
}

// NewFileRepo constructs an empty file repository.
func NewFileRepo() *FileRepo {
	return &FileRepo{byID: make(map[uuid.UUID]model.FileRecord)}
}

// Create inserts a new record.
func (r *FileRepo) Create(_ context.Context, f *model.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[f.ID]; ok {
		return errs.ErrAlreadyExists
	}
	r.byID[f.ID] = *f
	r.order = append(r.order, f.ID)
	return nil
}

// GetByID loads a record by id.
func (r *FileRepo) GetByID(_ context.Context, id uuid.UUID) (*model.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &f, nil
}

// List returns a snapshot of all records in insertion order.
func (r *FileRepo) List(_ context.Context) ([]model.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.FileRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out, nil
}
