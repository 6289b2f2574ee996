package memory

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/docshare/internal/errs"
	"github.com/and161185/docshare/internal/model"
)

// GrantRepo is an in-memory download grant table.
type GrantRepo struct {
	mu     sync.RWMutex
	grants map[string]model.Grant
}

// NewGrantRepo constructs an empty grant repository.
func NewGrantRepo() *GrantRepo {
	return &GrantRepo{grants: make(map[string]model.Grant)}
}

// Create stores a grant.
func (r *GrantRepo) Create(_ context.Context, g *model.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.grants[g.Token]; ok {
		return errs.ErrAlreadyExists
	}
	r.grants[g.Token] = *g
	return nil
}

// GetByToken loads a grant by token.
func (r *GrantRepo) GetByToken(_ context.Context, token string) (*model.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.grants[token]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &g, nil
}

// Redeem marks the grant redeemed if it is unexpired and not yet redeemed.
func (r *GrantRepo) Redeem(_ context.Context, token string, at time.Time) (*model.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.grants[token]
	if !ok || g.RedeemedAt != nil || g.Expired(at) {
		return nil, errs.ErrNotFound
	}
	ts := at
	g.RedeemedAt = &ts
	r.grants[token] = g
	return &g, nil
}

// DeleteExpired drops every grant whose expiry is at or before the given time.
func (r *GrantRepo) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for k, g := range r.grants {
		if !g.ExpiresAt.After(before) {
			delete(r.grants, k)
			n++
		}
	}
	return n, nil
}
