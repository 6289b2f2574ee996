// Package memory contains process-local, concurrency-safe implementations of
// repository interfaces. Each table has its own lock.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/and161185/docshare/internal/errs"
	"github.com/and161185/docshare/internal/model"
)

// UserRepo is an in-memory credential store.
type UserRepo struct {
	mu    sync.RWMutex
	users map[string]model.User
}

// NewUserRepo constructs an empty user repository.
func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]model.User)}
}

// Create inserts a new user.
func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("empty username")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.Username]; ok {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	if cpy.CreatedAt.IsZero() {
		cpy.CreatedAt = time.Now().UTC()
	}
	r.users[u.Username] = cpy
	return nil
}

// GetByUsername loads a user by exact username.
func (r *UserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}
