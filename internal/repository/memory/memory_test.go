package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/and161185/docshare/internal/errs"
	"github.com/and161185/docshare/internal/model"
	"github.com/and161185/docshare/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

var (
	_ repository.UserRepository  = (*UserRepo)(nil)
	_ repository.FileRepository  = (*FileRepo)(nil)
	_ repository.GrantRepository = (*GrantRepo)(nil)
)

func TestUserRepo_CreateGet(t *testing.T) {
	r := NewUserRepo()
	ctx := context.Background()

	u := &model.User{
		Identity:     model.Identity{Username: "opsuser", Email: "ops@example.com", Role: model.RoleOps},
		PasswordHash: "$pbkdf2-sha256$1$a$b",
	}
	require.NoError(t, r.Create(ctx, u))
	require.ErrorIs(t, r.Create(ctx, u), errs.ErrAlreadyExists)
	require.Error(t, r.Create(ctx, &model.User{}))

	got, err := r.GetByUsername(ctx, "opsuser")
	require.NoError(t, err)
	require.Equal(t, model.RoleOps, got.Role)
	require.Equal(t, u.PasswordHash, got.PasswordHash)
	require.False(t, got.CreatedAt.IsZero())

	// returned value is a copy
	got.Role = model.RoleClient
	again, _ := r.GetByUsername(ctx, "opsuser")
	require.Equal(t, model.RoleOps, again.Role)

	_, err = r.GetByUsername(ctx, "OPSUSER")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFileRepo_InsertionOrder(t *testing.T) {
	r := NewFileRepo()
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		f := &model.FileRecord{ID: uuid.Must(uuid.NewV4()), Filename: fmt.Sprintf("f%d.docx", i)}
		require.NoError(t, r.Create(ctx, f))
		ids = append(ids, f.ID)
	}
	require.ErrorIs(t, r.Create(ctx, &model.FileRecord{ID: ids[0]}), errs.ErrAlreadyExists)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 5)
	for i, f := range list {
		require.Equal(t, ids[i], f.ID)
	}

	got, err := r.GetByID(ctx, ids[2])
	require.NoError(t, err)
	require.Equal(t, "f2.docx", got.Filename)

	_, err = r.GetByID(ctx, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestGrantRepo_RedeemOnce(t *testing.T) {
	r := NewGrantRepo()
	ctx := context.Background()
	now := time.Now()

	g := &model.Grant{Token: "tok", FileID: uuid.Must(uuid.NewV4()), Grantee: "clientuser", ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, r.Create(ctx, g))
	require.ErrorIs(t, r.Create(ctx, g), errs.ErrAlreadyExists)

	got, err := r.Redeem(ctx, "tok", now)
	require.NoError(t, err)
	require.NotNil(t, got.RedeemedAt)

	_, err = r.Redeem(ctx, "tok", now)
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = r.Redeem(ctx, "missing", now)
	require.ErrorIs(t, err, errs.ErrNotFound)

	stored, err := r.GetByToken(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, stored.RedeemedAt)
}

func TestGrantRepo_RedeemExpired(t *testing.T) {
	r := NewGrantRepo()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, r.Create(ctx, &model.Grant{Token: "old", ExpiresAt: now}))
	_, err := r.Redeem(ctx, "old", now)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestGrantRepo_ConcurrentRedeem(t *testing.T) {
	r := NewGrantRepo()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, r.Create(ctx, &model.Grant{Token: "race", ExpiresAt: now.Add(time.Hour)}))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Redeem(ctx, "race", now); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestGrantRepo_DeleteExpired(t *testing.T) {
	r := NewGrantRepo()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, r.Create(ctx, &model.Grant{Token: "a", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, r.Create(ctx, &model.Grant{Token: "b", ExpiresAt: now}))
	require.NoError(t, r.Create(ctx, &model.Grant{Token: "c", ExpiresAt: now.Add(time.Minute)}))

	n, err := r.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = r.GetByToken(ctx, "c")
	require.NoError(t, err)
	_, err = r.GetByToken(ctx, "a")
	require.ErrorIs(t, err, errs.ErrNotFound)
}
