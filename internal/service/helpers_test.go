package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/docshare/internal/blob/local"
	"github.com/and161185/docshare/internal/crypto"
	"github.com/and161185/docshare/internal/model"
	"github.com/and161185/docshare/internal/repository/memory"
	"github.com/and161185/docshare/internal/token"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 9, 30, 14, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type env struct {
	clock  *fakeClock
	users  *memory.UserRepo
	grants *memory.GrantRepo
	blobs  *local.Store
	auth   *AuthServiceImpl
	files  *FileServiceImpl
}

var (
	opsID    = model.Identity{Username: "opsuser", Email: "ops@example.com", FullName: "Operation User", Role: model.RoleOps}
	clientID = model.Identity{Username: "clientuser", Email: "client@example.com", FullName: "Client User", Role: model.RoleClient}
)

func newEnv(t *testing.T, opts ...FileOption) *env {
	t.Helper()
	clk := newClock()
	hasher, err := crypto.NewHasher("")
	require.NoError(t, err)
	tokens, err := token.NewService([]byte("test-signing-key"), token.WithClock(clk.Now))
	require.NoError(t, err)

	users := memory.NewUserRepo()
	auth, err := NewAuthService(users, hasher, tokens, 30*time.Minute)
	require.NoError(t, err)

	blobs, err := local.New(t.TempDir())
	require.NoError(t, err)
	grants := memory.NewGrantRepo()
	opts = append([]FileOption{WithClock(clk.Now), WithLogger(zaptest.NewLogger(t))}, opts...)
	files := NewFileService(memory.NewFileRepo(), grants, blobs, opts...)

	ctx := context.Background()
	require.NoError(t, auth.Register(ctx, opsID, "secret"))
	require.NoError(t, auth.Register(ctx, clientID, "secret"))

	return &env{clock: clk, users: users, grants: grants, blobs: blobs, auth: auth, files: files}
}

func (e *env) login(t *testing.T, username string) string {
	t.Helper()
	tok, _, err := e.auth.Authenticate(context.Background(), username, "secret")
	require.NoError(t, err)
	return tok.AccessToken
}
