package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/docshare/internal/blob/local"
	"github.com/and161185/docshare/internal/crypto"
	"github.com/and161185/docshare/internal/model"
	"github.com/and161185/docshare/internal/repository/memory"
	"github.com/and161185/docshare/internal/service"
	"github.com/and161185/docshare/internal/token"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
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

type testServer struct {
	srv   *Server
	clock *fakeClock
	blobs *local.Store
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	clk := &fakeClock{t: time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)}

	hasher, err := crypto.NewHasher("")
	require.NoError(t, err)
	tokens, err := token.NewService([]byte("http-test-key"), token.WithClock(clk.Now))
	require.NoError(t, err)
	users := memory.NewUserRepo()
	auth, err := service.NewAuthService(users, hasher, tokens, 30*time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, auth.Register(ctx, model.Identity{Username: "opsuser", Email: "ops@example.com", FullName: "Operation User", Role: model.RoleOps}, "secret"))
	require.NoError(t, auth.Register(ctx, model.Identity{Username: "clientuser", Email: "client@example.com", FullName: "Client User", Role: model.RoleClient}, "secret"))

	blobs, err := local.New(t.TempDir())
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	files := service.NewFileService(memory.NewFileRepo(), memory.NewGrantRepo(), blobs,
		service.WithClock(clk.Now), service.WithLogger(log))

	return &testServer{srv: New(auth, files, log, opts...), clock: clk, blobs: blobs}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) get(t *testing.T, path, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return ts.do(t, req)
}

func (ts *testServer) login(t *testing.T, username string) string {
	t.Helper()
	form := url.Values{"username": {username}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := ts.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.AccessToken
}

func (ts *testServer) upload(t *testing.T, bearer, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/ops/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return ts.do(t, req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) errorResponse {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	e := decode[errorResponse](t, rec)
	require.Equal(t, code, e.Code)
	if status == http.StatusUnauthorized {
		require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	}
	return e
}
