package httpserver

import (
	"bytes"
	"context"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/docshare/internal/model"
)

func TestRootAndHealth(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.get(t, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "File Sharing API is running", decode[messageResponse](t, rec).Message)
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = ts.get(t, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.get(t, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToken_FormAndJSON(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	tok := ts.login(t, "opsuser")
	require.Len(t, strings.Split(tok, "."), 3)

	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"username":"clientuser","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[tokenResponse](t, rec)
	require.Equal(t, "bearer", out.TokenType)
	require.True(t, ts.clock.Now().Add(30*time.Minute).Equal(out.ExpiresAt))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestToken_Rejections(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	post := func(body, ct string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(body))
		req.Header.Set("Content-Type", ct)
		return ts.do(t, req)
	}
	form := "application/x-www-form-urlencoded"

	wrong := requireError(t, post("username=opsuser&password=nope", form), http.StatusUnauthorized, codeInvalidCredentials)
	unknown := requireError(t, post("username=ghost&password=secret", form), http.StatusUnauthorized, codeInvalidCredentials)
	require.Equal(t, wrong.Detail, unknown.Detail, "unknown user and wrong password are indistinguishable")

	requireError(t, post("username=opsuser", form), http.StatusBadRequest, codeBadRequest)
	requireError(t, post("{", "application/json"), http.StatusBadRequest, codeBadRequest)
}

func TestMe(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	requireError(t, ts.get(t, "/me", ""), http.StatusUnauthorized, codeUnauthenticated)
	requireError(t, ts.get(t, "/me", "garbage"), http.StatusUnauthorized, codeUnauthenticated)

	rec := ts.get(t, "/me", ts.login(t, "clientuser"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "pbkdf2")
	id := decode[model.Identity](t, rec)
	require.Equal(t, "clientuser", id.Username)
	require.Equal(t, model.RoleClient, id.Role)
	require.Equal(t, "Client User", id.FullName)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()
	for header, want := range map[string]string{
		"":              "",
		"Bearer abc":    "abc",
		"bearer abc":    "abc",
		"BEARER  abc ":  "abc",
		"Basic abc":     "",
		"Bearer":        "",
		"abc":           "",
		"Token abc def": "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		require.Equal(t, want, bearerToken(req), "header %q", header)
	}
}

func TestRoleGating(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ops := ts.login(t, "opsuser")
	client := ts.login(t, "clientuser")

	requireError(t, ts.upload(t, client, "a.docx", []byte("x")), http.StatusForbidden, codeForbidden)
	requireError(t, ts.upload(t, "", "a.docx", []byte("x")), http.StatusUnauthorized, codeUnauthenticated)
	requireError(t, ts.get(t, "/client/files", ops), http.StatusForbidden, codeForbidden)
	requireError(t, ts.get(t, "/client/download/whatever", ops), http.StatusForbidden, codeForbidden)
	requireError(t, ts.get(t, "/client/files", ""), http.StatusUnauthorized, codeUnauthenticated)
}

func TestUpload_Validation(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, WithMaxUploadBytes(1024))
	ops := ts.login(t, "opsuser")

	requireError(t, ts.upload(t, ops, "malware.exe", []byte("x")), http.StatusBadRequest, codeUnsupportedType)
	requireError(t, ts.upload(t, ops, "big.docx", bytes.Repeat([]byte("a"), 4096)), http.StatusRequestEntityTooLarge, codeTooLarge)

	req := httptest.NewRequest(http.MethodPost, "/ops/upload", strings.NewReader("not multipart"))
	req.Header.Set("Authorization", "Bearer "+ops)
	req.Header.Set("Content-Type", "text/plain")
	requireError(t, ts.do(t, req), http.StatusBadRequest, codeBadRequest)

	requireError(t, ts.upload(t, ops, ".docx", []byte("x")), http.StatusBadRequest, codeUnsupportedType)

	rec := ts.upload(t, ops, "Report.PPTX", []byte("slides"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCreateGrant_NotFound(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	client := ts.login(t, "clientuser")

	e := requireError(t, ts.get(t, "/client/download/6f1c1b0e-3a4f-4f6e-9a59-0f3b5e3c2a11", client), http.StatusNotFound, codeNotFound)
	require.Equal(t, "File not found", e.Detail)
	requireError(t, ts.get(t, "/client/download/not-a-uuid", client), http.StatusNotFound, codeNotFound)
}

func TestRedeem_Unknown(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	e := requireError(t, ts.get(t, "/download-file/bogus", ""), http.StatusNotFound, codeNotFound)
	require.Equal(t, "Invalid download link", e.Detail)
}

// Scenario: opsuser uploads Q3.xlsx; clientuser lists it, requests a link
// and downloads the original bytes exactly once.
func TestScenario_Q3(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	content := []byte("PK\x03\x04 quarterly figures")

	rec := ts.upload(t, ts.login(t, "opsuser"), "Q3.xlsx", content)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	up := decode[uploadResponse](t, rec)
	require.Equal(t, "File uploaded successfully", up.Message)
	require.NotEmpty(t, up.FileID)

	client := ts.login(t, "clientuser")
	rec = ts.get(t, "/client/files", client)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	require.Equal(t, up.FileID, list[0]["file_id"])
	require.Equal(t, "Q3.xlsx", list[0]["filename"])
	require.Equal(t, "opsuser", list[0]["uploaded_by"])
	require.Contains(t, list[0], "upload_date")
	require.NotContains(t, list[0], "locator")

	rec = ts.get(t, "/client/download/"+up.FileID, client)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	g := decode[grantResponse](t, rec)
	require.Equal(t, "success", g.Message)
	require.True(t, strings.HasPrefix(g.DownloadLink, "/download-file/"))

	rec = ts.get(t, g.DownloadLink, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, content, rec.Body.Bytes())
	require.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	disp, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	require.Equal(t, "attachment", disp)
	require.Equal(t, "Q3.xlsx", params["filename"])

	requireError(t, ts.get(t, g.DownloadLink, ""), http.StatusNotFound, codeNotFound)
}

func TestScenario_ExpiredGrant(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.upload(t, ts.login(t, "opsuser"), "Q3.xlsx", []byte("x"))
	up := decode[uploadResponse](t, rec)
	client := ts.login(t, "clientuser")
	var links []string
	for i := 0; i < 3; i++ {
		links = append(links, decode[grantResponse](t, ts.get(t, "/client/download/"+up.FileID, client)).DownloadLink)
	}

	ts.clock.Advance(30*time.Minute - time.Second)
	require.Equal(t, http.StatusOK, ts.get(t, links[0], "").Code)

	ts.clock.Advance(time.Second)
	requireError(t, ts.get(t, links[1], ""), http.StatusNotFound, codeNotFound)

	ts.clock.Advance(time.Second)
	e := requireError(t, ts.get(t, links[2], ""), http.StatusNotFound, codeNotFound)
	require.Equal(t, "Invalid download link", e.Detail)
}

func TestRedeem_MissingBytesKeepsLink(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ctx := context.Background()

	up := decode[uploadResponse](t, ts.upload(t, ts.login(t, "opsuser"), "Q3.xlsx", []byte("numbers")))
	g := decode[grantResponse](t, ts.get(t, "/client/download/"+up.FileID, ts.login(t, "clientuser")))

	locator := up.FileID + ".xlsx"
	require.NoError(t, ts.blobs.Delete(ctx, locator))
	e := requireError(t, ts.get(t, g.DownloadLink, ""), http.StatusNotFound, codeNotFound)
	require.Equal(t, "File not found", e.Detail)

	_, err := ts.blobs.Put(ctx, locator, strings.NewReader("numbers"), 7)
	require.NoError(t, err)
	rec := ts.get(t, g.DownloadLink, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "numbers", rec.Body.String())

	requireError(t, ts.get(t, g.DownloadLink, ""), http.StatusNotFound, codeNotFound)
}

func TestScenario_BearerExpires(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	client := ts.login(t, "clientuser")

	ts.clock.Advance(30*time.Minute - time.Second)
	require.Equal(t, http.StatusOK, ts.get(t, "/client/files", client).Code)
	ts.clock.Advance(time.Second)
	requireError(t, ts.get(t, "/client/files", client), http.StatusUnauthorized, codeUnauthenticated)
}

func TestListFiles_EmptyIsArray(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	rec := ts.get(t, "/client/files", ts.login(t, "clientuser"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}
