package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// client is a thin HTTP client for the docshare API.
type client struct {
	base  string
	hc    *http.Client
	token string
}

func newClient(base string) *client {
	return &client{base: strings.TrimRight(base, "/"), hc: &http.Client{}}
}

type apiError struct {
	Status int
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

func (e *apiError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Detail, e.Status)
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type identity struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Disabled bool   `json:"disabled"`
	Role     string `json:"role"`
}

type fileInfo struct {
	FileID     string    `json:"file_id"`
	Filename   string    `json:"filename"`
	UploadedBy string    `json:"uploaded_by"`
	UploadDate time.Time `json:"upload_date"`
	Size       int64     `json:"size"`
}

type linkResponse struct {
	DownloadLink string    `json:"download_link"`
	Message      string    `json:"message"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// resolve turns a relative API path into an absolute URL.
func (c *client) resolve(link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return c.base + "/" + strings.TrimLeft(link, "/")
}

func (c *client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		ae := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(ae)
		return nil, ae
	}
	return resp, nil
}

func (c *client) doJSON(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	resp, err := c.do(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

// Login exchanges credentials for an access token.
func (c *client) Login(ctx context.Context, username, password string) (loginResponse, error) {
	form := url.Values{"username": {username}, "password": {password}}
	var out loginResponse
	err := c.doJSON(ctx, http.MethodPost, "/token", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &out)
	return out, err
}

// Me returns the caller identity.
func (c *client) Me(ctx context.Context) (identity, error) {
	var out identity
	err := c.doJSON(ctx, http.MethodGet, "/me", "", nil, &out)
	return out, err
}

// Upload streams a local file as multipart form field "file" and returns the
// new file id.
func (c *client) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	var out struct {
		Message string `json:"message"`
		FileID  string `json:"file_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/ops/upload", mw.FormDataContentType(), pr, &out); err != nil {
		_ = pr.Close()
		return "", err
	}
	return out.FileID, nil
}

// List returns every registered file.
func (c *client) List(ctx context.Context) ([]fileInfo, error) {
	var out []fileInfo
	err := c.doJSON(ctx, http.MethodGet, "/client/files", "", nil, &out)
	return out, err
}

// Link requests a download grant for fileID.
func (c *client) Link(ctx context.Context, fileID string) (linkResponse, error) {
	var out linkResponse
	err := c.doJSON(ctx, http.MethodGet, "/client/download/"+url.PathEscape(fileID), "", nil, &out)
	return out, err
}

// Fetch redeems a download link and writes the file into dir under the name
// the server reports. It returns the written path.
func (c *client) Fetch(ctx context.Context, link, dir string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, link, "", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	name, err := attachmentName(resp.Header.Get("Content-Disposition"))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, ".docshare-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	return dst, os.Rename(tmp.Name(), dst)
}

// attachmentName extracts a safe base filename from a Content-Disposition header.
func attachmentName(header string) (string, error) {
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return "", fmt.Errorf("content-disposition: %w", err)
	}
	name := filepath.Base(strings.ReplaceAll(params["filename"], `\`, "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", errors.New("content-disposition: missing filename")
	}
	return name, nil
}
