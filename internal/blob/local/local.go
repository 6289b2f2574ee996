// Package local stores blobs as files in a single directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/and161185/docshare/internal/blob"
)

// Store keeps each blob in <dir>/<key>. Writes land in a temp file first and
// are renamed into place, so readers never observe partial content.
type Store struct {
	dir string
}

var _ blob.Store = (*Store)(nil)

// New creates dir if needed and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("local blob store: empty dir")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("local blob store: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// Put copies r into the blob named key. The locator is the key itself.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, _ int64) (string, error) {
	if err := blob.CheckKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, key)); err != nil {
		return "", err
	}
	return key, nil
}

// Open returns a reader for the blob at locator.
func (s *Store) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	if err := blob.CheckKey(locator); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, locator))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, blob.ErrNotExist
	}
	return f, err
}

// Delete removes the blob at locator. Missing blobs are not an error.
func (s *Store) Delete(_ context.Context, locator string) error {
	if err := blob.CheckKey(locator); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, locator))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
