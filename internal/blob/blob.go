// Package blob defines the byte storage used for uploaded documents.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotExist is returned when a locator does not address a stored object.
var ErrNotExist = errors.New("blob does not exist")

// Store persists opaque byte streams. Put returns a locator that the other
// methods accept; callers must treat it as opaque.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) (string, error)
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
	Delete(ctx context.Context, locator string) error
}

// CheckKey rejects keys that could escape a storage root.
func CheckKey(key string) error {
	if key == "" || key == "." || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}
