// Package local implements the storage interface over a local
// filesystem directory.
//
// Locators are file:// URLs. Objects are chmodded read-only once
// written, so a rerun against the same scope fails with ErrSealed
// instead of quietly replacing published bytes.
package local

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/anxbt/InfraProof/pkg/storage"
)

// Config configures a local store.
type Config struct {
	// BaseDir is the directory artifact objects are written under
	// (required). Created if missing.
	BaseDir string
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("local store: base dir is required")
	}
	return nil
}

// Store implements storage.Store for a local directory.
//
// ContentType and Visibility have no filesystem representation and are
// ignored; the locator layout mirrors the S3 key layout.
type Store struct {
	baseDir string
}

// Ensure Store implements the interface.
var _ storage.Store = (*Store)(nil)

// New creates a local store rooted at cfg.BaseDir.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := filepath.Abs(filepath.Clean(cfg.BaseDir))
	if err != nil {
		return nil, fmt.Errorf("local store: resolve base dir: %w", err)
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, &storage.StorageError{Op: "New", Backend: storage.BackendLocal, Bucket: base, Err: err}
	}

	return &Store{baseDir: base}, nil
}

// objectPath maps a slash-separated name into the base dir. Leading
// slashes and traversal segments are stripped.
func (s *Store) objectPath(name string) string {
	clean := strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(name)), "/")
	return filepath.Join(s.baseDir, filepath.FromSlash(clean))
}

// Locator returns the file:// URL for a name without performing I/O.
func (s *Store) Locator(name string) string {
	return "file://" + filepath.ToSlash(s.objectPath(name))
}

// Backend reports the storage backend type.
func (s *Store) Backend() storage.Backend {
	return storage.BackendLocal
}

// Put writes one artifact object under the base dir and seals it.
func (s *Store) Put(ctx context.Context, obj storage.Object) (string, error) {
	_ = ctx
	full := s.objectPath(obj.Name)

	if _, err := os.Stat(full); err == nil {
		return "", &storage.StorageError{
			Op:      "Put",
			Backend: storage.BackendLocal,
			Bucket:  s.baseDir,
			Name:    obj.Name,
			Err:     storage.ErrSealed,
		}
	} else if !os.IsNotExist(err) {
		return "", s.wrapError("Put", obj.Name, err)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", s.wrapError("Put", obj.Name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), "infraproof-put-*")
	if err != nil {
		return "", s.wrapError("Put", obj.Name, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(obj.Data); err != nil {
		return "", s.wrapError("Put", obj.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", s.wrapError("Put", obj.Name, err)
	}

	if err := os.Rename(tmpName, full); err != nil {
		return "", s.wrapError("Put", obj.Name, err)
	}
	if err := os.Chmod(full, 0o444); err != nil {
		return "", s.wrapError("Put", obj.Name, err)
	}

	return s.Locator(obj.Name), nil
}

// Close releases any resources held by the store.
func (s *Store) Close() error {
	return nil
}

// wrapError normalizes filesystem errors to storage sentinels.
func (s *Store) wrapError(op, name string, err error) error {
	wrapped := &storage.StorageError{
		Op:      op,
		Backend: storage.BackendLocal,
		Bucket:  s.baseDir,
		Name:    name,
		Err:     err,
	}
	if os.IsNotExist(err) {
		wrapped.Err = storage.ErrNotFound
	}
	if os.IsPermission(err) {
		wrapped.Err = storage.ErrAccessDenied
	}
	return wrapped
}
