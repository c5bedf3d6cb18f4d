package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalBackend stores objects as files in a single configured directory.
// Object paths are bare file names generated by the caller from a fresh
// unique token plus the original filename, so collisions cannot occur.
type LocalBackend struct {
	dir string
}

// NewLocalBackend creates the upload directory if needed and returns a
// ready-to-use LocalBackend.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %q: %w", dir, err)
	}
	return &LocalBackend{dir: dir}, nil
}

// Dir returns the directory this backend writes to.
func (b *LocalBackend) Dir() string {
	return b.dir
}

// Store writes the object atomically: bytes go to a temp file in the same
// directory first, then a rename puts them at the final name. A retry with
// the same path overwrites the previous write.
func (b *LocalBackend) Store(_ context.Context, path string, r io.Reader, _ int64, _ string) error {
	full, err := b.resolve(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("place %q: %w", path, err)
	}
	return nil
}

// Retrieve opens the stored file. A path that metadata still references but
// no longer exists on disk yields ErrNotFound so callers can surface the
// divergence.
func (b *LocalBackend) Retrieve(_ context.Context, path string) (io.ReadCloser, string, error) {
	full, err := b.resolve(path)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(full)
	if os.IsNotExist(err) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("open %q: %w", path, err)
	}
	// the filesystem does not track a content type; callers fall back to
	// the recorded MIME type
	return f, "", nil
}

// Remove deletes the stored file. An already-absent file is success.
func (b *LocalBackend) Remove(_ context.Context, path string) error {
	full, err := b.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %q: %w", path, err)
	}
	return nil
}

// resolve rejects paths that would escape the upload directory.
func (b *LocalBackend) resolve(path string) (string, error) {
	if path == "" || filepath.Base(path) != path {
		return "", fmt.Errorf("invalid object path %q", path)
	}
	return filepath.Join(b.dir, path), nil
}
