// Package storage defines the interface for object storage backends.
// Which backend receives new uploads is a deployment-time choice; every
// stored record carries the tag of the backend holding its bytes, so
// reads and deletes dispatch per record through the Registry.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a backend has no object at the given path,
// even though metadata may still claim one exists.
var ErrNotFound = errors.New("object not found in storage backend")

// ErrUnavailable is returned when the backend infrastructure is unreachable.
// Callers must treat this as distinct from ErrNotFound.
var ErrUnavailable = errors.New("storage backend unavailable")

// Backend is the capability set shared by all storage variants.
type Backend interface {
	// Store writes the object under path. Storing twice under the same path
	// overwrites, so a caller that generated the path up front may retry
	// without creating duplicate visible objects.
	Store(ctx context.Context, path string, r io.Reader, size int64, contentType string) error

	// Retrieve opens the object at path for reading. The returned content
	// type may be empty when the backend does not track one.
	Retrieve(ctx context.Context, path string) (io.ReadCloser, string, error)

	// Remove deletes the object at path. Removing an already-absent object
	// is not an error.
	Remove(ctx context.Context, path string) error
}

// Signer is implemented by backends that can mint time-limited access URLs.
type Signer interface {
	SignedURL(ctx context.Context, path string, expiry time.Duration) (string, error)
}

// Registry maps backend tags to the Backend instances configured at startup.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register binds a backend tag to an instance. Called once per variant
// during wiring, before any requests are served.
func (r *Registry) Register(tag string, b Backend) {
	r.backends[tag] = b
}

// Get returns the backend registered under tag.
func (r *Registry) Get(tag string) (Backend, bool) {
	b, ok := r.backends[tag]
	return b, ok
}

// retry runs op up to attempts times, backing off between tries, as long as
// the failure is ErrUnavailable. Any other outcome is returned immediately.
// Only safe for idempotent operations (store to a fixed path, remove).
func retry(ctx context.Context, attempts int, op func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = op()
		if err == nil || !errors.Is(err, ErrUnavailable) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 200 * time.Millisecond):
		}
	}
	return err
}
