// Package file implements the object lifecycle: upload, download, and
// delete, the dual-key metadata record behind each stored object, and the
// ownership rules that guard mutations.
package file

import (
	"context"
	"errors"
	"time"
)

// Backend tags recorded on each file at creation. A record keeps its tag for
// life; reconfiguring the service never moves existing bytes.
const (
	StorageLocal  = "local"
	StorageS3     = "s3"
	StorageInline = "inline"
)

// Record is the persistent metadata for one stored object. The internal ID
// never leaves the service; the public and private keys are the only
// externally visible handles.
type Record struct {
	ID          string    `json:"id"`
	PublicKey   string    `json:"publicKey"`
	PrivateKey  string    `json:"privateKey"`
	FileName    string    `json:"fileName"`
	MimeType    string    `json:"mimeType"`
	StorageType string    `json:"storageType"`
	StoragePath string    `json:"storagePath,omitempty"`
	FileBuffer  []byte    `json:"-"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ErrNotFound is returned when no record exists for the given key or path.
var ErrNotFound = errors.New("file not found")

// ErrUnauthorized is returned when the ACL denies the attempted action.
var ErrUnauthorized = errors.New("action not allowed")

// ErrBadInput is returned when the upload payload is missing or malformed.
var ErrBadInput = errors.New("invalid upload payload")

// ErrKeyCollision is returned when a freshly minted key already exists.
// With random 128-bit tokens this only happens under test or misuse, but
// the store must reject rather than overwrite.
var ErrKeyCollision = errors.New("key collision on insert")

// ErrInconsistent is returned when a delete removed the stored bytes but
// could not remove the metadata record. Operators must reconcile by hand.
var ErrInconsistent = errors.New("inconsistent state: bytes removed but metadata remains")

// RecordStore is the persistence contract for Records. Lookups are
// exact-match on unique keys; a missing row is ErrNotFound, an unreachable
// store is any other error. No method here checks authorization.
type RecordStore interface {
	Save(ctx context.Context, rec *Record) (string, error)
	GetByID(ctx context.Context, id string) (*Record, error)
	GetByPublicKey(ctx context.Context, key string) (*Record, error)
	GetByPrivateKey(ctx context.Context, key string) (*Record, error)
	GetByPath(ctx context.Context, path string) (*Record, error)
	// Delete removes the record; deleting a missing id is a no-op so
	// concurrent deletes converge instead of failing.
	Delete(ctx context.Context, id string) error
}
