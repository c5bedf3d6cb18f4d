package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/filedrop/service/internal/storage"
)

// keyAttempts bounds how often an upload re-mints keys after a collision.
const keyAttempts = 3

// SignedURLTTL is how long a minted download link stays valid.
const SignedURLTTL = 5 * time.Minute

// Service orchestrates the object lifecycle. It checks the ACL before any
// storage or metadata mutation and dispatches byte operations to the backend
// recorded on each file, not the one currently configured for uploads.
type Service struct {
	store         RecordStore
	acl           *Evaluator
	backends      *storage.Registry
	uploadBackend string
	envFilePath   string
}

// NewService creates a new file Service. uploadBackend is the tag new
// uploads are stored under; it must be registered in backends.
func NewService(store RecordStore, acl *Evaluator, backends *storage.Registry, uploadBackend, envFilePath string) *Service {
	return &Service{
		store:         store,
		acl:           acl,
		backends:      backends,
		uploadBackend: uploadBackend,
		envFilePath:   envFilePath,
	}
}

// UploadOutput carries the two capability tokens returned for a new object.
// The private key is shown here once and is never retrievable again.
type UploadOutput struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// Download is an open byte stream plus the content type to serve it with.
// The caller owns Content and must close it.
type Download struct {
	Content  io.ReadCloser
	MimeType string
}

// Upload persists the payload and its metadata and returns the fresh key
// pair. Bytes are written before metadata; if the metadata insert fails the
// stored bytes are rolled back so the object is absent rather than orphaned.
func (s *Service) Upload(ctx context.Context, actor Actor, fileName, mimeType string, r io.Reader) (*UploadOutput, error) {
	if fileName == "" {
		return nil, fmt.Errorf("%w: missing filename", ErrBadInput)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	if !s.acl.CanPerform(actor, ActionCreate, nil) {
		return nil, ErrUnauthorized
	}

	backend, ok := s.backends.Get(s.uploadBackend)
	if !ok {
		return nil, fmt.Errorf("%w: backend %q not configured", storage.ErrUnavailable, s.uploadBackend)
	}

	// buffered so a key-collision retry can replay the payload
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read payload: %v", ErrBadInput, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrBadInput)
	}

	var lastErr error
	for attempt := 0; attempt < keyAttempts; attempt++ {
		publicKey := uuid.NewString()
		privateKey := uuid.NewString()
		path := objectName(s.uploadBackend, publicKey, fileName)

		if err := backend.Store(ctx, path, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
			return nil, fmt.Errorf("store bytes: %w", err)
		}

		rec := &Record{
			PublicKey:   publicKey,
			PrivateKey:  privateKey,
			FileName:    fileName,
			MimeType:    mimeType,
			StorageType: s.uploadBackend,
			StoragePath: path,
			CreatedBy:   actor.ID,
		}
		if _, err := s.store.Save(ctx, rec); err != nil {
			s.rollbackBytes(ctx, backend, path)
			if errors.Is(err, ErrKeyCollision) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("save metadata: %w", err)
		}

		return &UploadOutput{PublicKey: publicKey, PrivateKey: privateKey}, nil
	}
	return nil, lastErr
}

// Download looks up the record for publicKey and opens its bytes from
// whichever backend the record was created on. Reads carry no ownership
// check: holding the public key is the read capability.
func (s *Service) Download(ctx context.Context, publicKey string) (*Download, error) {
	rec, err := s.store.GetByPublicKey(ctx, publicKey)
	if err != nil {
		return nil, err
	}

	// inline records carry their bytes in the metadata row
	if rec.FileBuffer != nil {
		return &Download{
			Content:  io.NopCloser(bytes.NewReader(rec.FileBuffer)),
			MimeType: rec.MimeType,
		}, nil
	}

	backend, ok := s.backends.Get(rec.StorageType)
	if !ok {
		return nil, fmt.Errorf("%w: backend %q not configured", storage.ErrUnavailable, rec.StorageType)
	}

	body, contentType, err := backend.Retrieve(ctx, rec.StoragePath)
	if errors.Is(err, storage.ErrNotFound) {
		// metadata claims the object exists but the backend lost it
		log.Printf("file: bytes for record %s missing from %q backend at %q", rec.ID, rec.StorageType, rec.StoragePath)
		return nil, fmt.Errorf("%w: stored bytes missing", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve bytes: %w", err)
	}

	mimeType := rec.MimeType
	if mimeType == "" {
		mimeType = contentType
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &Download{Content: body, MimeType: mimeType}, nil
}

// Delete removes the object identified by privateKey: ACL check against the
// record's owner, then backend bytes, then metadata. A failure after the
// bytes are gone is reported as ErrInconsistent, never as success.
func (s *Service) Delete(ctx context.Context, actor Actor, privateKey string) (string, error) {
	rec, err := s.store.GetByPrivateKey(ctx, privateKey)
	if err != nil {
		return "", err
	}

	if !s.acl.CanPerform(actor, ActionDelete, rec) {
		return "", ErrUnauthorized
	}

	if rec.StoragePath != "" {
		backend, ok := s.backends.Get(rec.StorageType)
		if !ok {
			return "", fmt.Errorf("%w: backend %q not configured", storage.ErrUnavailable, rec.StorageType)
		}
		// idempotent: already-absent bytes (e.g. the sweeper got there
		// first) are success
		if err := backend.Remove(ctx, rec.StoragePath); err != nil {
			return "", fmt.Errorf("remove bytes: %w", err)
		}
	}

	if err := s.store.Delete(ctx, rec.ID); err != nil {
		log.Printf("file: record %s bytes removed but metadata delete failed: %v", rec.ID, err)
		return "", fmt.Errorf("%w: %v", ErrInconsistent, err)
	}

	return fmt.Sprintf("File %s deleted successfully", rec.FileName), nil
}

// DeleteByPath reconciles metadata for a path whose bytes are already gone.
// Used by the retention sweeper, which runs with system authority and
// therefore skips the ACL. A record that is already gone is success.
func (s *Service) DeleteByPath(ctx context.Context, path string) error {
	rec, err := s.store.GetByPath(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, rec.ID)
}

// SignedURL mints a time-limited direct download link for records whose
// backend supports presigning.
func (s *Service) SignedURL(ctx context.Context, publicKey string) (string, error) {
	rec, err := s.store.GetByPublicKey(ctx, publicKey)
	if err != nil {
		return "", err
	}

	backend, ok := s.backends.Get(rec.StorageType)
	if !ok {
		return "", fmt.Errorf("%w: backend %q not configured", storage.ErrUnavailable, rec.StorageType)
	}
	signer, ok := backend.(storage.Signer)
	if !ok {
		return "", fmt.Errorf("%w: backend %q cannot mint signed links", ErrBadInput, rec.StorageType)
	}
	return signer.SignedURL(ctx, rec.StoragePath, SignedURLTTL)
}

// UpdateEnv sets one key in the service's env file. Admin-only via Manage.
func (s *Service) UpdateEnv(actor Actor, key, value string) (string, error) {
	if !s.acl.CanPerform(actor, ActionManage, nil) {
		return "", ErrUnauthorized
	}
	if key == "" {
		return "", fmt.Errorf("%w: missing key", ErrBadInput)
	}

	env, err := godotenv.Read(s.envFilePath)
	if err != nil {
		return "", fmt.Errorf("read env file: %w", err)
	}
	env[key] = value
	if err := godotenv.Write(env, s.envFilePath); err != nil {
		return "", fmt.Errorf("write env file: %w", err)
	}
	return fmt.Sprintf("%s updated successfully to %s", key, value), nil
}

// rollbackBytes best-effort removes bytes stored for a record that never
// made it into metadata.
func (s *Service) rollbackBytes(ctx context.Context, backend storage.Backend, path string) {
	if err := backend.Remove(ctx, path); err != nil {
		log.Printf("file: rollback of %q failed, orphaned bytes left behind: %v", path, err)
	}
}

// objectName derives the backend object name. Local names embed a fresh
// token so they cannot collide; remote names embed the public key, matching
// what a retry of the same upload attempt would produce.
func objectName(tag, publicKey, fileName string) string {
	base := filepath.Base(fileName)
	if tag == StorageLocal {
		return uuid.NewString() + "-" + base
	}
	return publicKey + "-" + base
}
