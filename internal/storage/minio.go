package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// remote calls get a bounded number of tries before the failure surfaces
const remoteAttempts = 3

// MinioBackend stores objects in a MinIO (or any S3-compatible) bucket.
// Switching providers is a matter of endpoint and credentials — no code
// changes are needed since the API is S3-compatible.
type MinioBackend struct {
	client *minio.Client
	bucket string
}

// NewMinioBackend creates a MinIO client, ensures the bucket exists, and
// returns a ready-to-use MinioBackend. Objects stay private: the public and
// private keys held by record owners are the only access capabilities.
func NewMinioBackend(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioBackend, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx := context.Background()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		log.Printf("storage: created bucket %q", bucket)
	}

	return &MinioBackend{client: client, bucket: bucket}, nil
}

// Store streams r to the bucket under path. Transient infrastructure
// failures are retried before surfacing; a retry overwrites the same object
// name, so no duplicate visible objects are created.
func (b *MinioBackend) Store(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	return retry(ctx, remoteAttempts, func() error {
		_, err := b.client.PutObject(ctx, b.bucket, path, r, size, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return mapMinioErr("put", path, err)
		}
		return nil
	})
}

// Retrieve opens the object at path and reports its stored content type.
func (b *MinioBackend) Retrieve(ctx context.Context, path string) (io.ReadCloser, string, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", mapMinioErr("get", path, err)
	}

	// GetObject is lazy; Stat forces the first round trip so a missing
	// object fails here instead of on first read
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, "", mapMinioErr("stat", path, err)
	}

	return obj, info.ContentType, nil
}

// Remove deletes the object at path. Removing an absent object succeeds.
func (b *MinioBackend) Remove(ctx context.Context, path string) error {
	return retry(ctx, remoteAttempts, func() error {
		err := b.client.RemoveObject(ctx, b.bucket, path, minio.RemoveObjectOptions{})
		if err != nil {
			if err := mapMinioErr("remove", path, err); !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		return nil
	})
}

// SignedURL mints a time-limited presigned GET URL for the object at path.
func (b *MinioBackend) SignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	u, err := b.client.PresignedGetObject(ctx, b.bucket, path, expiry, url.Values{})
	if err != nil {
		return "", mapMinioErr("presign", path, err)
	}
	return u.String(), nil
}

// mapMinioErr translates MinIO errors into the package sentinels: missing
// objects become ErrNotFound, transport and server-side failures become
// ErrUnavailable, everything else is wrapped as-is.
func mapMinioErr(op, path string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket":
		return ErrNotFound
	case resp.Code == "" || resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %q: %v", ErrUnavailable, op, path, err)
	default:
		return fmt.Errorf("%s %q: %w", op, path, err)
	}
}
