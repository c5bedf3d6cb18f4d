package file

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `id, public_key, private_key, file_name, mime_type,
	storage_type, storage_path, file_buffer, created_by, created_at, updated_at`

// Repository is the Postgres-backed RecordStore.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Save inserts a new record and fills in its generated id and timestamps.
// The unique indexes on public_key and private_key turn a duplicate token
// into ErrKeyCollision so callers can retry with fresh keys.
func (r *Repository) Save(ctx context.Context, rec *Record) (string, error) {
	var path any
	if rec.StoragePath != "" {
		path = rec.StoragePath
	}
	var buf any
	if rec.FileBuffer != nil {
		buf = rec.FileBuffer
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO files (public_key, private_key, file_name, mime_type,
		                    storage_type, storage_path, file_buffer, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		rec.PublicKey, rec.PrivateKey, rec.FileName, rec.MimeType,
		rec.StorageType, path, buf, rec.CreatedBy,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrKeyCollision
		}
		return "", fmt.Errorf("save file record: %w", err)
	}
	return rec.ID, nil
}

// GetByID fetches a record by its internal id.
func (r *Repository) GetByID(ctx context.Context, id string) (*Record, error) {
	return r.getWhere(ctx, "id = $1", id)
}

// GetByPublicKey fetches a record by its read capability token.
func (r *Repository) GetByPublicKey(ctx context.Context, key string) (*Record, error) {
	return r.getWhere(ctx, "public_key = $1", key)
}

// GetByPrivateKey fetches a record by its delete capability token.
func (r *Repository) GetByPrivateKey(ctx context.Context, key string) (*Record, error) {
	return r.getWhere(ctx, "private_key = $1", key)
}

// GetByPath fetches a record by the backend object name holding its bytes.
func (r *Repository) GetByPath(ctx context.Context, path string) (*Record, error) {
	return r.getWhere(ctx, "storage_path = $1", path)
}

// Delete removes the record with the given id. A missing id is a no-op.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	return nil
}

func (r *Repository) getWhere(ctx context.Context, cond string, arg any) (*Record, error) {
	rec := &Record{}
	var path *string
	err := r.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM files WHERE `+cond, arg,
	).Scan(&rec.ID, &rec.PublicKey, &rec.PrivateKey, &rec.FileName, &rec.MimeType,
		&rec.StorageType, &path, &rec.FileBuffer, &rec.CreatedBy,
		&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file record: %w", err)
	}
	if path != nil {
		rec.StoragePath = *path
	}
	return rec, nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
