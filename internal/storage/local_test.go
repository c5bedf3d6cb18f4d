package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b, err := NewLocalBackend(dir)
	require.NoError(t, err)
	ctx := context.Background()

	err = b.Store(ctx, "tok-note.txt", strings.NewReader("hello world"), 11, "text/plain")
	require.NoError(t, err)

	// bytes land under the configured dir, nothing else left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "tok-note.txt", entries[0].Name())

	body, contentType, err := b.Retrieve(ctx, "tok-note.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "hello world", string(data))
	assert.Empty(t, contentType, "local backend tracks no content type")

	require.NoError(t, b.Remove(ctx, "tok-note.txt"))
	_, _, err = b.Retrieve(ctx, "tok-note.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalBackendStoreOverwrites(t *testing.T) {
	b, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.Store(ctx, "tok-a.txt", strings.NewReader("first"), 5, ""))
	// a retry with the same path must not create a second visible object
	require.NoError(t, b.Store(ctx, "tok-a.txt", strings.NewReader("second"), 6, ""))

	body, _, err := b.Retrieve(ctx, "tok-a.txt")
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(b.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalBackendRemoveIsIdempotent(t *testing.T) {
	b, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, b.Remove(context.Background(), "never-existed.bin"))
}

func TestLocalBackendRetrieveMissing(t *testing.T) {
	b, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	_, _, err = b.Retrieve(context.Background(), "gone.bin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalBackendRejectsEscapingPaths(t *testing.T) {
	dir := t.TempDir()
	b, err := NewLocalBackend(dir)
	require.NoError(t, err)
	ctx := context.Background()

	for _, path := range []string{"", "../escape.txt", "sub/dir.txt", filepath.Join("..", "..", "etc", "passwd")} {
		assert.Error(t, b.Store(ctx, path, strings.NewReader("x"), 1, ""), path)
		_, _, err := b.Retrieve(ctx, path)
		assert.Error(t, err, path)
		assert.Error(t, b.Remove(ctx, path), path)
	}
}

func TestNewLocalBackendCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	_, err := NewLocalBackend(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
