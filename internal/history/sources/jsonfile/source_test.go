package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querylens/querylens/internal/history"
)

func writeHistoryFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSelfRegistration(t *testing.T) {
	assert.True(t, history.IsRegistered("json"), "json source should be auto-registered")
}

func TestSource_OpenErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty path", func(t *testing.T) {
		err := New(nil).Open(ctx, history.Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires a path")
	})

	t.Run("missing file", func(t *testing.T) {
		err := New(nil).Open(ctx, history.Config{Path: filepath.Join(t.TempDir(), "absent.json")})
		require.Error(t, err)
	})

	t.Run("directory", func(t *testing.T) {
		err := New(nil).Open(ctx, history.Config{Path: t.TempDir()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is a directory")
	})
}

func TestSource_Entries(t *testing.T) {
	ctx := context.Background()
	path := writeHistoryFile(t, `[
		{"sql":"SELECT id FROM users","durationMs":12.5},
		{"query":"SELECT * FROM orders","elapsed_ms":3,"digest":"d9"}
	]`)

	src := New(nil)
	require.NoError(t, src.Open(ctx, history.Config{Path: path}))
	defer func() { _ = src.Close() }()

	entries, err := src.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, history.Entry{SQL: "SELECT id FROM users", DurationMs: 12.5}, entries[0])
	assert.Equal(t, history.Entry{SQL: "SELECT * FROM orders", DurationMs: 3, Hash: "d9"}, entries[1])
}

func TestSource_EntriesWrappedObject(t *testing.T) {
	ctx := context.Background()
	path := writeHistoryFile(t, `{"entries":[{"sql":"SELECT 1","duration_ms":1}]}`)

	src := New(nil)
	require.NoError(t, src.Open(ctx, history.Config{Path: path}))

	entries, err := src.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "SELECT 1", entries[0].SQL)
}

func TestSource_EntriesRereadsFile(t *testing.T) {
	ctx := context.Background()
	path := writeHistoryFile(t, `[{"sql":"SELECT 1"}]`)

	src := New(nil)
	require.NoError(t, src.Open(ctx, history.Config{Path: path}))

	entries, err := src.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, os.WriteFile(path, []byte(`[{"sql":"SELECT 1"},{"sql":"SELECT 2"}]`), 0o600))

	entries, err = src.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSource_EntriesMalformed(t *testing.T) {
	ctx := context.Background()
	path := writeHistoryFile(t, `{"entries": 7}`)

	src := New(nil)
	require.NoError(t, src.Open(ctx, history.Config{Path: path}))

	_, err := src.Entries(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse history file")
}

func TestSource_EntriesWithoutOpen(t *testing.T) {
	_, err := New(nil).Entries(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source not opened")
}
