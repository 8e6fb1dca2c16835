// ABOUTME: Tests for the tool-call audit store
// ABOUTME: Covers Record defaults, newest-first listing, limits and on-disk persistence

package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordGeneratesIDAndTimestamp(t *testing.T) {
	s := setupTestStore(t)

	e := &Entry{
		RequestID:             "req-1",
		Tool:                  "listCollections",
		CredentialFingerprint: "abc123def456",
		Duration:              42 * time.Millisecond,
	}
	require.NoError(t, s.Record(context.Background(), e))

	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, tool := range []string{"listUsers", "getDocument", "searchDocuments"} {
		require.NoError(t, s.Record(ctx, &Entry{
			RequestID: "req",
			Tool:      tool,
			Code:      -32602 * (i % 2),
			Duration:  time.Duration(i) * time.Millisecond,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	entries, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "searchDocuments", entries[0].Tool)
	assert.Equal(t, "getDocument", entries[1].Tool)
	assert.Equal(t, -32602, entries[1].Code)
	assert.Equal(t, time.Millisecond, entries[1].Duration)
}

func TestStore_ListLimit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, &Entry{RequestID: "r", Tool: "listUsers"}))
	}

	entries, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStore_ListEmpty(t *testing.T) {
	s := setupTestStore(t)

	entries, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.db")
	ctx := context.Background()

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, &Entry{RequestID: "r", Tool: "getCollection"}))
	require.NoError(t, s.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "getCollection", entries[0].Tool)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, 100, normalizeLimit(0))
	assert.Equal(t, 100, normalizeLimit(-5))
	assert.Equal(t, 50, normalizeLimit(50))
	assert.Equal(t, 1000, normalizeLimit(5000))
}
