package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ydideh810/nidamllm/pkg/bundle"
)

func newTestStore(t *testing.T) *BundleSQLiteStore {
	t.Helper()
	s, err := NewBundleSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBundleSQLiteStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Now().UTC().Truncate(time.Second)
	b := bundle.Bundle{
		ContentHash: "aaaa",
		Location:    "/tmp/bundles/aaaa",
		Status:      bundle.StatusReady,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.Put(ctx, b))

	got, ok, err := s.Get(ctx, "aaaa")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, b, got)
}

func TestBundleSQLiteStore_PutIsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	b := bundle.Bundle{ContentHash: "aaaa", Status: bundle.StatusBuilding, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Put(ctx, b))

	b.Status = bundle.StatusFailed
	b.Reason = "builder exploded"
	b.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, s.Put(ctx, b))

	got, ok, err := s.Get(ctx, "aaaa")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bundle.StatusFailed, got.Status)
	assert.Equal(t, "builder exploded", got.Reason)
	assert.Equal(t, now, got.CreatedAt, "created_at survives updates")
}

func TestBundleSQLiteStore_DeleteAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for _, hash := range []string{"cccc", "aaaa", "bbbb"} {
		require.NoError(t, s.Put(ctx, bundle.Bundle{
			ContentHash: hash, Status: bundle.StatusReady, CreatedAt: now, UpdatedAt: now,
		}))
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "aaaa", all[0].ContentHash, "list is ordered by hash")

	require.NoError(t, s.Delete(ctx, "bbbb"))
	require.NoError(t, s.Delete(ctx, "bbbb"), "deleting twice is fine")

	all, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestBundleSQLiteStore_PersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	s, err := NewBundleSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, bundle.Bundle{
		ContentHash: "aaaa", Status: bundle.StatusReady, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, s.Close())

	s2, err := NewBundleSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	_, ok, err := s2.Get(ctx, "aaaa")
	require.NoError(t, err)
	assert.True(t, ok)
}
