package mirror

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ydideh810/nidamllm/pkg/repo"
)

const catalogName = "recipes.yaml"

const validDoc = `
llama3:8b:
  project: p
  engine_config:
    model: org/m
`

// fakeFetcher serves revisions and documents from memory, keyed by
// the repository name of the location.
type fakeFetcher struct {
	mu         sync.Mutex
	revisions  map[string]string
	docs       map[string]string
	noCatalog  map[string]bool
	revErr     map[string]error
	fetchErr   map[string]error
	fetchCalls int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		revisions: make(map[string]string),
		docs:      make(map[string]string),
		noCatalog: make(map[string]bool),
		revErr:    make(map[string]error),
		fetchErr:  make(map[string]error),
	}
}

func (f *fakeFetcher) RemoteRevision(_ context.Context, loc repo.Location) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.revErr[loc.Repo]; err != nil {
		return "", err
	}
	return f.revisions[loc.Repo], nil
}

func (f *fakeFetcher) Fetch(_ context.Context, loc repo.Location, dir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if err := f.fetchErr[loc.Repo]; err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if !f.noCatalog[loc.Repo] {
		if err := os.WriteFile(filepath.Join(dir, catalogName), []byte(f.docs[loc.Repo]), 0o644); err != nil {
			return "", err
		}
	}
	return f.revisions[loc.Repo], nil
}

func source(alias, repoName string) repo.Source {
	return repo.Source{Alias: alias, URL: "https://github.com/acme/" + repoName + "@main"}
}

func TestSync_FirstFetch(t *testing.T) {
	f := newFakeFetcher()
	f.revisions["models"] = "rev1"
	f.docs["models"] = validDoc
	s := NewSyncer(t.TempDir(), catalogName, f)

	m, err := s.Sync(context.Background(), source("default", "models"))
	require.NoError(t, err)
	assert.Equal(t, StatusFresh, m.Status)
	assert.Equal(t, "rev1", m.Revision)
	assert.False(t, m.LastSyncedAt.IsZero())

	doc, err := s.ReadCatalog(m)
	require.NoError(t, err)
	assert.Equal(t, validDoc, string(doc))

	loaded, ok, err := s.Load("default")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, m.Revision, loaded.Revision)
}

func TestSync_NoOpOnUnchangedRevision(t *testing.T) {
	f := newFakeFetcher()
	f.revisions["models"] = "rev1"
	f.docs["models"] = validDoc
	s := NewSyncer(t.TempDir(), catalogName, f)

	first, err := s.Sync(context.Background(), source("default", "models"))
	require.NoError(t, err)
	require.Equal(t, 1, f.fetchCalls)

	second, err := s.Sync(context.Background(), source("default", "models"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.fetchCalls, "unchanged revision must not refetch")
	assert.Equal(t, StatusFresh, second.Status)
	assert.False(t, second.LastSyncedAt.Before(first.LastSyncedAt))
}

func TestSync_AdvancesRevisionAndPrunesOld(t *testing.T) {
	f := newFakeFetcher()
	f.revisions["models"] = "rev1"
	f.docs["models"] = validDoc
	s := NewSyncer(t.TempDir(), catalogName, f)

	old, err := s.Sync(context.Background(), source("default", "models"))
	require.NoError(t, err)

	f.mu.Lock()
	f.revisions["models"] = "rev2"
	f.mu.Unlock()

	m, err := s.Sync(context.Background(), source("default", "models"))
	require.NoError(t, err)
	assert.Equal(t, "rev2", m.Revision)

	_, statErr := os.Stat(old.Path)
	assert.True(t, os.IsNotExist(statErr), "previous revision is pruned")
}

func TestSync_DegradesToStale(t *testing.T) {
	f := newFakeFetcher()
	f.revisions["models"] = "rev1"
	f.docs["models"] = validDoc
	s := NewSyncer(t.TempDir(), catalogName, f)

	_, err := s.Sync(context.Background(), source("default", "models"))
	require.NoError(t, err)

	f.mu.Lock()
	f.revErr["models"] = errors.New("connection refused")
	f.mu.Unlock()

	m, err := s.Sync(context.Background(), source("default", "models"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreachable))
	assert.Equal(t, StatusStale, m.Status)
	assert.Equal(t, "rev1", m.Revision)
	assert.NotEmpty(t, m.Reason)
	assert.True(t, m.Usable(), "stale mirror still serves the old revision")

	doc, readErr := s.ReadCatalog(m)
	require.NoError(t, readErr)
	assert.Equal(t, validDoc, string(doc))
}

func TestSync_FetchFailedWithoutPriorMirror(t *testing.T) {
	f := newFakeFetcher()
	f.revErr["models"] = errors.New("no route to host")
	s := NewSyncer(t.TempDir(), catalogName, f)

	m, err := s.Sync(context.Background(), source("default", "models"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchFailed))
	assert.Equal(t, StatusFetchFailed, m.Status)
	assert.False(t, m.Usable())

	_, ok, err := s.Load("default")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSync_RejectsMalformedCatalog(t *testing.T) {
	f := newFakeFetcher()
	f.revisions["models"] = "rev1"
	f.docs["models"] = validDoc
	s := NewSyncer(t.TempDir(), catalogName, f)

	old, err := s.Sync(context.Background(), source("default", "models"))
	require.NoError(t, err)

	f.mu.Lock()
	f.revisions["models"] = "rev2"
	f.docs["models"] = "- a\n- top level list\n"
	f.mu.Unlock()

	m, err := s.Sync(context.Background(), source("default", "models"))
	require.Error(t, err)
	assert.Equal(t, StatusStale, m.Status)
	assert.Equal(t, "rev1", m.Revision, "broken upstream never replaces a working mirror")

	_, statErr := os.Stat(old.Path)
	assert.NoError(t, statErr)
}

func TestSync_RejectsMissingCatalog(t *testing.T) {
	f := newFakeFetcher()
	f.revisions["models"] = "rev1"
	f.noCatalog["models"] = true
	s := NewSyncer(t.TempDir(), catalogName, f)

	m, err := s.Sync(context.Background(), source("default", "models"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchFailed))
	assert.Equal(t, StatusFetchFailed, m.Status)
}

func TestPurge_DropsMirrorAndState(t *testing.T) {
	f := newFakeFetcher()
	f.revisions["models"] = "rev1"
	f.docs["models"] = validDoc
	s := NewSyncer(t.TempDir(), catalogName, f)

	_, err := s.Sync(context.Background(), source("default", "models"))
	require.NoError(t, err)

	require.NoError(t, s.Purge("default"))

	_, ok, err := s.Load("default")
	require.NoError(t, err)
	assert.False(t, ok)

	// Syncing again starts from a clean slate.
	m, err := s.Sync(context.Background(), source("default", "models"))
	require.NoError(t, err)
	assert.Equal(t, StatusFresh, m.Status)
	assert.Equal(t, 2, f.fetchCalls)
}

func TestSyncer_RefusesPathNavigationAliases(t *testing.T) {
	home := t.TempDir()
	sentinel := filepath.Join(home, "repos.json")
	require.NoError(t, os.WriteFile(sentinel, []byte(`{"sources":[]}`), 0o644))

	f := newFakeFetcher()
	f.revisions["models"] = "rev1"
	f.docs["models"] = validDoc
	s := NewSyncer(filepath.Join(home, "repos"), catalogName, f)

	// An alias of ".." would resolve to the parent of the mirrors
	// root; purging it must not touch anything up there.
	err := s.Purge("..")
	require.ErrorIs(t, err, repo.ErrInvalidAlias)
	assert.FileExists(t, sentinel)

	_, err = s.Sync(context.Background(), repo.Source{Alias: "..", URL: "https://github.com/acme/models@main"})
	require.ErrorIs(t, err, repo.ErrInvalidAlias)

	_, _, err = s.Load("../x")
	require.ErrorIs(t, err, repo.ErrInvalidAlias)
}

func TestSyncAll_FailureIsIsolated(t *testing.T) {
	f := newFakeFetcher()
	f.revisions["good"] = "rev1"
	f.docs["good"] = validDoc
	f.revErr["bad"] = errors.New("dns failure")
	s := NewSyncer(t.TempDir(), catalogName, f)

	report := s.SyncAll(context.Background(), []repo.Source{
		source("bad", "bad"),
		source("good", "good"),
	})
	require.Len(t, report.Entries, 2)

	assert.Equal(t, "bad", report.Entries[0].Alias)
	require.Error(t, report.Entries[0].Err)

	assert.Equal(t, "good", report.Entries[1].Alias)
	require.NoError(t, report.Entries[1].Err)
	assert.Equal(t, StatusFresh, report.Entries[1].Mirror.Status)

	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "bad", report.Failed()[0].Alias)
}

func TestMirror_FreshWithin(t *testing.T) {
	f := newFakeFetcher()
	f.revisions["models"] = "rev1"
	f.docs["models"] = validDoc
	s := NewSyncer(t.TempDir(), catalogName, f)

	m, err := s.Sync(context.Background(), source("default", "models"))
	require.NoError(t, err)
	assert.True(t, m.FreshWithin(0))
	assert.True(t, m.FreshWithin(time.Hour))

	m.Status = StatusStale
	assert.False(t, m.FreshWithin(time.Hour))
}
