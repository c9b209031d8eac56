package mirror

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ydideh810/nidamllm/pkg/infra/logger"
	"github.com/ydideh810/nidamllm/pkg/recipe"
	"github.com/ydideh810/nidamllm/pkg/repo"
)

// Syncer maintains local mirrors of registered sources. New content
// is fetched into a staging directory and swapped in with a rename,
// so readers always see either the previous revision or the new one,
// never a partial tree.
type Syncer struct {
	root        string
	catalogFile string
	fetcher     Fetcher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSyncer returns a syncer rooted at root. catalogFile is the name
// of the catalog document expected at the top of every source.
func NewSyncer(root, catalogFile string, f Fetcher) *Syncer {
	return &Syncer{
		root:        root,
		catalogFile: catalogFile,
		fetcher:     f,
		locks:       make(map[string]*sync.Mutex),
	}
}

func (s *Syncer) aliasLock(alias string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[alias]
	if !ok {
		l = &sync.Mutex{}
		s.locks[alias] = l
	}
	return l
}

func (s *Syncer) aliasDir(alias string) string {
	return filepath.Join(s.root, alias)
}

func (s *Syncer) revisionDir(alias, revision string) string {
	return filepath.Join(s.aliasDir(alias), "revisions", revision)
}

func (s *Syncer) mirrorFrom(alias string, st state) Mirror {
	return Mirror{
		Alias:        alias,
		Revision:     st.Revision,
		Path:         s.revisionDir(alias, st.Revision),
		LastSyncedAt: st.LastSyncedAt,
		Status:       st.Status,
		Reason:       st.Reason,
	}
}

// Load returns the current mirror for alias without contacting the
// remote. The second return is false when no sync ever succeeded.
func (s *Syncer) Load(alias string) (Mirror, bool, error) {
	if !repo.ValidAlias(alias) {
		return Mirror{}, false, repo.ErrInvalidAlias.WithMessagef("alias %q", alias)
	}
	st, ok, err := loadState(s.aliasDir(alias))
	if err != nil || !ok {
		return Mirror{}, false, err
	}
	m := s.mirrorFrom(alias, st)
	return m, m.Usable(), nil
}

// Purge removes the mirror directory for alias, state included. The
// next Sync fetches from scratch.
func (s *Syncer) Purge(alias string) error {
	if !repo.ValidAlias(alias) {
		return repo.ErrInvalidAlias.WithMessagef("alias %q", alias)
	}
	lock := s.aliasLock(alias)
	lock.Lock()
	defer lock.Unlock()
	return os.RemoveAll(s.aliasDir(alias))
}

// ReadCatalog reads the catalog document of a usable mirror.
func (s *Syncer) ReadCatalog(m Mirror) ([]byte, error) {
	return os.ReadFile(filepath.Join(m.Path, s.catalogFile))
}

// Sync refreshes the mirror for src. On remote failure the previous
// revision keeps serving and the mirror degrades to stale; the error
// describes the failure but local state stays consistent either way.
func (s *Syncer) Sync(ctx context.Context, src repo.Source) (Mirror, error) {
	log := logger.WithContext(logger.SetSource(ctx, src.Alias))

	if !repo.ValidAlias(src.Alias) {
		return Mirror{}, repo.ErrInvalidAlias.WithMessagef("alias %q", src.Alias)
	}
	loc, err := repo.ParseLocation(src.URL)
	if err != nil {
		return Mirror{}, err
	}

	l := s.aliasLock(src.Alias)
	l.Lock()
	defer l.Unlock()

	dir := s.aliasDir(src.Alias)
	if err := os.MkdirAll(filepath.Join(dir, "revisions"), 0o755); err != nil {
		return Mirror{}, ErrFetchFailed.WithCause(err)
	}
	st, had, err := loadState(dir)
	if err != nil {
		return Mirror{}, ErrFetchFailed.WithCause(err)
	}

	rev, err := s.fetcher.RemoteRevision(ctx, loc)
	if err != nil {
		return s.degrade(src.Alias, st, had, err)
	}

	if had && rev == st.Revision {
		if _, statErr := os.Stat(s.revisionDir(src.Alias, rev)); statErr == nil {
			st.LastSyncedAt = time.Now().UTC()
			st.Status = StatusFresh
			st.Reason = ""
			if err := saveState(dir, st); err != nil {
				return Mirror{}, ErrFetchFailed.WithCause(err)
			}
			log.Debug("mirror already at remote revision", "revision", rev)
			return s.mirrorFrom(src.Alias, st), nil
		}
	}

	staging := s.revisionDir(src.Alias, rev) + ".tmp-" + uuid.NewString()[:8]
	actual, err := s.fetcher.Fetch(ctx, loc, staging)
	if err != nil {
		os.RemoveAll(staging)
		return s.degrade(src.Alias, st, had, err)
	}

	// A source whose catalog document does not parse at all never
	// replaces a working mirror.
	doc, err := os.ReadFile(filepath.Join(staging, s.catalogFile))
	if err == nil {
		err = recipe.CheckDocument(doc)
	}
	if err != nil {
		os.RemoveAll(staging)
		return s.degrade(src.Alias, st, had, err)
	}

	final := s.revisionDir(src.Alias, actual)
	if _, statErr := os.Stat(final); statErr == nil {
		os.RemoveAll(staging)
	} else if err := os.Rename(staging, final); err != nil {
		os.RemoveAll(staging)
		return s.degrade(src.Alias, st, had, err)
	}
	if had && st.Revision != "" && st.Revision != actual {
		os.RemoveAll(s.revisionDir(src.Alias, st.Revision))
	}

	st = state{
		Revision:     actual,
		LastSyncedAt: time.Now().UTC(),
		Status:       StatusFresh,
	}
	if err := saveState(dir, st); err != nil {
		return Mirror{}, ErrFetchFailed.WithCause(err)
	}
	log.Info("mirror synced", "revision", actual)
	return s.mirrorFrom(src.Alias, st), nil
}

// degrade records a failed refresh. With a prior revision on disk
// the mirror turns stale and stays usable; without one it is marked
// fetch_failed.
func (s *Syncer) degrade(alias string, st state, had bool, cause error) (Mirror, error) {
	dir := s.aliasDir(alias)
	if had && st.Revision != "" {
		st.Status = StatusStale
		st.Reason = cause.Error()
		if err := saveState(dir, st); err != nil {
			return Mirror{}, ErrFetchFailed.WithCause(err)
		}
		logger.Default().Warn("mirror refresh failed, serving stale revision",
			"source", alias, "revision", st.Revision, "error", cause)
		return s.mirrorFrom(alias, st), ErrUnreachable.WithCause(cause)
	}

	st = state{Status: StatusFetchFailed, Reason: cause.Error()}
	if err := saveState(dir, st); err != nil {
		return Mirror{}, ErrFetchFailed.WithCause(err)
	}
	logger.Default().Error("mirror fetch failed", "source", alias, "error", cause)
	return s.mirrorFrom(alias, st), ErrFetchFailed.WithCause(cause)
}

// Entry is one source's outcome within a Report.
type Entry struct {
	Alias  string
	Mirror Mirror
	Err    error
}

// Report aggregates the outcome of syncing several sources.
type Report struct {
	Entries []Entry
}

// Failed returns the entries whose sync attempt errored.
func (r Report) Failed() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Err != nil {
			out = append(out, e)
		}
	}
	return out
}

// SyncAll refreshes every source concurrently. A failing source
// never blocks or fails the others; per-source outcomes land in the
// report in the order the sources were given.
func (s *Syncer) SyncAll(ctx context.Context, sources []repo.Source) Report {
	entries := make([]Entry, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src repo.Source) {
			defer wg.Done()
			m, err := s.Sync(ctx, src)
			entries[i] = Entry{Alias: src.Alias, Mirror: m, Err: err}
		}(i, src)
	}
	wg.Wait()
	return Report{Entries: entries}
}
