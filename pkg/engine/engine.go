// Package engine wires the registry, mirrors, catalog index and
// bundle cache into the operations the CLI exposes.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ydideh810/nidamllm/pkg/bundle"
	"github.com/ydideh810/nidamllm/pkg/config"
	"github.com/ydideh810/nidamllm/pkg/index"
	"github.com/ydideh810/nidamllm/pkg/infra/cache"
	"github.com/ydideh810/nidamllm/pkg/infra/logger"
	"github.com/ydideh810/nidamllm/pkg/mirror"
	"github.com/ydideh810/nidamllm/pkg/recipe"
	"github.com/ydideh810/nidamllm/pkg/repo"
)

// Engine is the top-level facade. It keeps the catalog index in sync
// with the mirrors and hands out bundles for resolved recipes.
type Engine struct {
	cfg       *config.Config
	registry  *repo.Registry
	syncer    *mirror.Syncer
	parser    *recipe.Parser
	catalog   *index.Catalog
	generator *bundle.Generator

	// parsed memoizes per-revision parse results keyed alias@revision,
	// so rebuilding the index after a partial sync does not reparse
	// unchanged mirrors.
	parsed cache.Cache[recipe.Result]

	// indexSig fingerprints the source list and mirror revisions the
	// current catalog snapshot was built from. Rebuilds are skipped
	// while it holds.
	mu       sync.Mutex
	indexSig string
}

// New assembles an engine from its parts. The bundle store and
// builder are injected so the CLI can pick SQLite or memory and
// local or docker builds.
func New(cfg *config.Config, store bundle.Store, builder bundle.Builder, fetcher mirror.Fetcher) (*Engine, error) {
	parser, err := recipe.NewParser()
	if err != nil {
		return nil, err
	}
	if fetcher == nil {
		fetcher = &mirror.GitFetcher{Token: config.Token(), Timeout: cfg.Sync.FetchTimeoutD}
	}
	return &Engine{
		cfg:      cfg,
		registry: repo.NewRegistry(cfg.RegistryPath(), repo.WithBuiltin(config.DefaultSourceAlias, config.DefaultSourceURL)),
		syncer:   mirror.NewSyncer(cfg.MirrorsDir(), cfg.Sync.CatalogFile, fetcher),
		parser:   parser,
		catalog:  index.NewCatalog(),
		generator: bundle.NewGenerator(cfg.BundlesDir(), store, builder,
			cfg.Bundle.MaxBuildAttempts),
		parsed: cache.New[recipe.Result](cache.WithTTL(time.Hour), cache.WithMaxSize(64)),
	}, nil
}

// Registry exposes source management.
func (e *Engine) Registry() *repo.Registry { return e.registry }

// AddSource registers a source and mirrors it right away so its
// models resolve without a separate sync.
func (e *Engine) AddSource(ctx context.Context, alias, url string) (repo.Source, error) {
	src, err := e.registry.Add(ctx, alias, url)
	if err != nil {
		return repo.Source{}, err
	}
	if _, syncErr := e.syncer.Sync(ctx, src); syncErr != nil {
		logger.Default().Warn("initial sync of new source failed",
			"source", alias, "error", syncErr)
	}
	if err := e.rebuildIndex(ctx); err != nil {
		return src, err
	}
	return src, nil
}

// RemoveSource drops a source from the registry and the index. Its
// mirror directory stays on disk until clean.
func (e *Engine) RemoveSource(ctx context.Context, alias string) error {
	if err := e.registry.Remove(ctx, alias); err != nil {
		return err
	}
	return e.rebuildIndex(ctx)
}

// SetDefaultSource moves the default marker.
func (e *Engine) SetDefaultSource(ctx context.Context, alias string) error {
	if err := e.registry.SetDefault(ctx, alias); err != nil {
		return err
	}
	return e.rebuildIndex(ctx)
}

// ListSources returns the registered sources in registration order.
func (e *Engine) ListSources(ctx context.Context) ([]repo.Source, error) {
	return e.registry.List(ctx)
}

// SourceStatus pairs a source with its mirror state.
type SourceStatus struct {
	Source repo.Source
	Mirror mirror.Mirror
	Synced bool
}

// SourceStatuses reports every source with its local mirror state.
func (e *Engine) SourceStatuses(ctx context.Context) ([]SourceStatus, error) {
	sources, err := e.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SourceStatus, 0, len(sources))
	for _, src := range sources {
		m, ok, err := e.syncer.Load(src.Alias)
		if err != nil {
			return nil, err
		}
		out = append(out, SourceStatus{Source: src, Mirror: m, Synced: ok})
	}
	return out, nil
}

// Sync refreshes every registered source and rebuilds the index.
// Individual source failures land in the report; the index still
// rebuilds from whatever mirrors are usable.
func (e *Engine) Sync(ctx context.Context) (mirror.Report, error) {
	sources, err := e.registry.List(ctx)
	if err != nil {
		return mirror.Report{}, err
	}
	report := e.syncer.SyncAll(ctx, sources)
	if err := e.rebuildIndex(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// ensureFresh syncs only when some mirror is missing or older than
// sync.max_age, then makes sure the index is loaded.
func (e *Engine) ensureFresh(ctx context.Context) error {
	sources, err := e.registry.List(ctx)
	if err != nil {
		return err
	}
	stale := false
	for _, src := range sources {
		m, ok, err := e.syncer.Load(src.Alias)
		if err != nil {
			return err
		}
		if !ok || !m.FreshWithin(e.cfg.Sync.MaxAgeD) {
			stale = true
			break
		}
	}
	if stale {
		report := e.syncer.SyncAll(ctx, sources)
		for _, entry := range report.Failed() {
			logger.Default().Warn("source refresh failed",
				"source", entry.Alias, "error", entry.Err)
		}
	}
	return e.rebuildIndex(ctx)
}

// rebuildIndex parses every usable mirror and swaps a new snapshot
// into the catalog. Entry-level recipe errors are logged and skipped
// so one bad entry never hides the rest of a source.
func (e *Engine) rebuildIndex(ctx context.Context) error {
	sources, err := e.registry.List(ctx)
	if err != nil {
		return err
	}

	mirrors := make(map[string]mirror.Mirror, len(sources))
	var sig strings.Builder
	for _, src := range sources {
		m, ok, err := e.syncer.Load(src.Alias)
		if err != nil {
			return err
		}
		fmt.Fprintf(&sig, "%s|%s|%t|", src.Alias, src.URL, src.Default)
		if ok {
			mirrors[src.Alias] = m
			sig.WriteString(m.Revision)
		}
		sig.WriteByte('\n')
	}

	// Same sources, same revisions: the current snapshot is already
	// correct.
	e.mu.Lock()
	unchanged := sig.String() == e.indexSig
	e.mu.Unlock()
	if unchanged {
		return nil
	}

	records := make(map[string][]recipe.Record, len(sources))
	for _, src := range sources {
		m, ok := mirrors[src.Alias]
		if !ok {
			continue
		}
		res, err := e.parseMirror(ctx, src.Alias, m)
		if err != nil {
			logger.Default().Warn("skipping unreadable mirror",
				"source", src.Alias, "error", err)
			continue
		}
		for _, entryErr := range res.Errors {
			logger.Default().Warn("skipping invalid recipe entry",
				"source", src.Alias, "entry", entryErr.Key, "error", entryErr.Err)
		}
		records[src.Alias] = res.Records
	}

	e.catalog.Swap(index.Build(sources, records))
	e.mu.Lock()
	e.indexSig = sig.String()
	e.mu.Unlock()
	return nil
}

func (e *Engine) parseMirror(ctx context.Context, alias string, m mirror.Mirror) (recipe.Result, error) {
	key := fmt.Sprintf("%s@%s", alias, m.Revision)
	if res, ok := e.parsed.Get(ctx, key); ok {
		return res, nil
	}
	doc, err := e.syncer.ReadCatalog(m)
	if err != nil {
		return recipe.Result{}, err
	}
	res, err := e.parser.ParseDocument(doc, alias)
	if err != nil {
		return recipe.Result{}, err
	}
	e.parsed.Set(ctx, key, res, 0)
	return res, nil
}

// Resolve maps a model reference to its recipe, refreshing mirrors
// first when they have aged past sync.max_age.
func (e *Engine) Resolve(ctx context.Context, ref string) (recipe.Record, error) {
	if err := e.ensureFresh(ctx); err != nil {
		return recipe.Record{}, err
	}
	return e.catalog.Resolve(ref)
}

// List returns the catalog filtered by model name prefix.
func (e *Engine) List(ctx context.Context, prefix string) ([]recipe.Record, error) {
	if err := e.ensureFresh(ctx); err != nil {
		return nil, err
	}
	return e.catalog.List(prefix), nil
}

// Materialize resolves ref and returns a ready bundle for it,
// building one if needed.
func (e *Engine) Materialize(ctx context.Context, ref string) (recipe.Record, bundle.Bundle, error) {
	rec, err := e.Resolve(ctx, ref)
	if err != nil {
		return recipe.Record{}, bundle.Bundle{}, err
	}
	ctx = logger.SetContentHash(ctx, rec.ContentHash)
	b, err := e.generator.Materialize(ctx, rec)
	if err != nil {
		return rec, bundle.Bundle{}, err
	}
	return rec, b, nil
}

// Bundles lists the recorded bundles.
func (e *Engine) Bundles(ctx context.Context) ([]bundle.Bundle, error) {
	return e.generator.List(ctx)
}

// Clean drops failed or orphaned bundles and returns how many
// records were removed.
func (e *Engine) Clean(ctx context.Context) (int, error) {
	e.parsed.Clear(ctx)
	return e.generator.Clean(ctx)
}

// CleanMirrors removes every source's mirror directory and resets the
// catalog to empty. The next resolve or list syncs from scratch.
func (e *Engine) CleanMirrors(ctx context.Context) (int, error) {
	sources, err := e.registry.List(ctx)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, src := range sources {
		if err := e.syncer.Purge(src.Alias); err != nil {
			return purged, err
		}
		purged++
	}
	e.parsed.Clear(ctx)
	e.catalog.Swap(index.Build(sources, nil))
	e.mu.Lock()
	e.indexSig = ""
	e.mu.Unlock()
	return purged, nil
}
