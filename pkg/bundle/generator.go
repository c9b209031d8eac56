package bundle

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ydideh810/nidamllm/pkg/infra/logger"
	"github.com/ydideh810/nidamllm/pkg/recipe"
)

// DefaultMaxAttempts bounds how many failed builds a content hash
// gets before it is reported exhausted.
const DefaultMaxAttempts = 3

// Generator builds bundles on demand and caches them by content
// hash. Concurrent requests for the same hash share one build;
// requests for different hashes proceed independently.
type Generator struct {
	root        string
	store       Store
	builder     Builder
	maxAttempts int

	group singleflight.Group

	mu       sync.Mutex
	failures map[string]int
}

// NewGenerator creates a generator writing bundles under root.
// maxAttempts <= 0 selects DefaultMaxAttempts.
func NewGenerator(root string, store Store, builder Builder, maxAttempts int) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Generator{
		root:        root,
		store:       store,
		builder:     builder,
		maxAttempts: maxAttempts,
		failures:    make(map[string]int),
	}
}

func (g *Generator) bundleDir(hash string) string {
	return filepath.Join(g.root, hash)
}

// Materialize returns a ready bundle for the recipe, building one if
// the cache has none. A ready bundle is reused without rebuilding; a
// previously failed hash is retried until its attempt budget runs
// out, after which every call fails fast with ErrBuildExhausted.
func (g *Generator) Materialize(ctx context.Context, rec recipe.Record) (Bundle, error) {
	v, err, _ := g.group.Do(rec.ContentHash, func() (any, error) {
		return g.materialize(ctx, rec)
	})
	if err != nil {
		return Bundle{}, err
	}
	return v.(Bundle), nil
}

func (g *Generator) materialize(ctx context.Context, rec recipe.Record) (Bundle, error) {
	log := logger.WithContext(logger.SetContentHash(ctx, rec.ContentHash))
	hash := rec.ContentHash

	b, ok, err := g.store.Get(ctx, hash)
	if err != nil {
		return Bundle{}, err
	}
	if ok && b.Ready() {
		if _, statErr := os.Stat(b.Location); statErr == nil {
			log.Debug("bundle cache hit", "location", b.Location)
			return b, nil
		}
		// Recorded ready but gone from disk; drop the record and
		// rebuild.
		log.Warn("ready bundle missing on disk, rebuilding", "location", b.Location)
		if err := g.store.Delete(ctx, hash); err != nil {
			return Bundle{}, err
		}
	}

	g.mu.Lock()
	spent := g.failures[hash]
	g.mu.Unlock()
	if spent >= g.maxAttempts {
		return Bundle{}, ErrBuildExhausted.WithMessagef(
			"bundle %s failed %d times", shortHash(hash), spent)
	}

	now := time.Now().UTC()
	building := Bundle{ContentHash: hash, Status: StatusBuilding, CreatedAt: now, UpdatedAt: now}
	if err := g.store.Put(ctx, building); err != nil {
		return Bundle{}, err
	}

	if err := os.MkdirAll(g.root, 0o755); err != nil {
		return Bundle{}, ErrBuilderFailed.WithCause(err)
	}
	staging := g.bundleDir(hash) + ".tmp-" + uuid.NewString()[:8]
	if buildErr := g.builder.Build(ctx, rec, staging); buildErr != nil {
		os.RemoveAll(staging)
		return Bundle{}, g.recordFailure(ctx, building, buildErr)
	}

	final := g.bundleDir(hash)
	if _, statErr := os.Stat(final); statErr == nil {
		os.RemoveAll(staging)
	} else if err := os.Rename(staging, final); err != nil {
		os.RemoveAll(staging)
		return Bundle{}, g.recordFailure(ctx, building, err)
	}

	ready := building
	ready.Status = StatusReady
	ready.Location = final
	ready.Reason = ""
	ready.UpdatedAt = time.Now().UTC()
	if err := g.store.Put(ctx, ready); err != nil {
		return Bundle{}, err
	}

	g.mu.Lock()
	delete(g.failures, hash)
	g.mu.Unlock()

	log.Info("bundle built", "location", final, "ref", rec.Ref())
	return ready, nil
}

func (g *Generator) recordFailure(ctx context.Context, b Bundle, cause error) error {
	g.mu.Lock()
	g.failures[b.ContentHash]++
	spent := g.failures[b.ContentHash]
	g.mu.Unlock()

	b.Status = StatusFailed
	b.Reason = cause.Error()
	b.UpdatedAt = time.Now().UTC()
	if err := g.store.Put(ctx, b); err != nil {
		return err
	}

	if spent >= g.maxAttempts {
		return ErrBuildExhausted.
			WithMessagef("bundle %s failed %d times", shortHash(b.ContentHash), spent).
			WithCause(cause)
	}
	return ErrBuilderFailed.WithCause(cause)
}

// Get returns the cached bundle for hash without building.
func (g *Generator) Get(ctx context.Context, hash string) (Bundle, bool, error) {
	return g.store.Get(ctx, hash)
}

// List returns every recorded bundle.
func (g *Generator) List(ctx context.Context) ([]Bundle, error) {
	return g.store.List(ctx)
}

// Clean removes failed records, records whose directory vanished,
// and leftover staging directories. It returns the number of records
// dropped.
func (g *Generator) Clean(ctx context.Context) (int, error) {
	bundles, err := g.store.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, b := range bundles {
		drop := b.Status != StatusReady
		if !drop {
			if _, statErr := os.Stat(b.Location); statErr != nil {
				drop = true
			}
		}
		if !drop {
			continue
		}
		if err := g.store.Delete(ctx, b.ContentHash); err != nil {
			return removed, err
		}
		if b.Location != "" {
			os.RemoveAll(b.Location)
		}
		removed++
	}

	entries, err := os.ReadDir(g.root)
	if os.IsNotExist(err) {
		return removed, nil
	}
	if err != nil {
		return removed, err
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			os.RemoveAll(filepath.Join(g.root, e.Name()))
		}
	}

	g.mu.Lock()
	g.failures = make(map[string]int)
	g.mu.Unlock()
	return removed, nil
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
