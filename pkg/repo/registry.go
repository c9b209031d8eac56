package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ydideh810/nidamllm/pkg/errdefs"
	"github.com/ydideh810/nidamllm/pkg/infra/logger"
)

// Registry is the persisted list of catalog sources. The backing file
// is human-editable JSON; it is re-read on every operation so edits
// made between runs (or by a concurrent process) are always honored.
// Mutations hold a file lock across the read-modify-write and commit
// via a temp file rename, so concurrent readers never observe a
// partial write.
type Registry struct {
	path string

	// builtinAlias cannot be removed; a fresh registry is seeded with
	// it so resolution always has at least one source.
	builtinAlias string
	builtinURL   string
}

type registryFile struct {
	Sources []Source `json:"sources"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithBuiltin overrides the seeded built-in source.
func WithBuiltin(alias, url string) Option {
	return func(r *Registry) {
		r.builtinAlias = alias
		r.builtinURL = url
	}
}

// NewRegistry creates a registry backed by the file at path.
func NewRegistry(path string, opts ...Option) *Registry {
	r := &Registry{
		path:         path,
		builtinAlias: "default",
		builtinURL:   "https://github.com/jileml/nidam-models@main",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the backing file path.
func (r *Registry) Path() string { return r.path }

// Add registers a new source. The first source added to an empty
// registry does not displace the built-in default marker.
func (r *Registry) Add(ctx context.Context, alias, url string) (Source, error) {
	if !ValidAlias(alias) {
		return Source{}, ErrInvalidAlias.WithDetails("alias", alias)
	}
	if _, err := ParseLocation(url); err != nil {
		return Source{}, errdefs.Wrap(err, "registry", errdefs.CodeInvalidInput, "invalid source url")
	}

	var added Source
	err := r.mutate(ctx, func(f *registryFile) error {
		for _, s := range f.Sources {
			if s.Alias == alias {
				return ErrDuplicateAlias.WithDetails("alias", alias)
			}
		}
		added = Source{Alias: alias, URL: url}
		f.Sources = append(f.Sources, added)
		return nil
	})
	if err != nil {
		return Source{}, err
	}

	logger.WithContext(ctx).Info("source registered", "alias", alias, "url", url)
	return added, nil
}

// Remove unregisters a source. The built-in source and the last
// remaining source are protected.
func (r *Registry) Remove(ctx context.Context, alias string) error {
	err := r.mutate(ctx, func(f *registryFile) error {
		idx := -1
		for i, s := range f.Sources {
			if s.Alias == alias {
				idx = i
				break
			}
		}
		if idx == -1 {
			return ErrSourceNotFound.WithDetails("alias", alias)
		}
		if alias == r.builtinAlias {
			return ErrProtectedSource.WithDetails("alias", alias).WithDetails("reason", "built-in default")
		}
		if len(f.Sources) == 1 {
			return ErrProtectedSource.WithDetails("alias", alias).WithDetails("reason", "last remaining source")
		}
		f.Sources = append(f.Sources[:idx], f.Sources[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	logger.WithContext(ctx).Info("source removed", "alias", alias)
	return nil
}

// SetDefault marks alias as the default source, clearing any previous
// marker.
func (r *Registry) SetDefault(ctx context.Context, alias string) error {
	return r.mutate(ctx, func(f *registryFile) error {
		found := false
		for i := range f.Sources {
			if f.Sources[i].Alias == alias {
				found = true
			}
		}
		if !found {
			return ErrSourceNotFound.WithDetails("alias", alias)
		}
		for i := range f.Sources {
			f.Sources[i].Default = f.Sources[i].Alias == alias
		}
		return nil
	})
}

// List returns all sources in registration order.
func (r *Registry) List(ctx context.Context) ([]Source, error) {
	f, err := r.load()
	if err != nil {
		return nil, err
	}
	return f.Sources, nil
}

// Get returns the source registered under alias.
func (r *Registry) Get(ctx context.Context, alias string) (Source, error) {
	f, err := r.load()
	if err != nil {
		return Source{}, err
	}
	for _, s := range f.Sources {
		if s.Alias == alias {
			return s, nil
		}
	}
	return Source{}, ErrSourceNotFound.WithDetails("alias", alias)
}

// Default returns the source carrying the default marker, if any.
func (r *Registry) Default(ctx context.Context) (Source, bool, error) {
	f, err := r.load()
	if err != nil {
		return Source{}, false, err
	}
	for _, s := range f.Sources {
		if s.Default {
			return s, true, nil
		}
	}
	return Source{}, false, nil
}

// load re-reads the registry file, seeding the built-in source when
// the file does not exist yet.
func (r *Registry) load() (*registryFile, error) {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return nil, errdefs.Wrap(err, "registry", errdefs.CodeRegistryIO, "create registry dir")
	}

	unlock, err := lockFile(r.lockPath())
	if err != nil {
		return nil, errdefs.Wrap(err, "registry", errdefs.CodeRegistryIO, "lock registry")
	}
	defer unlock()

	return r.loadLocked()
}

func (r *Registry) loadLocked() (*registryFile, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return &registryFile{
			Sources: []Source{{Alias: r.builtinAlias, URL: r.builtinURL, Default: true}},
		}, nil
	}
	if err != nil {
		return nil, errdefs.Wrap(err, "registry", errdefs.CodeRegistryIO, "read registry")
	}

	var f registryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errdefs.Wrap(err, "registry", errdefs.CodeRegistryIO,
			fmt.Sprintf("registry file %s is not valid JSON", r.path))
	}

	// Manual edits bypass Add-time validation; drop any entry whose
	// alias could not have been registered, since the alias also
	// names the mirror directory.
	kept := f.Sources[:0]
	for _, src := range f.Sources {
		if !ValidAlias(src.Alias) {
			logger.Default().Warn("ignoring registry entry with invalid alias",
				"alias", src.Alias, "path", r.path)
			continue
		}
		kept = append(kept, src)
	}
	f.Sources = kept

	// Manual edits may also introduce several default markers; keep
	// the first and clear the rest.
	seen := false
	for i := range f.Sources {
		if f.Sources[i].Default {
			if seen {
				f.Sources[i].Default = false
			}
			seen = true
		}
	}

	return &f, nil
}

// mutate runs fn against the current file contents under an exclusive
// lock and commits the result atomically.
func (r *Registry) mutate(ctx context.Context, fn func(*registryFile) error) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return errdefs.Wrap(err, "registry", errdefs.CodeRegistryIO, "create registry dir")
	}

	unlock, err := lockFile(r.lockPath())
	if err != nil {
		return errdefs.Wrap(err, "registry", errdefs.CodeRegistryIO, "lock registry")
	}
	defer unlock()

	f, err := r.loadLocked()
	if err != nil {
		return err
	}

	if err := fn(f); err != nil {
		return err
	}

	return r.commit(f)
}

// commit writes the registry file via temp file + rename so a reader
// never sees a torn write.
func (r *Registry) commit(f *registryFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return errdefs.Wrap(err, "registry", errdefs.CodeRegistryIO, "encode registry")
	}
	data = append(data, '\n')

	tmp := fmt.Sprintf("%s.tmp-%s", r.path, uuid.NewString()[:8])
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errdefs.Wrap(err, "registry", errdefs.CodeRegistryIO, "write registry temp file")
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return errdefs.Wrap(err, "registry", errdefs.CodeRegistryIO, "commit registry")
	}
	return nil
}

func (r *Registry) lockPath() string {
	return r.path + ".lock"
}
