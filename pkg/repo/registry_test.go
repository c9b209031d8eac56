package repo

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(filepath.Join(t.TempDir(), "repos.json"))
}

func TestRegistry_SeedsBuiltinDefault(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	sources, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "default", sources[0].Alias)
	assert.True(t, sources[0].Default)

	def, ok, err := r.Default(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "default", def.Alias)
}

func TestRegistry_Add(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	src, err := r.Add(ctx, "extra", "https://github.com/acme/recipes@main")
	require.NoError(t, err)
	assert.Equal(t, "extra", src.Alias)
	assert.False(t, src.Default)

	sources, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "default", sources[0].Alias, "registration order preserved")
	assert.Equal(t, "extra", sources[1].Alias)
}

func TestRegistry_AddDuplicate(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Add(ctx, "extra", "https://github.com/acme/recipes@main")
	require.NoError(t, err)

	_, err = r.Add(ctx, "extra", "https://github.com/other/recipes@main")
	assert.ErrorIs(t, err, ErrDuplicateAlias)

	_, err = r.Add(ctx, "default", "https://github.com/other/recipes@main")
	assert.ErrorIs(t, err, ErrDuplicateAlias)
}

func TestRegistry_AddInvalid(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Add(ctx, "bad/alias", "https://github.com/acme/recipes")
	assert.ErrorIs(t, err, ErrInvalidAlias)

	_, err = r.Add(ctx, "ok", "github.com/acme/recipes")
	assert.Error(t, err, "url without scheme must be rejected")
}

func TestRegistry_Remove(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Add(ctx, "extra", "https://github.com/acme/recipes@main")
	require.NoError(t, err)

	require.NoError(t, r.Remove(ctx, "extra"))

	sources, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}

func TestRegistry_RemoveNotFound(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Remove(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestRegistry_RemoveProtected(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	t.Run("built-in default", func(t *testing.T) {
		_, err := r.Add(ctx, "extra", "https://github.com/acme/recipes@main")
		require.NoError(t, err)

		err = r.Remove(ctx, "default")
		assert.ErrorIs(t, err, ErrProtectedSource)
	})

	t.Run("last remaining source", func(t *testing.T) {
		// A manually edited registry may hold a single non-built-in
		// source; removing it would leave nothing to resolve against.
		path := filepath.Join(t.TempDir(), "repos.json")
		data, err := json.Marshal(registryFile{Sources: []Source{
			{Alias: "only", URL: "https://github.com/acme/recipes@main"},
		}})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		r2 := NewRegistry(path)
		err = r2.Remove(ctx, "only")
		assert.ErrorIs(t, err, ErrProtectedSource)
	})
}

func TestRegistry_SetDefault(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Add(ctx, "extra", "https://github.com/acme/recipes@main")
	require.NoError(t, err)

	require.NoError(t, r.SetDefault(ctx, "extra"))

	def, ok, err := r.Default(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "extra", def.Alias)

	// At most one default marker.
	sources, err := r.List(ctx)
	require.NoError(t, err)
	count := 0
	for _, s := range sources {
		if s.Default {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRegistry_SetDefaultNotFound(t *testing.T) {
	r := newTestRegistry(t)
	err := r.SetDefault(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestRegistry_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repos.json")
	ctx := context.Background()

	r1 := NewRegistry(path)
	_, err := r1.Add(ctx, "extra", "https://github.com/acme/recipes@main")
	require.NoError(t, err)
	require.NoError(t, r1.SetDefault(ctx, "extra"))

	r2 := NewRegistry(path)
	sources, err := r2.List(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)

	def, ok, err := r2.Default(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "extra", def.Alias)
}

func TestRegistry_ToleratesManualEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repos.json")
	ctx := context.Background()

	r := NewRegistry(path)
	_, err := r.Add(ctx, "extra", "https://github.com/acme/recipes@main")
	require.NoError(t, err)

	// A human adds a source and marks a second default by hand.
	edited := registryFile{Sources: []Source{
		{Alias: "default", URL: "https://github.com/jileml/nidam-models@main", Default: true},
		{Alias: "extra", URL: "https://github.com/acme/recipes@main", Default: true},
		{Alias: "handmade", URL: "https://github.com/hand/made@dev"},
	}}
	data, err := json.Marshal(edited)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	sources, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 3, "manual edit is picked up without restart")

	// Duplicate default markers collapse to the first.
	def, ok, err := r.Default(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "default", def.Alias)
}

func TestRegistry_DropsHandEditedInvalidAliases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repos.json")
	ctx := context.Background()

	// A hand-edited alias could otherwise point the mirror directory
	// outside the mirrors root.
	edited := registryFile{Sources: []Source{
		{Alias: "default", URL: "https://github.com/jileml/nidam-models@main", Default: true},
		{Alias: "..", URL: "https://github.com/evil/up@main"},
		{Alias: "../x", URL: "https://github.com/evil/side@main"},
		{Alias: "fine", URL: "https://github.com/acme/recipes@main"},
	}}
	data, err := json.Marshal(edited)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r := NewRegistry(path)
	sources, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "default", sources[0].Alias)
	assert.Equal(t, "fine", sources[1].Alias)
}

func TestRegistry_ConcurrentMutations(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	aliases := []string{"a", "b", "c", "d", "e"}
	for _, alias := range aliases {
		wg.Add(1)
		go func(alias string) {
			defer wg.Done()
			_, err := r.Add(ctx, alias, "https://github.com/acme/"+alias+"@main")
			assert.NoError(t, err)
		}(alias)
	}
	wg.Wait()

	sources, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sources, len(aliases)+1, "no add may be lost to a torn write")
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    Location
		wantErr bool
	}{
		{
			name: "with branch",
			url:  "https://github.com/jileml/nidam-models@main",
			want: Location{Server: "https://github.com", Owner: "jileml", Repo: "nidam-models", Branch: "main"},
		},
		{
			name: "branch defaults to main",
			url:  "https://github.com/acme/recipes",
			want: Location{Server: "https://github.com", Owner: "acme", Repo: "recipes", Branch: "main"},
		},
		{
			name: "http scheme",
			url:  "http://git.internal/team/models@release",
			want: Location{Server: "http://git.internal", Owner: "team", Repo: "models", Branch: "release"},
		},
		{name: "no scheme", url: "github.com/acme/recipes", wantErr: true},
		{name: "missing repo", url: "https://github.com/acme", wantErr: true},
		{name: "extra segment", url: "https://github.com/a/b/c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocation(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocationStrings(t *testing.T) {
	loc := Location{Server: "https://github.com", Owner: "acme", Repo: "recipes", Branch: "dev"}
	assert.Equal(t, "https://github.com/acme/recipes", loc.CloneURL())
	assert.Equal(t, "https://github.com/acme/recipes@dev", loc.String())
}

func TestValidAlias(t *testing.T) {
	for _, ok := range []string{"default", "Extra", "team-1", "a.b_c"} {
		assert.True(t, ValidAlias(ok), ok)
	}
	for _, bad := range []string{"", "a/b", "a:b", "sp ace", "émoji", ".", "..", "...", "-", "_.-"} {
		assert.False(t, ValidAlias(bad), bad)
	}
}
