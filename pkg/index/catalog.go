package index

import (
	"sync/atomic"

	"github.com/ydideh810/nidamllm/pkg/recipe"
)

// Catalog is the live, atomically swappable view of the index.
// Lookups racing a swap see either the old snapshot or the new one
// in full.
type Catalog struct {
	idx atomic.Pointer[Index]
}

// NewCatalog returns a catalog serving an empty index until the
// first Swap.
func NewCatalog() *Catalog {
	c := &Catalog{}
	c.idx.Store(Build(nil, nil))
	return c
}

// Swap publishes a freshly built index.
func (c *Catalog) Swap(idx *Index) {
	c.idx.Store(idx)
}

// Current returns the index snapshot now being served.
func (c *Catalog) Current() *Index {
	return c.idx.Load()
}

// Resolve parses raw and resolves it against the current snapshot.
func (c *Catalog) Resolve(raw string) (recipe.Record, error) {
	ref, err := ParseReference(raw)
	if err != nil {
		return recipe.Record{}, err
	}
	return c.Current().Resolve(ref)
}

// List filters the current snapshot by model name prefix.
func (c *Catalog) List(prefix string) []recipe.Record {
	return c.Current().List(prefix)
}
