package index

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ydideh810/nidamllm/pkg/recipe"
	"github.com/ydideh810/nidamllm/pkg/repo"
)

// Index is an immutable snapshot of every record published by the
// registered sources, with source precedence baked in. Build a new
// one and swap it into a Catalog; never mutate an Index in place.
type Index struct {
	// rank maps alias to precedence, lower wins. The default source
	// holds rank 0; the rest rank by recency of registration.
	rank    map[string]int
	order   []string
	entries map[string]map[string][]recipe.Record
}

// Build assembles an index from the registered sources, in
// registration order, and the records parsed from each source's
// mirror. Sources with no parsed records still register their alias
// so qualified lookups against them report not-found rather than
// unknown-alias.
func Build(sources []repo.Source, records map[string][]recipe.Record) *Index {
	idx := &Index{
		rank:    make(map[string]int, len(sources)),
		entries: make(map[string]map[string][]recipe.Record, len(sources)),
	}

	for _, src := range sources {
		if src.Default {
			idx.order = append(idx.order, src.Alias)
		}
	}
	// Unqualified references prefer newer registrations.
	for i := len(sources) - 1; i >= 0; i-- {
		if !sources[i].Default {
			idx.order = append(idx.order, sources[i].Alias)
		}
	}
	for i, alias := range idx.order {
		idx.rank[alias] = i
	}

	for _, src := range sources {
		byName := make(map[string][]recipe.Record)
		for _, rec := range records[src.Alias] {
			byName[rec.ModelName] = append(byName[rec.ModelName], rec)
		}
		idx.entries[src.Alias] = byName
	}
	return idx
}

// Resolve maps a reference to exactly one record or explains why it
// cannot. An explicit alias pins the source; otherwise the default
// source wins and the most recently registered source breaks the
// remaining ties.
func (idx *Index) Resolve(ref Reference) (recipe.Record, error) {
	if ref.SourceAlias != "" {
		if _, ok := idx.entries[ref.SourceAlias]; !ok {
			return recipe.Record{}, ErrUnknownSourceAlias.
				WithMessagef("source %q is not registered", ref.SourceAlias).
				WithDetails("known", append([]string(nil), idx.order...))
		}
		return idx.resolveIn(ref.SourceAlias, ref.Name, ref.Tag)
	}

	tag := ref.Tag
	if tag == "" {
		// A bare name needs exactly one tag across every source;
		// precedence never picks a tag silently.
		tags := idx.tagsFor(ref.Name)
		switch len(tags) {
		case 0:
			return recipe.Record{}, ErrModelNotFound.WithMessagef("no source publishes %q", ref.Name)
		case 1:
			tag = tags[0]
		default:
			candidates := make([]string, len(tags))
			for i, t := range tags {
				candidates[i] = ref.Name + ":" + t
			}
			return recipe.Record{}, ErrAmbiguousTag.
				WithMessagef("model %q has multiple tags, pick one", ref.Name).
				WithDetails("candidates", candidates)
		}
	}

	for _, alias := range idx.order {
		if !idx.has(alias, ref.Name, tag) {
			continue
		}
		return idx.resolveIn(alias, ref.Name, tag)
	}
	return recipe.Record{}, ErrModelNotFound.WithMessagef("no source publishes %q", ref.String())
}

// tagsFor returns the distinct tags published for name across all
// sources, in version-aware order.
func (idx *Index) tagsFor(name string) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, alias := range idx.order {
		for _, r := range idx.entries[alias][name] {
			if !seen[r.ModelTag] {
				seen[r.ModelTag] = true
				tags = append(tags, r.ModelTag)
			}
		}
	}
	sort.Slice(tags, func(i, j int) bool { return tagLess(tags[i], tags[j]) })
	return tags
}

func (idx *Index) has(alias, name, tag string) bool {
	recs := idx.entries[alias][name]
	if tag == "" {
		return len(recs) > 0
	}
	for _, r := range recs {
		if r.ModelTag == tag {
			return true
		}
	}
	return false
}

func (idx *Index) resolveIn(alias, name, tag string) (recipe.Record, error) {
	recs := idx.entries[alias][name]
	if len(recs) == 0 {
		return recipe.Record{}, ErrModelNotFound.WithMessagef("source %q does not publish %q", alias, name)
	}

	if tag != "" {
		var matches []recipe.Record
		for _, r := range recs {
			if r.ModelTag == tag {
				matches = append(matches, r)
			}
		}
		switch len(matches) {
		case 0:
			return recipe.Record{}, ErrModelNotFound.WithMessagef("source %q does not publish %s:%s", alias, name, tag)
		case 1:
			return matches[0], nil
		default:
			return recipe.Record{}, ErrConflictingDefinition.WithMessagef(
				"source %q publishes %s:%s %d times", alias, name, tag, len(matches))
		}
	}

	tags := make(map[string]int)
	for _, r := range recs {
		tags[r.ModelTag]++
	}
	if len(tags) > 1 {
		return recipe.Record{}, ErrAmbiguousTag.
			WithMessagef("model %q has multiple tags, pick one", name).
			WithDetails("candidates", candidateRefs(alias, recs))
	}
	if len(recs) > 1 {
		return recipe.Record{}, ErrConflictingDefinition.WithMessagef(
			"source %q publishes %s %d times", alias, recs[0].Ref(), len(recs))
	}
	return recs[0], nil
}

// candidateRefs lists the alias-qualified refs of recs, sorted the
// way List sorts tags, for ambiguity errors.
func candidateRefs(alias string, recs []recipe.Record) []string {
	sorted := append([]recipe.Record(nil), recs...)
	sortRecords(sorted)
	out := make([]string, len(sorted))
	for i, r := range sorted {
		out[i] = alias + "/" + r.Ref()
	}
	return out
}

// List returns every record whose model name starts with prefix,
// ordered by source precedence, then name, then tag.
func (idx *Index) List(prefix string) []recipe.Record {
	prefix = strings.ToLower(prefix)
	var out []recipe.Record
	for _, alias := range idx.order {
		var recs []recipe.Record
		for name, nameRecs := range idx.entries[alias] {
			if prefix != "" && !strings.HasPrefix(name, prefix) {
				continue
			}
			recs = append(recs, nameRecs...)
		}
		sortRecords(recs)
		out = append(out, recs...)
	}
	return out
}

// sortRecords orders records by name, then by tag using a version
// aware key: the first number in the tag, then tag length, then the
// tag itself. Tags without a number sort last.
func sortRecords(recs []recipe.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].ModelName != recs[j].ModelName {
			return recs[i].ModelName < recs[j].ModelName
		}
		return tagLess(recs[i].ModelTag, recs[j].ModelTag)
	})
}

func tagLess(a, b string) bool {
	an, aok := firstNumber(a)
	bn, bok := firstNumber(b)
	if aok != bok {
		return aok
	}
	if aok && an != bn {
		return an < bn
	}
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func firstNumber(s string) (int, bool) {
	start := -1
	for i, c := range s {
		if c >= '0' && c <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, _ := strconv.Atoi(s[start:i])
			return n, true
		}
	}
	if start >= 0 {
		n, _ := strconv.Atoi(s[start:])
		return n, true
	}
	return 0, false
}
