package index

import "strings"

// Reference is a parsed model reference of the form
// [alias/]name[:tag]. Alias is empty for unqualified references and
// Tag is empty for bare names.
type Reference struct {
	SourceAlias string
	Name        string
	Tag         string
}

func (r Reference) String() string {
	s := r.Name
	if r.SourceAlias != "" {
		s = r.SourceAlias + "/" + s
	}
	if r.Tag != "" {
		s += ":" + r.Tag
	}
	return s
}

// ParseReference parses a user-supplied model reference. The alias
// splits on the first slash and the tag on the first colon, so tags
// may contain colons. Name and tag are lowercased; the alias is kept
// verbatim since registry aliases are case-sensitive.
func ParseReference(s string) (Reference, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Reference{}, ErrBadReference.WithMessagef("empty model reference")
	}

	var ref Reference
	rest := s
	if i := strings.Index(rest, "/"); i >= 0 {
		ref.SourceAlias = rest[:i]
		rest = rest[i+1:]
		if ref.SourceAlias == "" {
			return Reference{}, ErrBadReference.WithMessagef("reference %q has an empty source alias", s)
		}
	}
	if i := strings.Index(rest, ":"); i >= 0 {
		ref.Name = strings.ToLower(rest[:i])
		ref.Tag = strings.ToLower(rest[i+1:])
		if ref.Tag == "" {
			return Reference{}, ErrBadReference.WithMessagef("reference %q has an empty tag", s)
		}
	} else {
		ref.Name = strings.ToLower(rest)
	}
	if ref.Name == "" || strings.Contains(ref.Name, "/") {
		return Reference{}, ErrBadReference.WithMessagef("reference %q has an invalid model name", s)
	}
	return ref, nil
}
