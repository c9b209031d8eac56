package repo

import (
	"fmt"
	"strings"
)

// Source is one registered catalog source. Sources are persisted in
// registration order; the order participates in resolution precedence.
type Source struct {
	Alias   string `json:"alias"`
	URL     string `json:"url"`
	Default bool   `json:"default,omitempty"`
}

// Location is the structured form of a source URL
// (<server>/<owner>/<repo>[@<branch>]).
type Location struct {
	Server string `json:"server"`
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
}

// CloneURL returns the URL passed to git, without the branch suffix.
func (l Location) CloneURL() string {
	return fmt.Sprintf("%s/%s/%s", l.Server, l.Owner, l.Repo)
}

func (l Location) String() string {
	return fmt.Sprintf("%s/%s/%s@%s", l.Server, l.Owner, l.Repo, l.Branch)
}

// ParseLocation parses a source URL of the form
// https://server/owner/repo[@branch]. Branch defaults to "main".
func ParseLocation(url string) (Location, error) {
	branch := "main"
	if at := strings.LastIndex(url, "@"); at != -1 {
		branch = url[at+1:]
		url = url[:at]
		if branch == "" {
			return Location{}, fmt.Errorf("empty branch in source url %q", url)
		}
	}

	rest, ok := strings.CutPrefix(url, "https://")
	scheme := "https://"
	if !ok {
		if rest, ok = strings.CutPrefix(url, "http://"); ok {
			scheme = "http://"
		} else {
			return Location{}, fmt.Errorf("source url %q must start with http:// or https://", url)
		}
	}

	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 3 {
		return Location{}, fmt.Errorf("source url %q must have the form https://server/owner/repo[@branch]", url)
	}
	for _, p := range parts {
		if p == "" {
			return Location{}, fmt.Errorf("source url %q has an empty path segment", url)
		}
	}

	return Location{
		Server: scheme + parts[0],
		Owner:  parts[1],
		Repo:   parts[2],
		Branch: branch,
	}, nil
}

// ValidAlias reports whether alias is usable as a source name. Aliases
// are case-sensitive tokens; '/' and ':' are reserved by the reference
// syntax (alias/name:tag). At least one alphanumeric is required so
// path navigation tokens such as "." and ".." can never name a source:
// the alias doubles as the mirror directory name.
func ValidAlias(alias string) bool {
	if alias == "" {
		return false
	}
	alnum := false
	for _, r := range alias {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			alnum = true
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return alnum
}
