package mirror

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ydideh810/nidamllm/pkg/repo"
)

// Fetcher retrieves source content. Implementations must not log the
// access token in any form.
type Fetcher interface {
	// RemoteRevision returns the current revision of the source's
	// branch without transferring content.
	RemoteRevision(ctx context.Context, loc repo.Location) (string, error)
	// Fetch materializes the source's branch into dir and returns
	// the revision that was actually fetched.
	Fetch(ctx context.Context, loc repo.Location, dir string) (string, error)
}

// GitFetcher mirrors sources with the git CLI. Token, when set, is
// injected into the clone URL for private repositories.
type GitFetcher struct {
	Token   string
	Timeout time.Duration
}

func (g *GitFetcher) timeout() time.Duration {
	if g.Timeout > 0 {
		return g.Timeout
	}
	return 2 * time.Minute
}

// authURL returns the clone URL with the token as userinfo. Callers
// must never include the result in logs or error messages.
func (g *GitFetcher) authURL(loc repo.Location) string {
	raw := loc.CloneURL()
	if g.Token == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.User = url.User(g.Token)
	return u.String()
}

func (g *GitFetcher) RemoteRevision(ctx context.Context, loc repo.Location) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-remote", g.authURL(loc), "refs/heads/"+loc.Branch)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git ls-remote %s: %w", loc, err)
	}
	fields := strings.Fields(out.String())
	if len(fields) == 0 {
		return "", fmt.Errorf("branch %q not found at %s", loc.Branch, loc)
	}
	return fields[0], nil
}

func (g *GitFetcher) Fetch(ctx context.Context, loc repo.Location, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout())
	defer cancel()

	clone := exec.CommandContext(ctx, "git", "clone", "--quiet", "--depth", "1",
		"--branch", loc.Branch, g.authURL(loc), dir)
	clone.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if err := clone.Run(); err != nil {
		return "", fmt.Errorf("git clone %s: %w", loc, err)
	}

	rev := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "HEAD")
	var out bytes.Buffer
	rev.Stdout = &out
	if err := rev.Run(); err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}

	// Mirrors hold catalog content only.
	if err := os.RemoveAll(dir + "/.git"); err != nil {
		return "", fmt.Errorf("strip git metadata: %w", err)
	}
	return strings.TrimSpace(out.String()), nil
}
