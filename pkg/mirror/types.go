package mirror

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Status describes the freshness of a local mirror.
type Status string

const (
	// StatusFresh means the mirror matches the last observed remote
	// revision.
	StatusFresh Status = "fresh"
	// StatusStale means the last refresh attempt failed but a prior
	// revision is still served locally.
	StatusStale Status = "stale"
	// StatusFetchFailed means no revision was ever mirrored.
	StatusFetchFailed Status = "fetch_failed"
)

// Mirror is the local replica of one registered source.
type Mirror struct {
	Alias        string    `json:"alias"`
	Revision     string    `json:"revision"`
	Path         string    `json:"path"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	Status       Status    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
}

// FreshWithin reports whether the mirror refreshed successfully
// within maxAge. A zero maxAge means any fresh mirror qualifies.
func (m Mirror) FreshWithin(maxAge time.Duration) bool {
	if m.Status != StatusFresh {
		return false
	}
	if maxAge <= 0 {
		return true
	}
	return time.Since(m.LastSyncedAt) <= maxAge
}

// Usable reports whether the mirror has any revision to serve at
// all, fresh or stale.
func (m Mirror) Usable() bool {
	return m.Revision != "" && (m.Status == StatusFresh || m.Status == StatusStale)
}

// state is the persisted portion of a mirror, stored as state.json
// next to the revisions directory.
type state struct {
	Revision     string    `json:"revision"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	Status       Status    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
}

func statePath(dir string) string {
	return filepath.Join(dir, "state.json")
}

func loadState(dir string) (state, bool, error) {
	data, err := os.ReadFile(statePath(dir))
	if os.IsNotExist(err) {
		return state{}, false, nil
	}
	if err != nil {
		return state{}, false, err
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		// A corrupt state file is treated as no mirror; the next
		// sync rewrites it.
		return state{}, false, nil
	}
	return st, true, nil
}

func saveState(dir string, st state) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := statePath(dir) + ".tmp-" + uuid.NewString()[:8]
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, statePath(dir))
}
