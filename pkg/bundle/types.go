package bundle

import "time"

// Status is the lifecycle state of a bundle.
type Status string

const (
	// StatusBuilding means a build for the content hash is running.
	StatusBuilding Status = "building"
	// StatusReady means the bundle directory is complete and usable.
	StatusReady Status = "ready"
	// StatusFailed means the last build attempt errored.
	StatusFailed Status = "failed"
)

// Bundle is the materialized runtime artifact for one recipe content
// hash. Identical recipes share a bundle no matter which source or
// reference produced them.
type Bundle struct {
	ContentHash string    `json:"content_hash"`
	Location    string    `json:"location"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Status      Status    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
}

// Ready reports whether the bundle can be served as-is.
func (b Bundle) Ready() bool {
	return b.Status == StatusReady && b.Location != ""
}
