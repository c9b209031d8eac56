package docker

import "context"

// Client is the interface for the Docker image operations bundle
// generation relies on.
type Client interface {
	// PullImage pulls a Docker image.
	PullImage(ctx context.Context, image string) error

	// HasImage reports whether the image is present locally.
	HasImage(ctx context.Context, image string) (bool, error)

	// Ping verifies the daemon is reachable.
	Ping(ctx context.Context) error
}

// Compile-time assertion: SDKClient must implement Client.
var _ Client = (*SDKClient)(nil)
