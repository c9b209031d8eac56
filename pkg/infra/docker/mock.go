package docker

import (
	"context"
	"sync"
)

// MockClient is an in-memory Client for tests.
type MockClient struct {
	mu     sync.Mutex
	Images map[string]bool

	PullErr error
	PingErr error
	Pulls   []string
}

// NewMockClient creates a new mock Docker client.
func NewMockClient() *MockClient {
	return &MockClient{Images: make(map[string]bool)}
}

var _ Client = (*MockClient)(nil)

func (c *MockClient) PullImage(ctx context.Context, image string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Pulls = append(c.Pulls, image)
	if c.PullErr != nil {
		return c.PullErr
	}
	c.Images[image] = true
	return nil
}

func (c *MockClient) HasImage(_ context.Context, image string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Images[image], nil
}

func (c *MockClient) Ping(_ context.Context) error {
	return c.PingErr
}
