package store

import (
	"context"
	"sync"
)

// Counter holds impressions-left per campaign id. Implementations may be
// shared between processes.
type Counter interface {
	// Get returns the stored value and whether one exists.
	Get(ctx context.Context, id string) (int, bool, error)
	// Set stores n for id.
	Set(ctx context.Context, id string, n int) error
	// Add adjusts the value by delta, clamping at zero, and returns the result.
	Add(ctx context.Context, id string, delta int) (int, error)
	// Delete removes the values of ids.
	Delete(ctx context.Context, ids ...string) error
}

// MemoryCounter is a process-local Counter.
type MemoryCounter struct {
	mu     sync.Mutex
	values map[string]int
}

// NewMemoryCounter creates an empty MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{values: make(map[string]int)}
}

// Get implements Counter.
func (c *MemoryCounter) Get(_ context.Context, id string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.values[id]
	return n, ok, nil
}

// Set implements Counter.
func (c *MemoryCounter) Set(_ context.Context, id string, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[id] = max(n, 0)
	return nil
}

// Add implements Counter.
func (c *MemoryCounter) Add(_ context.Context, id string, delta int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := max(c.values[id]+delta, 0)
	c.values[id] = n
	return n, nil
}

// Delete implements Counter.
func (c *MemoryCounter) Delete(_ context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.values, id)
	}
	return nil
}
