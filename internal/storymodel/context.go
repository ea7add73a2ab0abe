package storymodel

import "sync"

// Well-known StoryContext keys. Streaming service handles are stored under
// the service's own name (see the Container Bootstrap Facade).
const (
	ServerRequestKey = "server_request"
	ServerIOLoopKey  = "server_io_loop"
)

// StoryContext is the mutable, per-story map the spec calls "context":
// server_request, server_io_loop, and one streaming-service handle per
// service name. It is shared by every dispatch running against the same
// story, so writes are serialized.
type StoryContext struct {
	mu     sync.Mutex
	values map[string]any
}

// NewStoryContext returns an empty StoryContext.
func NewStoryContext() *StoryContext {
	return &StoryContext{values: make(map[string]any)}
}

// Get returns the value stored under key, and whether it was present.
func (c *StoryContext) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// Set stores value under key, overwriting any previous value.
func (c *StoryContext) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}
