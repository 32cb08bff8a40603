package commands

import "sync"

// Counter tallies how often each command has been dispatched.
type Counter struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func NewCounter() *Counter {
	return &Counter{counts: make(map[string]uint64)}
}

// Increment bumps name and returns the new count.
func (c *Counter) Increment(name string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name]++
	return c.counts[name]
}

func (c *Counter) Get(name string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

// Snapshot returns a copy of all counts.
func (c *Counter) Snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
