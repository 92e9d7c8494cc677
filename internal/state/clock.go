package state

import "sync"

// Clock is a Lamport clock ordering events published by this process and
// those observed from peers.
type Clock struct {
	mu      sync.Mutex
	counter uint64
}

// Tick advances the clock and returns the new time.
func (c *Clock) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	return c.counter
}

// Witness moves the clock past a timestamp received from a peer.
func (c *Clock) Witness(ts uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts > c.counter {
		c.counter = ts
	}
}

// Now returns the current time without advancing it.
func (c *Clock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}
