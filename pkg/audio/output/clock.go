// ABOUTME: Monotonic output clock derived from rendered frame counts
// ABOUTME: Subtracts device latency and never runs backwards
package output

import "sync"

// Clock converts a count of audible frames into seconds. Readings never
// decrease, so a latency jump holds the clock instead of rewinding it.
type Clock struct {
	mu   sync.RWMutex
	rate int
	last float64
}

// NewClock creates a clock for the given frame rate
func NewClock(rate int) *Clock {
	return &Clock{rate: rate}
}

// Observe records the audible frame position and returns the clock time
func (c *Clock) Observe(frames int64) float64 {
	if frames < 0 {
		frames = 0
	}
	now := float64(frames) / float64(c.rate)

	c.mu.Lock()
	defer c.mu.Unlock()
	if now < c.last {
		return c.last
	}
	c.last = now
	return now
}

// Last returns the most recent reading
func (c *Clock) Last() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}
