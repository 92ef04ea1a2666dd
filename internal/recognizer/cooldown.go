package recognizer

import (
	"sync"
	"time"
)

// cooldownTracker rejects repeat recognitions of the same identity within a
// short window, so a person standing in front of the camera does not hammer
// the attendance store. A zero window disables the check. Identities are
// stamped only after the recognition completed, so a failed attendance write
// stays retryable within the window.
type cooldownTracker struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

func newCooldownTracker(window time.Duration) *cooldownTracker {
	return &cooldownTracker{
		window: window,
		seen:   make(map[string]time.Time),
	}
}

// inCooldown reports whether the identity was stamped within the window.
func (c *cooldownTracker) inCooldown(identityID string, at time.Time) bool {
	if c.window <= 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.seen[identityID]
	return ok && at.Sub(last) < c.window
}

// stamp records a completed recognition. Expired entries are dropped
// opportunistically.
func (c *cooldownTracker) stamp(identityID string, at time.Time) {
	if c.window <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seen[identityID] = at

	if len(c.seen) > 1024 {
		for id, last := range c.seen {
			if at.Sub(last) >= c.window {
				delete(c.seen, id)
			}
		}
	}
}
