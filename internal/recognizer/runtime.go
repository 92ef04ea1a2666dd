package recognizer

import (
	"fmt"
	"sync"
	"time"
)

// RuntimeConfig holds the settings that can be changed while the service is
// running. All accessors are safe for concurrent use.
type RuntimeConfig struct {
	mu           sync.RWMutex
	threshold    float64
	qualityFloor float64
	lastSyncAt   time.Time
}

// NewRuntimeConfig seeds the runtime settings from startup configuration.
func NewRuntimeConfig(threshold, qualityFloor float64) *RuntimeConfig {
	return &RuntimeConfig{
		threshold:    threshold,
		qualityFloor: qualityFloor,
	}
}

// Threshold returns the current similarity threshold.
func (c *RuntimeConfig) Threshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.threshold
}

// SetThreshold updates the similarity threshold. Values outside [0, 1] are
// rejected.
func (c *RuntimeConfig) SetThreshold(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("threshold %.3f out of range [0, 1]", v)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threshold = v
	return nil
}

// QualityFloor returns the minimum similarity treated as a confident match.
func (c *RuntimeConfig) QualityFloor() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.qualityFloor
}

// LastSyncAt returns when the last directory sync finished, or the zero
// time if none has run.
func (c *RuntimeConfig) LastSyncAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSyncAt
}

// MarkSynced records the completion time of a directory sync.
func (c *RuntimeConfig) MarkSynced(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSyncAt = at
}
