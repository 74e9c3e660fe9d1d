// Package monitoring keeps cheap process-local counters for the pipeline.
// The serve command exposes a snapshot of them on its stats endpoint.
package monitoring

import (
	"sync"
	"sync/atomic"
)

// Collector accumulates pipeline outcome counts. The zero value is ready to
// use and all methods are safe for concurrent workers.
type Collector struct {
	processed atomic.Int64
	failed    atomic.Int64
	updated   atomic.Int64
	inserted  atomic.Int64
	skipped   atomic.Int64

	mu       sync.Mutex
	byAction map[string]int64
}

// Routed records that a message was routed to the named action.
func (c *Collector) Routed(action string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.byAction == nil {
		c.byAction = make(map[string]int64)
	}
	c.byAction[action]++
	c.mu.Unlock()
}

// Processed records one completed message with its write counts.
func (c *Collector) Processed(updated int64, inserted, skipped int) {
	if c == nil {
		return
	}
	c.processed.Add(1)
	c.updated.Add(updated)
	c.inserted.Add(int64(inserted))
	c.skipped.Add(int64(skipped))
}

// Failed records one message whose processing returned an error.
func (c *Collector) Failed() {
	if c == nil {
		return
	}
	c.failed.Add(1)
}

// Snapshot returns the current counts in a form ready for JSON encoding.
func (c *Collector) Snapshot() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	c.mu.Lock()
	actions := make(map[string]int64, len(c.byAction))
	for k, v := range c.byAction {
		actions[k] = v
	}
	c.mu.Unlock()

	return map[string]any{
		"processed":     c.processed.Load(),
		"failed":        c.failed.Load(),
		"rows_updated":  c.updated.Load(),
		"rows_inserted": c.inserted.Load(),
		"items_skipped": c.skipped.Load(),
		"by_action":     actions,
	}
}
