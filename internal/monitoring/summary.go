// Package monitoring tracks what the reply monitor has done: run counters
// for the status surface and a bounded activity log an external dashboard
// tails.
package monitoring

import (
	"sync"
	"time"
)

// RunSummary is a point-in-time view of monitor activity since start.
type RunSummary struct {
	Checks       int        `json:"checks"`
	RepliesFound int        `json:"replies_found"`
	Updated      int        `json:"updated"`
	StaleFound   int        `json:"stale_found"`
	Errors       int        `json:"errors"`
	StartedAt    time.Time  `json:"started_at"`
	LastCheck    *time.Time `json:"last_check,omitempty"`
}

// SummaryCollector accumulates run counters across monitor cycles.
type SummaryCollector struct {
	mu      sync.Mutex
	summary RunSummary
}

// NewSummaryCollector creates a collector stamped with the start time.
func NewSummaryCollector() *SummaryCollector {
	return &SummaryCollector{summary: RunSummary{StartedAt: time.Now().UTC()}}
}

// RecordCheck folds one reply-check cycle into the counters.
func (c *SummaryCollector) RecordCheck(found, updated, errors int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UTC()
	c.summary.Checks++
	c.summary.RepliesFound += found
	c.summary.Updated += updated
	c.summary.Errors += errors
	c.summary.LastCheck = &now
}

// RecordStale folds one stale-detection cycle into the counters.
func (c *SummaryCollector) RecordStale(found int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.StaleFound += found
}

// RecordError counts a cycle-level failure.
func (c *SummaryCollector) RecordError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.Errors++
}

// Summary returns a copy of the current counters.
func (c *SummaryCollector) Summary() RunSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}
