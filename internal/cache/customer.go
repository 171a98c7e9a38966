// Package cache holds the in-memory customer roster snapshot.
//
// The spreadsheet and database stores are slow to enumerate and the monitor
// loop consults the roster on every inbound reply, so reconciliation reads go
// through a short-lived snapshot that is invalidated explicitly whenever a
// customer row is written.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/outreach-cli/internal/model"
)

const defaultTTL = 60 * time.Second

// CustomerCache is a concurrent-safe TTL snapshot of the customer roster.
type CustomerCache struct {
	mu       sync.RWMutex
	roster   []model.Customer
	byID     map[string]int
	byEmail  map[string]int
	loadedAt time.Time
	ttl      time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats contains cache performance counters.
type Stats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	AgeSecs float64 `json:"age_seconds"`
}

// New creates a CustomerCache. A non-positive ttl uses the 60s default.
func New(ttl time.Duration) *CustomerCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CustomerCache{ttl: ttl}
}

// Set replaces the snapshot with a fresh roster.
func (c *CustomerCache) Set(customers []model.Customer) {
	byID := make(map[string]int, len(customers))
	byEmail := make(map[string]int, len(customers))
	for i, cust := range customers {
		if cust.ID != "" {
			byID[cust.ID] = i
		}
		if cust.ContactEmail != "" {
			byEmail[strings.ToLower(cust.ContactEmail)] = i
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.roster = customers
	c.byID = byID
	c.byEmail = byEmail
	c.loadedAt = time.Now()
}

// Get returns the cached roster, or nil, false when empty or expired.
func (c *CustomerCache) Get() ([]model.Customer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh() {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return c.roster, true
}

// ByID looks up a single customer in the snapshot.
func (c *CustomerCache) ByID(id string) (*model.Customer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh() {
		c.misses.Add(1)
		return nil, false
	}
	i, ok := c.byID[id]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	cust := c.roster[i]
	return &cust, true
}

// ByEmail looks up a single customer by contact email, case-insensitively.
func (c *CustomerCache) ByEmail(email string) (*model.Customer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh() {
		c.misses.Add(1)
		return nil, false
	}
	i, ok := c.byEmail[strings.ToLower(email)]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	cust := c.roster[i]
	return &cust, true
}

// Invalidate drops the snapshot. Called after any customer write so the next
// read reloads from the store.
func (c *CustomerCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roster = nil
	c.byID = nil
	c.byEmail = nil
	c.loadedAt = time.Time{}
}

// Stats returns snapshot counters.
func (c *CustomerCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	s := Stats{
		Entries: len(c.roster),
		Hits:    hits,
		Misses:  misses,
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	if !c.loadedAt.IsZero() {
		s.AgeSecs = time.Since(c.loadedAt).Seconds()
	}
	return s
}

// fresh is called with at least a read lock held.
func (c *CustomerCache) fresh() bool {
	return len(c.roster) > 0 && time.Since(c.loadedAt) <= c.ttl
}
