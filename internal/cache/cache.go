/**
 * @description
 * This package provides the balance cache: a TTL-bounded key/value store keyed
 * by the caller's original email address. Its purpose is to keep a successful
 * resolution from re-triggering the expensive downstream workflow for a few
 * minutes. Two implementations satisfy the same contract: an in-memory map
 * (the default) and a Redis-backed store for multi-instance deployments.
 *
 * @dependencies
 * - sync, time: Standard Go libraries.
 */

package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a cached balance is considered fresh.
const DefaultTTL = 5 * time.Minute

// Entry is one cached balance snapshot.
type Entry struct {
	Balance    string    `json:"balance"`
	ObservedAt time.Time `json:"observed_at"`
}

// Age returns how old the entry is.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.ObservedAt)
}

// BalanceCache is the cache contract. Get returns an entry without judging its
// freshness; callers decide with IsFresh. Invalidate is the hook wired to
// write-side ledger events so a state change elsewhere drops the stale snapshot
// immediately instead of waiting out the TTL.
type BalanceCache interface {
	Get(ctx context.Context, email string) (Entry, bool)
	Set(ctx context.Context, email string, balance string)
	Invalidate(ctx context.Context, email string)
	IsFresh(entry Entry) bool
}

// MemoryCache is the process-wide in-memory implementation. Writes are
// idempotent snapshots of the same logical quantity, so last-write-wins under
// concurrency is acceptable; the mutex only keeps the map itself consistent.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryCache creates an in-memory balance cache. A non-positive ttl falls
// back to DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Get returns the cached entry for an email, fresh or not.
func (c *MemoryCache) Get(_ context.Context, email string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[email]
	return entry, ok
}

// Set stores a balance snapshot observed now.
func (c *MemoryCache) Set(_ context.Context, email string, balance string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[email] = Entry{Balance: balance, ObservedAt: c.now()}
}

// Invalidate drops the entry for an email, if any.
func (c *MemoryCache) Invalidate(_ context.Context, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, email)
}

// IsFresh reports whether the entry is younger than the configured TTL.
func (c *MemoryCache) IsFresh(entry Entry) bool {
	return entry.Age(c.now()) < c.ttl
}

// Sweep removes every stale entry and returns how many were dropped. Stale
// entries are already ignored at read time; sweeping just keeps the map
// bounded in long-lived processes.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	swept := 0
	for email, entry := range c.entries {
		if entry.Age(now) >= c.ttl {
			delete(c.entries, email)
			swept++
		}
	}
	return swept
}
