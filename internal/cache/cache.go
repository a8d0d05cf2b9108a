package cache

import (
	"sort"
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Cache stores values by key until they expire.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Put(key string, value V)
	// Expire drops every entry that has expired at now and returns how many were dropped.
	Expire(now time.Time) int
}

type entry[V any] struct {
	value     V
	storedAt  time.Time
	expiresAt time.Time
}

// EntryStatus describes a cached entry without its value.
type EntryStatus struct {
	Key       string    `json:"key"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Expired   bool      `json:"expired"`
}

// TTLCache keeps every entry for a fixed time after it was stored.
type TTLCache[V any] struct {
	entries map[string]entry[V]
	ttl     time.Duration
	clock   Clock
	mu      sync.RWMutex
}

// NewTTLCache creates a cache. A nil clock uses the wall clock.
func NewTTLCache[V any](ttl time.Duration, clock Clock) *TTLCache[V] {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TTLCache[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the value for key if it is present and not expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.clock.Now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[V]) Put(key string, value V) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, storedAt: now, expiresAt: now.Add(c.ttl)}
}

func (c *TTLCache[V]) Expire(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Sweep expires entries against the cache's own clock.
func (c *TTLCache[V]) Sweep() int {
	return c.Expire(c.clock.Now())
}

// Clear drops every entry and returns how many there were.
func (c *TTLCache[V]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]entry[V])
	return n
}

func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Status lists the entries sorted by key.
func (c *TTLCache[V]) Status() []EntryStatus {
	now := c.clock.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]EntryStatus, 0, len(c.entries))
	for key, e := range c.entries {
		out = append(out, EntryStatus{
			Key:       key,
			StoredAt:  e.storedAt,
			ExpiresAt: e.expiresAt,
			Expired:   !now.Before(e.expiresAt),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
