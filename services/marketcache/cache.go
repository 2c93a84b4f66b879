package marketcache

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Kind identifies one class of cached market data
type Kind string

const (
	KindQuote         Kind = "quote"
	KindHistorical    Kind = "historical"
	KindAccount       Kind = "account"
	KindPositions     Kind = "positions"
	KindShortInterest Kind = "short_interest"
	KindNews          Kind = "news"
)

// Kinds lists every cache kind in a stable order
var Kinds = []Kind{KindQuote, KindHistorical, KindAccount, KindPositions, KindShortInterest, KindNews}

// Entry is one cached payload. IsCached is true only on entries served
// from a prior write, never on the write path. Payloads are shared
// references; callers must treat them as read-only.
type Entry struct {
	Key         string      `json:"key"`
	Payload     interface{} `json:"payload"`
	LastUpdated time.Time   `json:"last_updated"`
	IsCached    bool        `json:"is_cached"`
}

// Stats summarizes cache contents and connectivity bookkeeping
type Stats struct {
	Counts             map[Kind]int `json:"counts"`
	Connected          bool         `json:"connected"`
	LastConnectedAt    *time.Time   `json:"last_connected_at,omitempty"`
	LastDisconnectedAt *time.Time   `json:"last_disconnected_at,omitempty"`
	PendingRefresh     int          `json:"pending_refresh"`
}

// Cache is a keyed store of last-known-good market data. Entries are
// never evicted; staleness is surfaced through LastUpdated and the
// pending-refresh set, not by dropping data. The whole point is that
// consumers keep receiving the last known good payload across
// connectivity gaps instead of hard failures.
type Cache struct {
	mu             sync.RWMutex
	entries        map[Kind]map[string]Entry
	pending        map[string]struct{}
	connected      bool
	connectedAt    *time.Time
	disconnectedAt *time.Time
}

// New creates an empty cache
func New() *Cache {
	entries := make(map[Kind]map[string]Entry, len(Kinds))
	for _, kind := range Kinds {
		entries[kind] = make(map[string]Entry)
	}
	return &Cache{
		entries: entries,
		pending: make(map[string]struct{}),
	}
}

// HistoricalKey builds the composite key for historical bar data
func HistoricalKey(symbol, duration, barSize string) string {
	return fmt.Sprintf("%s|%s|%s", symbol, duration, barSize)
}

// Put records a fresh payload with the current timestamp, overwriting
// any prior entry for the same key. A fresh quote write also counts as
// a refresh for pending-refresh bookkeeping.
func (c *Cache) Put(kind Kind, key string, payload interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.entries[kind]
	if !ok {
		m = make(map[string]Entry)
		c.entries[kind] = m
	}
	m[key] = Entry{
		Key:         key,
		Payload:     payload,
		LastUpdated: time.Now(),
	}
	if kind == KindQuote {
		delete(c.pending, key)
	}
}

// Restore inserts a payload preserving its original timestamp. Used to
// warm-start the cache from the on-disk archive; restored data is stale
// by definition and must not look freshly written.
func (c *Cache) Restore(kind Kind, key string, payload interface{}, lastUpdated time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.entries[kind]
	if !ok {
		m = make(map[string]Entry)
		c.entries[kind] = m
	}
	m[key] = Entry{
		Key:         key,
		Payload:     payload,
		LastUpdated: lastUpdated,
	}
}

// Get returns a copy of the stored entry annotated with IsCached=true,
// or ok=false if the key was never written. The cache never fabricates
// data; absence propagates to the caller.
func (c *Cache) Get(kind Kind, key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[kind][key]
	if !ok {
		return Entry{}, false
	}
	entry.IsCached = true
	return entry, true
}

// Keys returns all keys stored for a kind
func (c *Cache) Keys(kind Kind) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.entries[kind]))
	for key := range c.entries[kind] {
		out = append(out, key)
	}
	return out
}

// Entries returns copies of all entries of a kind, annotated as cached
// reads. Used by the snapshot archiver.
func (c *Cache) Entries(kind Kind) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.entries[kind]))
	for _, entry := range c.entries[kind] {
		entry.IsCached = true
		out = append(out, entry)
	}
	return out
}

// OnConnected marks the upstream source as connected and schedules every
// known quote key for refresh. Existing payloads are not invalidated;
// stale-but-present data stays servable during the refresh window.
func (c *Cache) OnConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.connected = true
	c.connectedAt = &now
	for key := range c.entries[KindQuote] {
		c.pending[key] = struct{}{}
	}
	log.Printf("Market data source connected, %d quote keys queued for refresh", len(c.pending))
}

// OnDisconnected records the disconnect. Cached payloads remain servable.
func (c *Cache) OnDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.connected = false
	c.disconnectedAt = &now
	log.Printf("Market data source disconnected, serving cached data")
}

// Connected reports the last known connectivity state
func (c *Cache) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// PendingRefresh returns the symbols still awaiting a fresh write since
// the last reconnect
func (c *Cache) PendingRefresh() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.pending))
	for key := range c.pending {
		out = append(out, key)
	}
	return out
}

// MarkRefreshed removes one key from the pending-refresh set, silently
// no-oping when absent
func (c *Cache) MarkRefreshed(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, key)
}

// Stats returns per-kind entry counts and connectivity bookkeeping
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := make(map[Kind]int, len(c.entries))
	for kind, m := range c.entries {
		counts[kind] = len(m)
	}
	return Stats{
		Counts:             counts,
		Connected:          c.connected,
		LastConnectedAt:    c.connectedAt,
		LastDisconnectedAt: c.disconnectedAt,
		PendingRefresh:     len(c.pending),
	}
}
