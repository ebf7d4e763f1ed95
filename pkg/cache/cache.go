package cache

import (
	"container/list"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kodal/kodal/pkg/apierr"
)

// Type names one bucket of cached artifacts. The set is closed; each type
// carries its own TTL.
type Type string

const (
	TypeAddress    Type = "address"
	TypeBuilding   Type = "building"
	TypeCoordinate Type = "coordinate"
	TypeRealtime   Type = "realtime"
	TypeStatic     Type = "static"
)

// TTLs per cache type. Realtime data goes stale in minutes; static
// reference data survives a month.
var typeTTL = map[Type]time.Duration{
	TypeAddress:    24 * time.Hour,
	TypeBuilding:   24 * time.Hour,
	TypeCoordinate: 7 * 24 * time.Hour,
	TypeRealtime:   5 * time.Minute,
	TypeStatic:     30 * 24 * time.Hour,
}

// TTLFor returns the policy TTL for a cache type. Unknown types get the
// address TTL, the most conservative of the long-lived buckets.
func TTLFor(t Type) time.Duration {
	if ttl, ok := typeTTL[t]; ok {
		return ttl
	}
	return typeTTL[TypeAddress]
}

// ValidType reports whether t belongs to the closed type set.
func ValidType(t Type) bool {
	_, ok := typeTTL[t]
	return ok
}

const (
	// DefaultMaxEntries bounds the entry count.
	DefaultMaxEntries = 1000
	// DefaultMaxBytes bounds the cumulative serialized size (50 MiB).
	DefaultMaxBytes = 50 * 1024 * 1024
)

// entry is one cached artifact. Size is the length of the JSON
// serialization of the value, fixed at insert time.
type entry struct {
	fullKey   string
	value     any
	createdAt time.Time
	expiresAt time.Time
	hits      int64
	size      int64
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.After(now)
}

// Entry is a read-only view of a cached entry for inspection endpoints.
type Entry struct {
	Key       string        `json:"key"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Hits      int64         `json:"hits"`
	Size      int64         `json:"size"`
	Age       time.Duration `json:"age"`
}

// Stats is the headline counter set.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	MaxSize   int     `json:"maxSize"`
	HitRate   float64 `json:"hitRate"`
}

// DetailedStats adds the mutation counters and byte accounting.
type DetailedStats struct {
	Stats
	Sets              int64 `json:"sets"`
	Deletes           int64 `json:"deletes"`
	CalculatedSize    int64 `json:"calculatedSize"`
	MaxCalculatedSize int64 `json:"maxCalculatedSize"`
}

// MemoryUsage reports byte accounting against the configured cap.
type MemoryUsage struct {
	Current    int64   `json:"current"`
	Max        int64   `json:"max"`
	Percentage float64 `json:"percentage"`
}

// Options configures a Cache. Zero bounds fall back to the defaults.
type Options struct {
	MaxEntries int
	MaxBytes   int64
	Logger     zerolog.Logger
}

// Cache is a bounded in-memory LRU keyed by "{type}:{key}" with per-type
// TTL and byte accounting. All methods are safe for concurrent use; the
// entry-count and byte bounds hold after every committed operation.
type Cache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	lru        *list.List // front = most recently used
	maxEntries int
	maxBytes   int64
	bytes      int64
	logger     zerolog.Logger

	hits      int64
	misses    int64
	evictions int64
	sets      int64
	deletes   int64
}

// New creates an empty cache with the given bounds.
func New(opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Cache{
		items:      make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: opts.MaxEntries,
		maxBytes:   opts.MaxBytes,
		logger:     opts.Logger,
	}
}

// Option tweaks a single Set call.
type Option func(*setOptions)

type setOptions struct {
	ttl time.Duration
}

// WithTTL overrides the type's policy TTL for one entry.
func WithTTL(ttl time.Duration) Option {
	return func(o *setOptions) {
		o.ttl = ttl
	}
}

func fullKey(t Type, key string) string {
	return string(t) + ":" + key
}

// Set inserts or replaces an entry. The value must serialize to JSON; its
// serialized length counts toward the byte cap. Entries are evicted
// least-recently-used first until both bounds hold.
func (c *Cache) Set(t Type, key string, value any, opts ...Option) error {
	var so setOptions
	for _, opt := range opts {
		opt(&so)
	}
	ttl := so.ttl
	if ttl <= 0 {
		ttl = TTLFor(t)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return apierr.Wrap(apierr.CodeCache, "value is not serializable", err).
			WithDetail("key", fullKey(t, key))
	}
	size := int64(len(raw))
	if size > c.maxBytes {
		return apierr.New(apierr.CodeCache, "value exceeds the cache byte cap").
			WithDetail("key", fullKey(t, key)).
			WithDetail("size", size)
	}

	now := time.Now()
	fk := fullKey(t, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[fk]; ok {
		e := elem.Value.(*entry)
		c.bytes += size - e.size
		e.value = value
		e.size = size
		e.createdAt = now
		e.expiresAt = now.Add(ttl)
		e.hits = 0
		c.lru.MoveToFront(elem)
	} else {
		e := &entry{
			fullKey:   fk,
			value:     value,
			createdAt: now,
			expiresAt: now.Add(ttl),
			size:      size,
		}
		c.items[fk] = c.lru.PushFront(e)
		c.bytes += size
	}
	c.sets++

	for c.lru.Len() > c.maxEntries || c.bytes > c.maxBytes {
		c.evictOldest()
	}
	return nil
}

// Get returns the value for a key. A hit refreshes recency and bumps the
// entry's hit counter; an entry past its expiry is removed and reported
// as a miss.
func (c *Cache) Get(t Type, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[fullKey(t, key)]
	if !ok {
		c.misses++
		return nil, false
	}
	e := elem.Value.(*entry)
	if e.expired(time.Now()) {
		c.removeElement(elem)
		c.misses++
		return nil, false
	}
	c.lru.MoveToFront(elem)
	e.hits++
	c.hits++
	return e.value, true
}

// GetEntry returns an inspection view of a live entry without touching
// recency or counters.
func (c *Cache) GetEntry(t Type, key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[fullKey(t, key)]
	if !ok {
		return Entry{}, false
	}
	e := elem.Value.(*entry)
	now := time.Now()
	if e.expired(now) {
		c.removeElement(elem)
		return Entry{}, false
	}
	return Entry{
		Key:       e.fullKey,
		CreatedAt: e.createdAt,
		ExpiresAt: e.expiresAt,
		Hits:      e.hits,
		Size:      e.size,
		Age:       now.Sub(e.createdAt),
	}, true
}

// Has reports whether a live entry exists. No recency refresh, no miss
// counting.
func (c *Cache) Has(t Type, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[fullKey(t, key)]
	if !ok {
		return false
	}
	if elem.Value.(*entry).expired(time.Now()) {
		c.removeElement(elem)
		return false
	}
	return true
}

// RemainingTTL returns the time until an entry expires, in milliseconds.
// Absent or expired entries report zero.
func (c *Cache) RemainingTTL(t Type, key string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[fullKey(t, key)]
	if !ok {
		return 0
	}
	remaining := time.Until(elem.Value.(*entry).expiresAt)
	if remaining <= 0 {
		c.removeElement(elem)
		return 0
	}
	return remaining.Milliseconds()
}

// Delete removes one entry, reporting whether it existed.
func (c *Cache) Delete(t Type, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[fullKey(t, key)]
	if !ok {
		return false
	}
	c.removeElement(elem)
	c.deletes++
	return true
}

// DeleteByType removes every entry of one type and returns the count.
func (c *Cache) DeleteByType(t Type) int {
	prefix := string(t) + ":"

	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		e := elem.Value.(*entry)
		if len(e.fullKey) >= len(prefix) && e.fullKey[:len(prefix)] == prefix {
			c.removeElement(elem)
			c.deletes++
			count++
		}
		elem = prev
	}
	return count
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deletes += int64(c.lru.Len())
	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.bytes = 0
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// MemoryUsage reports current bytes against the cap.
func (c *Cache) MemoryUsage() MemoryUsage {
	c.mu.Lock()
	defer c.mu.Unlock()

	pct := 0.0
	if c.maxBytes > 0 {
		pct = float64(c.bytes) / float64(c.maxBytes) * 100
	}
	return MemoryUsage{Current: c.bytes, Max: c.maxBytes, Percentage: pct}
}

// Stats returns the headline counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

func (c *Cache) statsLocked() Stats {
	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total) * 100
	}
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.lru.Len(),
		MaxSize:   c.maxEntries,
		HitRate:   rate,
	}
}

// DetailedStats adds mutation counters and byte accounting to Stats.
func (c *Cache) DetailedStats() DetailedStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return DetailedStats{
		Stats:             c.statsLocked(),
		Sets:              c.sets,
		Deletes:           c.deletes,
		CalculatedSize:    c.bytes,
		MaxCalculatedSize: c.maxBytes,
	}
}

// ResetStats zeroes every counter. Entries are untouched.
func (c *Cache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits = 0
	c.misses = 0
	c.evictions = 0
	c.sets = 0
	c.deletes = 0
}

// evictOldest removes the least recently used entry. Caller holds the
// lock.
func (c *Cache) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	e := elem.Value.(*entry)
	c.removeElement(elem)
	c.evictions++
	c.logger.Debug().
		Str("key", e.fullKey).
		Int64("size", e.size).
		Int64("hits", e.hits).
		Msg("cache entry evicted")
}

// removeElement unlinks an entry from both structures. Caller holds the
// lock.
func (c *Cache) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	c.lru.Remove(elem)
	delete(c.items, e.fullKey)
	c.bytes -= e.size
}
