// Package cache implements the bibformat engine's process-wide caches
// (spec.md §4.K): bounded, concurrency-safe key/value stores with
// single-flight loading and hit/miss accounting, plus a Manager that groups
// several of them for bulk invalidation.
//
// This is a generic rebuild of the teacher's internal/cache package (whose
// PersistedCache[T] type is referenced by several of its callers —
// internal/pipeline/template_resolver.go, json_parser.go,
// structured_parser.go — but whose own definition was not present in the
// retrieved snapshot); the public surface (Get/Set/Hit/Miss, constructed
// with a name and a size) matches those call sites.
package cache

import (
	"strconv"
	"sync/atomic"

	"github.com/cespare/xxhash"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// hashKey reduces an arbitrary-length cache key (a filename, or a
// "kb\x00key" pair) to a fixed-width string before it reaches the LRU,
// the same xxhash.Sum64String-to-decimal-string scheme the teacher's
// template_resolver.go and structured_parser.go use to turn a raw
// template/pattern string into a cache key.
func hashKey(key string) string {
	return strconv.FormatUint(xxhash.Sum64String(key), 10)
}

// Sink receives hit/miss counts per cache kind, typically wired to
// internal/metrics. A nil Sink is a valid no-op.
type Sink interface {
	CacheHit(cacheName string)
	CacheMiss(cacheName string)
}

// PersistedCache is a bounded, concurrency-safe cache of name -> value,
// with single-flight loading: concurrent misses for the same key perform at
// most one load (spec.md §5), and a redundant racing load that loses the
// race is simply discarded once the winner's value is published.
type PersistedCache[T any] struct {
	name  string
	lru   *lru.Cache[string, T]
	group singleflight.Group
	sink  Sink

	hits   atomic.Int64
	misses atomic.Int64
}

// NewPersistedCache creates a cache named name holding up to size entries.
// sink may be nil.
func NewPersistedCache[T any](name string, size int, sink Sink) *PersistedCache[T] {
	if size <= 0 {
		size = 1
	}
	l, err := lru.New[string, T](size)
	if err != nil {
		// Only returned by lru.New for a non-positive size, which we've
		// just guarded against.
		panic(err)
	}
	return &PersistedCache[T]{name: name, lru: l, sink: sink}
}

// Get returns the cached value for key, if present.
func (c *PersistedCache[T]) Get(key string) (T, bool) {
	v, ok := c.lru.Get(hashKey(key))
	return v, ok
}

// Set stores value under key, replacing any existing entry.
func (c *PersistedCache[T]) Set(key string, value T) {
	c.lru.Add(hashKey(key), value)
}

// GetOrLoad returns the cached value for key, loading it with load if
// absent. Concurrent calls for the same key share a single in-flight load.
func (c *PersistedCache[T]) GetOrLoad(key string, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		c.Hit()
		return v, nil
	}
	c.Miss()

	v, err, _ := c.group.Do(hashKey(key), func() (any, error) {
		// Re-check: another goroutine may have published a value while we
		// were queued behind the singleflight group.
		if cached, ok := c.Get(key); ok {
			return cached, nil
		}
		loaded, loadErr := load()
		if loadErr != nil {
			return loaded, loadErr
		}
		c.Set(key, loaded)
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Hit records a cache hit.
func (c *PersistedCache[T]) Hit() { c.hits.Add(1); c.report(true) }

// Miss records a cache miss.
func (c *PersistedCache[T]) Miss() { c.misses.Add(1); c.report(false) }

func (c *PersistedCache[T]) report(hit bool) {
	if c.sink == nil {
		return
	}
	if hit {
		c.sink.CacheHit(c.name)
	} else {
		c.sink.CacheMiss(c.name)
	}
}

// Stats returns the cumulative hit/miss counts.
func (c *PersistedCache[T]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Clear drops every entry. Implements the Clearable interface consumed by
// Manager.
func (c *PersistedCache[T]) Clear() {
	c.lru.Purge()
}

// Remove drops a single entry, used for targeted invalidation when a
// specific template/output/element file changes on disk.
func (c *PersistedCache[T]) Remove(key string) {
	c.lru.Remove(hashKey(key))
}

// Clearable is any cache that can be bulk-invalidated.
type Clearable interface {
	Clear()
}

// Manager groups the engine's caches (templates, elements, outputs, KB
// mappings) so that ClearCaches can invalidate all of them at once,
// matching spec.md §4.K.
type Manager struct {
	caches []Clearable
}

// NewManager creates an empty Manager. Register caches with Register.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds a cache to the set invalidated by ClearCaches.
func (m *Manager) Register(c Clearable) {
	m.caches = append(m.caches, c)
}

// ClearCaches drops every registered cache's contents.
func (m *Manager) ClearCaches() {
	for _, c := range m.caches {
		c.Clear()
	}
}
