package cache

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSink struct {
	mu         sync.Mutex
	hits, miss map[string]int
}

func newCountingSink() *countingSink {
	return &countingSink{hits: map[string]int{}, miss: map[string]int{}}
}

func (s *countingSink) CacheHit(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[name]++
}

func (s *countingSink) CacheMiss(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.miss[name]++
}

func TestPersistedCacheGetSet(t *testing.T) {
	c := NewPersistedCache[string]("templates", 2, nil)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", "one")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "one", v)
}

func TestPersistedCacheEviction(t *testing.T) {
	c := NewPersistedCache[int]("outputs", 1, nil)
	c.Set("a", 1)
	c.Set("b", 2)

	_, ok := c.Get("a")
	assert.False(t, ok, "least-recently-used entry should have been evicted")

	v, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestPersistedCacheGetOrLoadSharesSingleLoad(t *testing.T) {
	c := NewPersistedCache[string]("elements", 8, nil)

	var loads int32
	var mu sync.Mutex
	load := func() (string, error) {
		mu.Lock()
		loads++
		mu.Unlock()
		return "loaded", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrLoad("key", load)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "loaded", r)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(1), loads)
}

func TestPersistedCacheGetOrLoadPropagatesError(t *testing.T) {
	c := NewPersistedCache[string]("kb", 8, nil)
	wantErr := errors.New("boom")

	_, err := c.GetOrLoad("key", func() (string, error) {
		return "", wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// A failed load must not poison the cache.
	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestPersistedCacheReportsHitsAndMisses(t *testing.T) {
	sink := newCountingSink()
	c := NewPersistedCache[string]("templates", 8, sink)

	_, _ = c.GetOrLoad("key", func() (string, error) { return "v", nil })
	_, _ = c.GetOrLoad("key", func() (string, error) { return "v", nil })

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 1, sink.miss["templates"])
	assert.Equal(t, 1, sink.hits["templates"])
}

func TestPersistedCacheClearAndRemove(t *testing.T) {
	c := NewPersistedCache[int]("outputs", 8, nil)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Remove("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestManagerClearCachesClearsAllRegistered(t *testing.T) {
	templates := NewPersistedCache[string]("templates", 8, nil)
	outputs := NewPersistedCache[string]("outputs", 8, nil)
	templates.Set("a", "x")
	outputs.Set("b", "y")

	m := NewManager()
	m.Register(templates)
	m.Register(outputs)
	m.ClearCaches()

	_, ok := templates.Get("a")
	assert.False(t, ok)
	_, ok = outputs.Get("b")
	assert.False(t, ok)
}
