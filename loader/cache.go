package loader

import "sync"

// Cache memoizes loaded values by key. The first Get for a key runs the loader while
// holding the cache lock, so each key is loaded at most once at a time; later calls
// return the stored value. Failed loads are not stored. Entries stay until
// Invalidate or Reset.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]T
}

// NewCache creates an empty cache.
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[string]T)}
}

// Get returns the value for key, calling load to populate it if absent.
func (c *Cache[T]) Get(key string, load func() (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.entries[key]; ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	if c.entries == nil {
		c.entries = make(map[string]T)
	}
	c.entries[key] = v
	return v, nil
}

// Invalidate drops the value for key.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Reset drops every value.
func (c *Cache[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]T)
}

// Len returns the number of cached values.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
