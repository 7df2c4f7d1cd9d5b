// Package unitcache keeps loaded provider and command units for the lifetime
// of the process, keyed by their synthetic identity.
package unitcache

import "sync"

// Cache loads each identity at most once. A failed load is not cached, so a
// later call for the same identity tries again.
type Cache[T any] struct {
	mu    sync.Mutex
	units map[string]T
}

// New creates an empty cache.
func New[T any]() *Cache[T] {
	return &Cache[T]{units: make(map[string]T)}
}

// Load returns the unit cached under identity, calling load to produce it
// when it is not cached yet. The bool result reports a cache hit.
func (c *Cache[T]) Load(identity string, load func() (T, error)) (T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if unit, ok := c.units[identity]; ok {
		return unit, true, nil
	}

	unit, err := load()
	if err != nil {
		var zero T
		return zero, false, err
	}
	c.units[identity] = unit
	return unit, false, nil
}

// Get returns the unit cached under identity without loading it.
func (c *Cache[T]) Get(identity string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	unit, ok := c.units[identity]
	return unit, ok
}

// Len returns the number of cached units.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.units)
}
