// Package atomics provides the small concurrent collections shared
// across recursive scan calls: a check-and-insert string set and a
// counter map. Both are safe for concurrent use from multiple top-level
// scan goroutines.
package atomics

import "sync"

// Set is a concurrent set of strings with a single atomic
// check-and-insert operation. On a race, exactly one caller wins the
// insert.
type Set struct {
	mu sync.Mutex
	m  map[string]struct{}
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{m: make(map[string]struct{})}
}

// CheckAndInsert inserts key and reports whether it was already
// present.
func (s *Set) CheckAndInsert(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, seen := s.m[key]
	if !seen {
		s.m[key] = struct{}{}
	}
	return seen
}

// Contains reports whether key is present.
func (s *Set) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[key]
	return ok
}

// Len returns the number of keys.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Keys returns a copy of the keys in arbitrary order.
func (s *Set) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.m))
	for k := range s.m {
		out = append(out, k)
	}
	return out
}

// CounterMap accumulates uint64 tallies keyed by string. Increments to
// the same bucket serialize; distinct buckets contend only on the map
// lock.
type CounterMap struct {
	mu sync.Mutex
	m  map[string]uint64
}

// NewCounterMap returns an empty counter map.
func NewCounterMap() *CounterMap {
	return &CounterMap{m: make(map[string]uint64)}
}

// Add increments the bucket for key by n.
func (c *CounterMap) Add(key string, n uint64) {
	c.mu.Lock()
	c.m[key] += n
	c.mu.Unlock()
}

// Get returns the current tally for key.
func (c *CounterMap) Get(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[key]
}

// Len returns the number of distinct buckets.
func (c *CounterMap) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// Snapshot returns a copy of the tallies.
func (c *CounterMap) Snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.m))
	for k, v := range c.m {
		out[k] = v
	}
	return out
}
