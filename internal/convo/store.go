package convo

import (
	"container/list"
	"sync"
	"time"
)

const (
	// DefaultTTL is how long an untouched thread context stays usable.
	DefaultTTL = 60 * time.Minute

	// DefaultMaxThreads bounds how many thread contexts are cached at once.
	DefaultMaxThreads = 1000
)

// entry is one cached thread context. The order element lives in the
// store's insertion-order list and carries the thread key.
type entry struct {
	turns     []Turn
	lastWrite time.Time
	order     *list.Element
}

// Store is a concurrency-safe cache of thread contexts. Entries expire when
// their last write is older than the TTL (found lazily on Get or proactively
// by Sweep), and insertion past the capacity bound evicts the
// least-recently-inserted entry. A single mutex covers the whole table;
// contention is low because each inbound event touches the store only twice.
//
// Time is always passed in explicitly so tests control the clock.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // element values are thread keys, oldest at front
	ttl     time.Duration
	max     int
}

// NewStore creates a store with the given TTL and capacity.
// Non-positive values fall back to the defaults.
func NewStore(ttl time.Duration, maxThreads int) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxThreads <= 0 {
		maxThreads = DefaultMaxThreads
	}
	return &Store{
		entries: make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		max:     maxThreads,
	}
}

// Get returns the cached turns for key, or false if the key is absent or
// expired at now. Expired entries are deleted as a side effect. The returned
// slice is a copy; the store never hands out its own backing array.
func (s *Store) Get(key string, now time.Time) ([]Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if now.Sub(e.lastWrite) > s.ttl {
		s.remove(key, e)
		return nil, false
	}

	turns := make([]Turn, len(e.turns))
	copy(turns, e.turns)
	return turns, true
}

// Put inserts or replaces the turns for key, stamping lastWrite = now.
// Inserting a new key at capacity first evicts exactly one entry, the
// oldest-inserted. Replacing an existing key keeps its insertion position.
func (s *Store) Put(key string, turns []Turn, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]Turn, len(turns))
	copy(cp, turns)

	if e, ok := s.entries[key]; ok {
		e.turns = cp
		e.lastWrite = now
		return
	}

	if len(s.entries) >= s.max {
		if front := s.order.Front(); front != nil {
			oldest := front.Value.(string)
			s.remove(oldest, s.entries[oldest])
		}
	}

	e := &entry{turns: cp, lastWrite: now}
	e.order = s.order.PushBack(key)
	s.entries[key] = e
}

// Sweep deletes every entry whose last write is older than the TTL at now
// and returns how many were removed. Intended to run on a fixed cadence,
// independent of request traffic.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if now.Sub(e.lastWrite) > s.ttl {
			s.remove(key, e)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached thread contexts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// remove deletes an entry from both the table and the order list.
// Caller holds s.mu.
func (s *Store) remove(key string, e *entry) {
	s.order.Remove(e.order)
	delete(s.entries, key)
}
