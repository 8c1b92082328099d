// Package store provides a generic, thread-safe, in-memory key-value store
// for use by WonderTwin twins. It keeps insertion order for listing, supports
// page-number pagination and in-place updates, and delegates ID generation to
// a pluggable IDGenerator.
package store

import (
	"sort"
	"sync"
	"time"
)

// Store is a generic, thread-safe, in-memory store for objects of type T.
// T must be a struct that can be marshaled/unmarshaled to JSON.
type Store[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string // insertion order for deterministic listing
	ids   IDGenerator
}

// New creates a new Store whose IDs come from the given generator.
func New[T any](ids IDGenerator) *Store[T] {
	return &Store[T]{
		items: make(map[string]T),
		order: make([]string, 0),
		ids:   ids,
	}
}

// NextID returns a fresh ID from the store's generator. IDs already held,
// e.g. from a loaded snapshot, are skipped.
func (s *Store[T]) NextID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for {
		id := s.ids.NewID()
		if _, exists := s.items[id]; !exists {
			return id
		}
	}
}

// Set stores an item with the given ID. If the ID already exists, it is overwritten
// but its position in the insertion order is preserved.
func (s *Store[T]) Set(id string, item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		s.order = append(s.order, id)
	}
	s.items[id] = item
}

// Get retrieves an item by ID. Returns the item and true if found, zero value and false otherwise.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// Has reports whether an item with the given ID exists.
func (s *Store[T]) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// Update applies fn to a copy of the item and stores the result, keeping the
// item's position. If fn returns an error the stored item is left untouched.
// The boolean reports whether the ID exists.
func (s *Store[T]) Update(id string, fn func(item *T) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return false, nil
	}
	if err := fn(&item); err != nil {
		return true, err
	}
	s.items[id] = item
	return true, nil
}

// List returns all items in insertion order.
func (s *Store[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]T, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.items[id])
	}
	return result
}

// ListIDs returns all IDs in insertion order.
func (s *Store[T]) ListIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Page represents one numbered page of a listing.
type Page[T any] struct {
	Data       []T `json:"data"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// Paginate returns the 1-based page of items matching predicate (nil matches
// everything), in insertion order. A size of 0 or less returns every match
// on a single page; a page below 1 is treated as 1.
func (s *Store[T]) Paginate(page, size int, predicate func(item T) bool) Page[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]T, 0, len(s.order))
	for _, id := range s.order {
		item := s.items[id]
		if predicate == nil || predicate(item) {
			matched = append(matched, item)
		}
	}

	if page < 1 {
		page = 1
	}
	if size <= 0 {
		return Page[T]{Data: matched, Page: 1, PageSize: len(matched), TotalItems: len(matched), TotalPages: 1}
	}

	totalPages := (len(matched) + size - 1) / size
	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}

	return Page[T]{
		Data:       matched[start:end],
		Page:       page,
		PageSize:   size,
		TotalItems: len(matched),
		TotalPages: totalPages,
	}
}

// Count returns the number of items in the store.
func (s *Store[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Reset clears all items and resets the ID generator when it supports it.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
	s.order = make([]string, 0)
	if r, ok := s.ids.(interface{ Reset() }); ok {
		r.Reset()
	}
}

// Snapshot returns all items as a JSON-serializable map.
func (s *Store[T]) Snapshot() map[string]T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]T, len(s.items))
	for k, v := range s.items {
		snapshot[k] = v
	}
	return snapshot
}

// LoadSnapshot replaces all items from a JSON-serializable map.
// Existing items are cleared. A map carries no order, so IDs are sorted to
// keep listing deterministic.
func (s *Store[T]) LoadSnapshot(snapshot map[string]T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T, len(snapshot))
	s.order = make([]string, 0, len(snapshot))
	for k, v := range snapshot {
		s.items[k] = v
		s.order = append(s.order, k)
	}
	sort.Strings(s.order)
}

// Clock provides a simulated clock for time-dependent twin behavior.
type Clock struct {
	mu     sync.RWMutex
	offset time.Duration
}

// NewClock creates a new simulated clock with no offset.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset)
}

// Advance moves the simulated clock forward by the given duration.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

// Reset resets the clock offset to zero.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
}

// Offset returns the current clock offset.
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}
