package query

import (
	"sync"
)

// resultStore keeps one session's results in submission order, bounded to a
// fixed capacity. Eviction removes the oldest completed result first; running
// results are never evicted.
type resultStore struct {
	mu       sync.Mutex
	results  map[string]*Result
	order    []string
	capacity int
}

func newResultStore(capacity int) *resultStore {
	if capacity <= 0 {
		capacity = DefaultResultCapacity
	}
	return &resultStore{
		results:  make(map[string]*Result),
		capacity: capacity,
	}
}

func (s *resultStore) put(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[r.QueryID]; !ok {
		s.order = append(s.order, r.QueryID)
	}
	s.results[r.QueryID] = r
	s.evictLocked()
}

func (s *resultStore) get(queryID string) (*Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[queryID]
	return r, ok
}

func (s *resultStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func (s *resultStore) evictLocked() {
	for len(s.results) > s.capacity {
		evicted := false
		for i, id := range s.order {
			r := s.results[id]
			if r != nil && !r.Status().Terminal() {
				continue
			}
			delete(s.results, id)
			s.order = append(s.order[:i], s.order[i+1:]...)
			evicted = true
			break
		}
		if !evicted {
			return
		}
	}
}

// registry maps session IDs to their result stores. Dropping a session
// releases every result it accumulated.
type registry struct {
	mu       sync.Mutex
	stores   map[string]*resultStore
	capacity int
}

func newRegistry(capacity int) *registry {
	return &registry{
		stores:   make(map[string]*resultStore),
		capacity: capacity,
	}
}

func (r *registry) forSession(sessionID string) *resultStore {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.stores[sessionID]
	if !ok {
		st = newResultStore(r.capacity)
		r.stores[sessionID] = st
	}
	return st
}

func (r *registry) lookup(sessionID string) (*resultStore, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.stores[sessionID]
	return st, ok
}

func (r *registry) drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, sessionID)
}
