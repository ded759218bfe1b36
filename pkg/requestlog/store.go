package requestlog

import (
	"strings"
	"sync"
)

// Filter selects a subset of log entries.
type Filter struct {
	// RuleID filters by matched rule.
	RuleID string

	// Method filters by HTTP method.
	Method string

	// Path filters by path prefix.
	Path string

	// Limit caps the number of returned entries (0 = no cap).
	Limit int

	// Offset skips that many entries.
	Offset int
}

// Subscriber receives new entries as they are logged.
type Subscriber chan *Entry

// Store is an in-memory, append-only request history. Safe for concurrent
// use.
type Store struct {
	mu      sync.RWMutex
	entries []*Entry
	subs    map[Subscriber]struct{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{subs: make(map[Subscriber]struct{})}
}

// Log appends an entry and fans it out to subscribers. Slow subscribers are
// skipped rather than blocking the request path.
func (s *Store) Log(entry *Entry) {
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	for sub := range s.subs {
		select {
		case sub <- entry:
		default:
		}
	}
	s.mu.Unlock()
}

// Get retrieves an entry by ID, or nil.
func (s *Store) Get(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// List returns entries in append order, optionally filtered.
func (s *Store) List(filter *Filter) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, e := range s.entries {
		if filter != nil && !matchesFilter(e, filter) {
			continue
		}
		out = append(out, e)
	}

	if filter == nil {
		return out
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe registers a channel that receives every new entry. The returned
// function unsubscribes and closes the channel.
func (s *Store) Subscribe() (Subscriber, func()) {
	sub := make(Subscriber, 64)
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	return sub, func() {
		s.mu.Lock()
		if _, ok := s.subs[sub]; ok {
			delete(s.subs, sub)
			close(sub)
		}
		s.mu.Unlock()
	}
}

func matchesFilter(e *Entry, f *Filter) bool {
	if f.RuleID != "" && e.MatchedRuleID != f.RuleID {
		return false
	}
	if f.Method != "" && e.Method != f.Method {
		return false
	}
	if f.Path != "" && !strings.HasPrefix(e.Path, f.Path) {
		return false
	}
	return true
}
