// Package session keeps a bounded, in-memory history of recent query texts
// per session. The history feeds the behavioral risk detector, which compares
// the current query length against the session's running average. State is
// process-lifetime only; sessions expire after a TTL of inactivity.
package session

import (
	"sync"
	"time"

	"guardrag/internal/logging"
)

const (
	// DefaultMaxHistory bounds the per-session query list.
	DefaultMaxHistory = 20

	// DefaultTTL expires sessions after this much inactivity.
	DefaultTTL = 30 * time.Minute
)

// Store is a concurrency-safe per-session history store.
type Store struct {
	mu         sync.Mutex
	sessions   map[string]*entry
	maxHistory int
	ttl        time.Duration
	now        func() time.Time
}

type entry struct {
	queries  []string
	lastSeen time.Time
}

// NewStore creates a store. Non-positive maxHistory or ttl fall back to the
// defaults.
func NewStore(maxHistory int, ttl time.Duration) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		sessions:   make(map[string]*entry),
		maxHistory: maxHistory,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Record appends a query to the session's history, evicting the oldest entry
// when the history is full. Empty session IDs are ignored.
func (s *Store) Record(sessionID, query string) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	e, ok := s.sessions[sessionID]
	if !ok {
		e = &entry{}
		s.sessions[sessionID] = e
		logging.Session("new session %s", sessionID)
	}
	e.queries = append(e.queries, query)
	if len(e.queries) > s.maxHistory {
		e.queries = e.queries[len(e.queries)-s.maxHistory:]
	}
	e.lastSeen = s.now()
}

// History returns a copy of the session's prior queries, oldest first.
// Unknown or expired sessions return nil.
func (s *Store) History(sessionID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]string, len(e.queries))
	copy(out, e.queries)
	return out
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	return len(s.sessions)
}

// pruneLocked drops sessions idle past the TTL. Caller holds mu.
func (s *Store) pruneLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			logging.Session("expired session %s", id)
		}
	}
}
