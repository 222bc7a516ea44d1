package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"tailorpress/internal/errors"
	"tailorpress/internal/pipeline"
)

const defaultSessionTTL = 30 * time.Minute

// sessionEntry pairs a pipeline run with its last-touched time
type sessionEntry struct {
	run      *pipeline.Run
	lastSeen time.Time
}

// SessionStore holds active refinement sessions keyed by ID. Idle
// sessions are evicted after the configured TTL; eviction closes the
// underlying run.
type SessionStore struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	ttl     time.Duration
	done    chan struct{}
	logger  *errors.Logger
}

// NewSessionStore creates a session store and starts its eviction loop
func NewSessionStore(ttl time.Duration, logger *errors.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	s := &SessionStore{
		entries: make(map[string]*sessionEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
		logger:  logger,
	}

	go s.evictionRoutine(time.Minute)
	return s
}

// Put registers a run and returns its session ID
func (s *SessionStore) Put(run *pipeline.Run) string {
	id := uuid.NewString()

	s.mu.Lock()
	s.entries[id] = &sessionEntry{run: run, lastSeen: time.Now()}
	s.mu.Unlock()

	return id
}

// Get returns the run for an ID and refreshes its TTL
func (s *SessionStore) Get(id string) (*pipeline.Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	entry.lastSeen = time.Now()
	return entry.run, true
}

// Remove removes a session and closes its run
func (s *SessionStore) Remove(id string) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()

	if ok {
		entry.run.Close()
	}
}

// Count returns the number of active sessions
func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the eviction loop and closes all remaining runs
func (s *SessionStore) Close() {
	close(s.done)

	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[string]*sessionEntry)
	s.mu.Unlock()

	for _, entry := range entries {
		entry.run.Close()
	}
}

func (s *SessionStore) evictionRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictIdle()
		case <-s.done:
			return
		}
	}
}

func (s *SessionStore) evictIdle() {
	now := time.Now()
	var evicted []*sessionEntry

	s.mu.Lock()
	for id, entry := range s.entries {
		if now.Sub(entry.lastSeen) > s.ttl {
			evicted = append(evicted, entry)
			delete(s.entries, id)
		}
	}
	remaining := len(s.entries)
	s.mu.Unlock()

	for _, entry := range evicted {
		entry.run.Finalize()
		entry.run.Close()
	}

	if len(evicted) > 0 && s.logger != nil {
		s.logger.Info("Evicted idle refinement sessions",
			"evicted", len(evicted),
			"remaining", remaining)
	}
}
