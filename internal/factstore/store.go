package factstore

import (
	"sync"
	"time"

	"vocatio/internal/errors"
	"vocatio/internal/types"
)

// Store keeps live sessions in memory and evicts the ones left idle past the TTL.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	done     chan struct{}
	once     sync.Once
	logger   *errors.Logger
}

// NewStore creates a store. A zero ttl disables eviction.
func NewStore(ttl, cleanupInterval time.Duration, logger *errors.Logger) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		done:     make(chan struct{}),
		logger:   logger,
	}

	if ttl > 0 {
		if cleanupInterval <= 0 {
			cleanupInterval = ttl
		}
		go s.cleanupRoutine(cleanupInterval)
	}
	return s
}

// Create starts a new session for the given records.
func (s *Store) Create(candidate *types.CandidateRecord, job *types.JobRecord) (*Session, error) {
	session, err := NewSession(candidate, job)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Debug("Session created",
			"session_id", session.ID(),
			"candidate_id", session.candidate.ID,
			"job_id", session.job.ID)
	}
	return session, nil
}

// Get returns a live session and refreshes its idle timer.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	s.mu.Unlock()

	if ok {
		session.touch(time.Now())
	}
	return session, ok
}

// Delete resets and removes a session.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		session.Reset()
	}
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// GetStats returns store statistics for the stats endpoint.
func (s *Store) GetStats() map[string]any {
	return map[string]any{
		"active_sessions": s.Len(),
		"ttl":             s.ttl.String(),
	}
}

// Close stops the cleanup goroutine.
func (s *Store) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Store) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictIdle(time.Now())
		case <-s.done:
			return
		}
	}
}

// evictIdle drops sessions whose last access is older than the TTL.
func (s *Store) evictIdle(now time.Time) int {
	s.mu.Lock()
	var expired []*Session
	for id, session := range s.sessions {
		if now.Sub(session.idleSince()) > s.ttl {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range expired {
		session.Reset()
	}
	if len(expired) > 0 && s.logger != nil {
		s.logger.Info("Evicted idle sessions", "count", len(expired))
	}
	return len(expired)
}
