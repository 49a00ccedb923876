// Package factstore holds the ground-truth records of a session and the archive
// of accepted rewrites.
package factstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"vocatio/internal/errors"
	"vocatio/internal/integrity"
	"vocatio/internal/matching"
	"vocatio/internal/types"
)

// Session is the context object for one user's résumé/job pair. The stored
// records are private copies; callers only ever receive clones.
type Session struct {
	mu         sync.RWMutex
	id         string
	candidate  *types.CandidateRecord
	job        *types.JobRecord
	optimized  *types.OptimizedCandidateRecord
	optimizing bool
	createdAt  time.Time
	lastAccess time.Time
}

// NewSession validates and snapshots the extracted records.
func NewSession(candidate *types.CandidateRecord, job *types.JobRecord) (*Session, error) {
	if err := integrity.ValidateCandidate(candidate); err != nil {
		return nil, err
	}
	if err := integrity.ValidateJob(job); err != nil {
		return nil, err
	}

	c := candidate.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	j := job.Clone()
	if j.ID == "" {
		j.ID = uuid.NewString()
	}

	now := time.Now()
	return &Session{
		id:         uuid.NewString(),
		candidate:  c,
		job:        j,
		createdAt:  now,
		lastAccess: now,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Candidate returns a copy of the source candidate record, or nil after Reset.
func (s *Session) Candidate() *types.CandidateRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.candidate.Clone()
}

// Job returns a copy of the job record, or nil after Reset.
func (s *Session) Job() *types.JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.job.Clone()
}

// Report computes the matching report from the current records.
func (s *Session) Report(matcher *matching.Matcher) (*types.MatchingReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.candidate == nil || s.job == nil {
		return nil, errors.NewValidationError(errors.ErrCodeEmptyInput, "session has been reset", nil).
			WithContext("session_id", s.id)
	}
	if matcher == nil {
		matcher = matching.NewMatcher(nil)
	}
	return matcher.BuildReport(s.candidate, s.job), nil
}

// Optimized returns the accepted rewrite, or nil if none was accepted yet.
func (s *Session) Optimized() *types.OptimizedCandidateRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.optimized == nil {
		return nil
	}
	out := *s.optimized
	out.Record = *s.optimized.Record.Clone()
	return &out
}

// Commit stores an accepted rewrite in the session's optimized slot.
func (s *Session) Commit(optimized *types.OptimizedCandidateRecord) error {
	if optimized == nil {
		return errors.NewInternalError("INVALID_COMMIT", "nothing to commit", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.candidate == nil {
		return errors.NewValidationError(errors.ErrCodeEmptyInput, "session has been reset", nil).
			WithContext("session_id", s.id)
	}
	if optimized.SourceID != s.candidate.ID {
		return errors.NewInternalError("INVALID_COMMIT",
			fmt.Sprintf("optimized record belongs to %s, not %s", optimized.SourceID, s.candidate.ID), nil)
	}

	stored := *optimized
	stored.Record = *optimized.Record.Clone()
	s.optimized = &stored
	return nil
}

// BeginOptimize marks the session as having an optimization in flight. The
// returned release func must be called when it finishes; a second caller gets
// an OPTIMIZATION_IN_PROGRESS error until then.
func (s *Session) BeginOptimize() (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.optimizing {
		return nil, errors.NewValidationError(errors.ErrCodeInProgress, "an optimization is already running for this session", nil).
			WithContext("session_id", s.id)
	}
	s.optimizing = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.optimizing = false
			s.mu.Unlock()
		})
	}, nil
}

// Reset discards the records and any accepted rewrite.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidate = nil
	s.job = nil
	s.optimized = nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}
