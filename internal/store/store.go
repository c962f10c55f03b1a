// Package store holds the in-memory alert collection and its fetch state.
package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
)

// State is the fetch lifecycle of the store.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Store is the single owner of the alert collection. All mutations are
// serialized by one lock.
//
// Fetches are ordered by the sequence number handed out by BeginFetch: a
// result is applied only if no later-started fetch has already completed.
type Store struct {
	mu         sync.RWMutex
	alerts     []domain.Alert
	state      State
	err        error
	nextSeq    uint64
	appliedSeq uint64
}

// New returns an empty store in StateIdle.
func New() *Store {
	return &Store{alerts: []domain.Alert{}}
}

// BeginFetch moves the store to StateLoading, clears the last error and
// returns the sequence number the fetch must complete with.
func (s *Store) BeginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	s.state = StateLoading
	s.err = nil
	return s.nextSeq
}

// Replace installs a freshly fetched batch, sorted newest first. It reports
// false and changes nothing if seq is older than an already applied fetch.
func (s *Store) Replace(seq uint64, alerts []domain.Alert) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.acceptLocked(seq) {
		return false
	}

	next := make([]domain.Alert, len(alerts))
	for i, a := range alerts {
		next[i] = a.Clone()
	}
	domain.SortByRecency(next)
	s.alerts = next
	s.err = nil
	s.settleLocked(StateLoaded)
	return true
}

// Fail records a fetch error and keeps the previous collection. It reports
// false and changes nothing if seq is older than an already applied fetch.
func (s *Store) Fail(seq uint64, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.acceptLocked(seq) {
		return false
	}
	s.err = err
	s.settleLocked(StateFailed)
	return true
}

func (s *Store) acceptLocked(seq uint64) bool {
	if seq <= s.appliedSeq || seq > s.nextSeq {
		return false
	}
	s.appliedSeq = seq
	return true
}

// settleLocked leaves the store in StateLoading while a newer fetch is still
// outstanding.
func (s *Store) settleLocked(final State) {
	if s.appliedSeq < s.nextSeq {
		s.state = StateLoading
		return
	}
	s.state = final
}

// RecordError publishes err as the current error without touching the
// collection or the fetch state. The next BeginFetch clears it.
func (s *Store) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// State returns the current fetch state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the error of the last applied fetch, or nil.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Len returns the number of alerts held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// Snapshot returns a copy of the current collection, newest first.
func (s *Store) Snapshot() []domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Alert, len(s.alerts))
	for i, a := range s.alerts {
		out[i] = a.Clone()
	}
	return out
}

// Get returns the alert with the given id.
func (s *Store) Get(id uuid.UUID) (domain.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexLocked(id); i >= 0 {
		return s.alerts[i].Clone(), true
	}
	return domain.Alert{}, false
}

// Append adds an alert, keeping the collection sorted newest first. An alert
// whose id is already present replaces the existing entry.
func (s *Store) Append(alert domain.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(alert.ID); i >= 0 {
		s.alerts[i] = alert.Clone()
	} else {
		s.alerts = append(s.alerts, alert.Clone())
	}
	domain.SortByRecency(s.alerts)
}

// ReplaceByID swaps in a new version of an existing alert. An alert that
// fails validation is rejected with domain.ErrInvalidAlert.
func (s *Store) ReplaceByID(alert domain.Alert) error {
	if err := alert.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(alert.ID)
	if i < 0 {
		return domain.ErrNotFound
	}
	s.alerts[i] = alert.Clone()
	domain.SortByRecency(s.alerts)
	return nil
}

// Remove deletes the alert with the given id.
func (s *Store) Remove(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return domain.ErrNotFound
	}
	s.alerts = append(s.alerts[:i], s.alerts[i+1:]...)
	return nil
}

// IncrementReportCount bumps an alert's report count and returns the new
// value. The store is left untouched if the id is unknown.
func (s *Store) IncrementReportCount(id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return 0, domain.ErrNotFound
	}
	s.alerts[i].ReportCount++
	return s.alerts[i].ReportCount, nil
}

func (s *Store) indexLocked(id uuid.UUID) int {
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			return i
		}
	}
	return -1
}
