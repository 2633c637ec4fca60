// Package mock provides an in-memory test double for the store.Store
// interface.
//
// Use Store in unit tests to verify save and resume flows without a
// database, and to inject failures through the Err fields.
//
// Example:
//
//	st := mock.NewStore()
//	st.SaveErr = errors.New("connection refused")
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/doron007/chimescribe/pkg/store"
)

var _ store.Store = (*Store)(nil)

// Store is a mock implementation of store.Store backed by a map. It
// applies the same shrink guard as the real backends so tests exercise
// identical save semantics. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	records map[string]store.Record

	// SaveCalls counts Save invocations, including failed ones.
	SaveCalls int

	// SaveErr, if non-nil, is returned from Save without persisting.
	SaveErr error

	// LoadErr, if non-nil, is returned from Load and Latest.
	LoadErr error

	// Closed reports whether Close was called.
	Closed bool
}

// NewStore builds an empty mock store.
func NewStore() *Store {
	return &Store{records: map[string]store.Record{}}
}

// Save implements [store.Store].
func (s *Store) Save(ctx context.Context, rec store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveCalls++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if existing, ok := s.records[rec.ID]; ok {
		rec = store.GuardRecord(existing, rec)
	}
	s.records[rec.ID] = rec
	return nil
}

// Load implements [store.Store].
func (s *Store) Load(ctx context.Context, id string) (*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

// Latest implements [store.Store].
func (s *Store) Latest(ctx context.Context) (*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	var latest *store.Record
	for id := range s.records {
		rec := s.records[id]
		if latest == nil || rec.UpdatedAt.After(latest.UpdatedAt) {
			latest = &rec
		}
	}
	return latest, nil
}

// DeleteOlderThan implements [store.Store].
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Close implements [store.Store].
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
