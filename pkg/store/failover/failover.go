// Package failover wraps a session store with a circuit breaker so a
// dead database fails fast instead of stalling every snapshot tick.
//
// The breaker is the classic three-state kind (closed, open,
// half-open). While it is open every operation returns [ErrCircuitOpen]
// immediately, which lets callers fall back to their cache store
// without waiting out connection timeouts.
//
// All types are safe for concurrent use.
package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/doron007/chimescribe/pkg/store"
)

// ErrCircuitOpen is returned while the breaker is open and the reset
// timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("failover: circuit breaker is open")

// State is the breaker's current operating mode.
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen] until the
	// reset timeout elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through to
	// decide whether the store has recovered.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the breaker tuning knobs.
type Config struct {
	// Name labels the wrapped store in log messages.
	Name string

	// MaxFailures is how many consecutive failures open the breaker.
	// Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing
	// again. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenProbes is how many successful probes close the breaker.
	// Default: 3.
	HalfOpenProbes int
}

// Store wraps another [store.Store] and runs every operation through a
// circuit breaker.
type Store struct {
	inner store.Store
	name  string

	maxFailures    int
	resetTimeout   time.Duration
	halfOpenProbes int

	mu            sync.Mutex
	state         State
	failures      int
	lastFailure   time.Time
	halfOpenCalls int
	halfOpenFails int
}

var _ store.Store = (*Store)(nil)

// Wrap returns s guarded by a circuit breaker. Zero-value config
// fields get defaults.
func Wrap(s store.Store, cfg Config) *Store {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 3
	}
	return &Store{
		inner:          s,
		name:           cfg.Name,
		maxFailures:    cfg.MaxFailures,
		resetTimeout:   cfg.ResetTimeout,
		halfOpenProbes: cfg.HalfOpenProbes,
	}
}

// Save implements [store.Store].
func (s *Store) Save(ctx context.Context, rec store.Record) error {
	return s.execute(func() error {
		return s.inner.Save(ctx, rec)
	})
}

// Load implements [store.Store].
func (s *Store) Load(ctx context.Context, id string) (*store.Record, error) {
	var rec *store.Record
	err := s.execute(func() error {
		var err error
		rec, err = s.inner.Load(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			// An empty store is healthy; don't count it against the breaker.
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

// Latest implements [store.Store].
func (s *Store) Latest(ctx context.Context) (*store.Record, error) {
	var rec *store.Record
	err := s.execute(func() error {
		var err error
		rec, err = s.inner.Latest(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteOlderThan implements [store.Store].
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.execute(func() error {
		var err error
		n, err = s.inner.DeleteOlderThan(ctx, cutoff)
		return err
	})
	return n, err
}

// Close implements [store.Store]. Close bypasses the breaker.
func (s *Store) Close() error {
	return s.inner.Close()
}

// State returns the breaker's current state. An open breaker whose
// reset timeout has elapsed reports half-open; the actual transition
// happens on the next call.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateOpen && time.Since(s.lastFailure) >= s.resetTimeout {
		return StateHalfOpen
	}
	return s.state
}

// execute runs fn if the breaker allows it.
func (s *Store) execute(fn func() error) error {
	s.mu.Lock()
	switch s.state {
	case StateOpen:
		if time.Since(s.lastFailure) < s.resetTimeout {
			s.mu.Unlock()
			return fmt.Errorf("%w (store %s)", ErrCircuitOpen, s.name)
		}
		s.state = StateHalfOpen
		s.halfOpenCalls = 0
		s.halfOpenFails = 0
		slog.Info("store breaker probing after reset timeout", "store", s.name)

	case StateHalfOpen:
		if s.halfOpenCalls >= s.halfOpenProbes {
			s.mu.Unlock()
			return fmt.Errorf("%w (store %s)", ErrCircuitOpen, s.name)
		}
	}

	probing := s.state == StateHalfOpen
	if probing {
		s.halfOpenCalls++
	}
	s.mu.Unlock()

	err := fn()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.recordFailure(probing)
	} else {
		s.recordSuccess(probing)
	}
	return err
}

// recordFailure updates failure accounting. Must be called with s.mu held.
func (s *Store) recordFailure(probing bool) {
	s.lastFailure = time.Now()

	if probing {
		s.halfOpenFails++
		s.state = StateOpen
		s.failures = s.maxFailures
		slog.Warn("store breaker re-opened after failed probe", "store", s.name)
		return
	}

	s.failures++
	if s.failures >= s.maxFailures && s.state == StateClosed {
		s.state = StateOpen
		slog.Warn("store breaker opened",
			"store", s.name,
			"consecutive_failures", s.failures,
		)
	}
}

// recordSuccess updates success accounting. Must be called with s.mu held.
func (s *Store) recordSuccess(probing bool) {
	if probing {
		if s.halfOpenCalls-s.halfOpenFails >= s.halfOpenProbes {
			s.state = StateClosed
			s.failures = 0
			s.halfOpenCalls = 0
			s.halfOpenFails = 0
			slog.Info("store breaker closed after successful probes", "store", s.name)
		}
		return
	}
	s.failures = 0
}
