package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/doron007/chimescribe/internal/observe"
	"github.com/doron007/chimescribe/pkg/store"
)

// defaultSnapshotInterval is the default period between persistence
// ticks.
const defaultSnapshotInterval = 10 * time.Second

// defaultRetention is how long saved sessions are kept before the
// janitor removes them.
const defaultRetention = 24 * time.Hour

// Snapshotter periodically persists the live session to the primary
// store. This ensures that long meetings survive a process crash or
// browser-side feed drop with at most one interval of lost captions.
// When the primary store is unavailable the snapshot falls back to the
// cache store so nothing is lost while the database recovers.
//
// All methods are safe for concurrent use.
type Snapshotter struct {
	session   *Session
	primary   store.Store
	cache     store.Store
	interval  time.Duration
	retention time.Duration
	metrics   *observe.Metrics
	now       func() time.Time

	mu       sync.Mutex
	done     chan struct{}
	stopOnce sync.Once
}

// SnapshotterConfig configures a [Snapshotter].
type SnapshotterConfig struct {
	// Session is the live session whose content is persisted.
	Session *Session

	// Primary is the store snapshots are written to.
	Primary store.Store

	// Cache is an optional fallback store used when Primary fails.
	Cache store.Store

	// Interval is how often to snapshot. Defaults to 10 seconds if zero.
	Interval time.Duration

	// Retention is how long records are kept before the janitor deletes
	// them. Defaults to 24 hours if zero.
	Retention time.Duration

	// Metrics receives snapshot timing and error counts. Defaults to
	// [observe.DefaultMetrics] if nil.
	Metrics *observe.Metrics
}

// NewSnapshotter creates a new [Snapshotter] with the given configuration.
func NewSnapshotter(cfg SnapshotterConfig) *Snapshotter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultSnapshotInterval
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Snapshotter{
		session:   cfg.Session,
		primary:   cfg.Primary,
		cache:     cfg.Cache,
		interval:  interval,
		retention: retention,
		metrics:   metrics,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start begins periodic snapshotting in a background goroutine.
// The goroutine runs until [Snapshotter.Stop] is called or ctx is
// cancelled.
func (s *Snapshotter) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop halts the snapshot loop. Safe to call multiple times.
func (s *Snapshotter) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// SnapshotNow performs an immediate snapshot, writing the session's
// current content to the primary store (or the cache on primary
// failure).
func (s *Snapshotter) SnapshotNow(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot(ctx)
}

// Janitor deletes records older than the configured retention from
// both stores and reports the total removed.
func (s *Snapshotter) Janitor(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)

	var total int64
	n, err := s.primary.DeleteOlderThan(ctx, cutoff)
	total += n
	if err != nil {
		err = fmt.Errorf("session: janitor primary: %w", err)
	}
	if s.cache != nil {
		m, cerr := s.cache.DeleteOlderThan(ctx, cutoff)
		total += m
		if cerr != nil && err == nil {
			err = fmt.Errorf("session: janitor cache: %w", cerr)
		}
	}
	return total, err
}

// loop runs the periodic snapshot ticker.
func (s *Snapshotter) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			if err := s.snapshot(ctx); err != nil {
				slog.Warn("periodic snapshot failed",
					"session_id", s.session.ID(),
					"error", err,
				)
			}
			s.mu.Unlock()
		}
	}
}

// snapshot writes the session's current record. Must be called with
// s.mu held.
func (s *Snapshotter) snapshot(ctx context.Context) error {
	start := s.now()
	rec := s.session.Snapshot(start)
	if rec.Empty() {
		return nil // nothing captured yet
	}

	err := s.primary.Save(ctx, rec)
	if err == nil {
		s.metrics.RecordSnapshot(ctx, s.now().Sub(start))
		return nil
	}

	s.metrics.RecordStoreError(ctx, "primary", "save")
	if s.cache == nil {
		return fmt.Errorf("session: snapshot %s: %w", rec.ID, err)
	}

	slog.Warn("primary store unavailable, writing snapshot to cache",
		"session_id", rec.ID,
		"error", err,
	)
	if cerr := s.cache.Save(ctx, rec); cerr != nil {
		s.metrics.RecordStoreError(ctx, "cache", "save")
		return fmt.Errorf("session: snapshot %s: cache fallback: %w", rec.ID, cerr)
	}
	s.metrics.RecordCacheFallback(ctx)
	s.metrics.RecordSnapshot(ctx, s.now().Sub(start))
	return nil
}
