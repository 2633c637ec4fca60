// Package app wires all chimescribe subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the capture loops, and Shutdown tears
// everything down with a final snapshot.
//
// For testing, inject doubles via functional options (WithPrimaryStore,
// WithSource, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/doron007/chimescribe/internal/capture"
	"github.com/doron007/chimescribe/internal/config"
	"github.com/doron007/chimescribe/internal/health"
	"github.com/doron007/chimescribe/internal/observe"
	"github.com/doron007/chimescribe/internal/session"
	"github.com/doron007/chimescribe/internal/transcript"
	"github.com/doron007/chimescribe/pkg/store"
	"github.com/doron007/chimescribe/pkg/store/failover"
	"github.com/doron007/chimescribe/pkg/store/postgres"
	"github.com/doron007/chimescribe/pkg/store/sqlite"
)

// App owns all subsystem lifetimes for one captured meeting.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	// Subsystems, initialised in New, torn down in Shutdown.
	primary     store.Store
	cache       store.Store
	session     *session.Session
	source      capture.Source
	poller      *capture.Poller
	snapshotter *session.Snapshotter
	metricsSrv  *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithPrimaryStore injects the primary store instead of creating one from config.
func WithPrimaryStore(s store.Store) Option {
	return func(a *App) { a.primary = s }
}

// WithCacheStore injects the cache store instead of creating one from config.
func WithCacheStore(s store.Store) Option {
	return func(a *App) { a.cache = s }
}

// WithSource injects a capture source instead of dialling the relay.
func WithSource(s capture.Source) Option {
	return func(a *App) { a.source = s }
}

// WithMetrics injects a metrics set instead of the process default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together: stores, the
// session (resumed from a recent save when one exists), the capture
// source and the periodic loops.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStores(ctx); err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}
	if err := a.initSession(ctx); err != nil {
		return nil, fmt.Errorf("app: init session: %w", err)
	}
	if err := a.initCapture(ctx); err != nil {
		return nil, fmt.Errorf("app: init capture: %w", err)
	}

	a.snapshotter = session.NewSnapshotter(session.SnapshotterConfig{
		Session:   a.session,
		Primary:   a.primary,
		Cache:     a.cache,
		Interval:  cfg.Storage.SnapshotInterval.Std(),
		Retention: cfg.Storage.Retention.Std(),
		Metrics:   a.metrics,
	})

	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		health.New(health.StoreChecker("store", a.primary)).Register(mux)
		a.metricsSrv = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return a, nil
}

// Session returns the live session.
func (a *App) Session() *session.Session { return a.session }

// initStores opens the postgres primary and the sqlite cache. When no
// postgres DSN is configured the sqlite cache serves as the primary.
func (a *App) initStores(ctx context.Context) error {
	if a.primary == nil && a.cfg.Storage.PostgresDSN != "" {
		pg, err := postgres.New(ctx, a.cfg.Storage.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		// Behind a breaker so a dead database fails fast into the cache.
		a.primary = failover.Wrap(pg, failover.Config{Name: "postgres"})
		a.closers = append(a.closers, pg.Close)
		slog.Info("postgres session store ready")
	}

	if a.cache == nil && a.cfg.Storage.CachePath != "" {
		sq, err := sqlite.Open(a.cfg.Storage.CachePath)
		if err != nil {
			return fmt.Errorf("open sqlite cache %q: %w", a.cfg.Storage.CachePath, err)
		}
		a.cache = sq
		a.closers = append(a.closers, sq.Close)
		slog.Info("sqlite cache store ready", "path", a.cfg.Storage.CachePath)
	}

	if a.primary == nil {
		if a.cache == nil {
			return errors.New("no store configured")
		}
		a.primary = a.cache
		a.cache = nil
		slog.Warn("no primary store configured; persisting to the sqlite cache only")
	}
	return nil
}

// initSession resumes a recent saved session for this meeting, or
// starts a fresh one.
func (a *App) initSession(ctx context.Context) error {
	meta := session.Meta{
		Title:     a.cfg.Meeting.Title,
		MeetingID: a.cfg.Meeting.ID,
		Organizer: a.cfg.Meeting.Organizer,
		Date:      time.Now(),
	}

	var engineOpts []transcript.EngineOption
	var matcherOpts []transcript.Option
	mc := a.cfg.Matcher
	if mc.TokenSimilarity > 0 {
		matcherOpts = append(matcherOpts, transcript.WithTokenSimilarity(mc.TokenSimilarity))
	}
	if mc.CoreMinLen > 0 {
		matcherOpts = append(matcherOpts, transcript.WithCoreOverlap(mc.CoreMinLen, mc.CoreSlack, mc.CoreFloor))
	}
	if mc.WordMinLen > 0 {
		matcherOpts = append(matcherOpts, transcript.WithWordOverlap(mc.WordMinLen, mc.WordRatio, mc.WordMinShared))
	}
	if len(matcherOpts) > 0 {
		engineOpts = append(engineOpts, transcript.WithMatcher(transcript.NewMatcher(matcherOpts...)))
	}
	if mc.Strictness == config.MatchLoose {
		engineOpts = append(engineOpts, transcript.WithLooseMatching())
	}
	if mc.Window > 0 {
		engineOpts = append(engineOpts, transcript.WithWindow(mc.Window))
	}
	sessionOpts := []session.SessionOption{
		session.WithEngine(transcript.NewEngine(engineOpts...)),
	}

	within := a.cfg.Storage.ResumeWindow.Std()
	if within <= 0 {
		within = 24 * time.Hour
	}

	resumed, err := session.Resume(ctx, a.primary, a.cache, meta, within, sessionOpts...)
	switch {
	case err == nil:
		a.session = resumed
	case errors.Is(err, store.ErrNotFound), errors.Is(err, session.ErrStale):
		a.session = session.New(meta, sessionOpts...)
		slog.Info("starting fresh session", "session_id", a.session.ID())
	default:
		// A broken store must not block capture; snapshots will retry.
		slog.Warn("resume failed, starting fresh session", "error", err)
		a.session = session.New(meta, sessionOpts...)
	}

	a.metrics.ActiveSessions.Add(ctx, 1)
	return nil
}

// initCapture dials the caption relay and builds the poller.
func (a *App) initCapture(ctx context.Context) error {
	if a.source == nil {
		var opts []capture.FeedOption
		if a.cfg.Capture.AuthToken != "" {
			opts = append(opts, capture.WithAuthToken(a.cfg.Capture.AuthToken))
		}
		feed, err := capture.Dial(ctx, a.cfg.Capture.FeedURL, opts...)
		if err != nil {
			return err
		}
		a.source = feed
		slog.Info("caption feed connected", "url", a.cfg.Capture.FeedURL)
	}
	a.closers = append(a.closers, a.source.Close)

	a.poller = capture.NewPoller(capture.PollerConfig{
		Source:            a.source,
		Session:           a.session,
		CaptionInterval:   a.cfg.Capture.CaptionInterval.Std(),
		ChatInterval:      a.cfg.Capture.ChatInterval.Std(),
		AttendeesInterval: a.cfg.Capture.AttendeesInterval.Std(),
		Metrics:           a.metrics,
	})
	return nil
}

// Run starts the capture and persistence loops and blocks until ctx is
// cancelled. Expired saved sessions are swept once at startup.
func (a *App) Run(ctx context.Context) error {
	if n, err := a.snapshotter.Janitor(ctx); err != nil {
		slog.Warn("startup janitor failed", "error", err)
	} else if n > 0 {
		slog.Info("removed expired sessions", "count", n)
	}

	a.poller.Start(ctx)
	a.snapshotter.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	if a.metricsSrv != nil {
		g.Go(func() error {
			slog.Info("metrics endpoint listening", "addr", a.metricsSrv.Addr)
			if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.metricsSrv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return gctx.Err()
	})

	slog.Info("capture running", "session_id", a.session.ID())
	return g.Wait()
}

// Shutdown stops the loops, writes a final snapshot, and closes every
// subsystem. It respects the context deadline for the final snapshot.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.poller.Stop()
		a.snapshotter.Stop()

		if err := a.snapshotter.SnapshotNow(ctx); err != nil {
			slog.Warn("final snapshot failed", "error", err)
			shutdownErr = err
		}

		a.metrics.ActiveSessions.Add(ctx, -1)

		for i, closer := range a.closers {
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "error", err)
			}
		}
		slog.Info("shutdown complete", "session_id", a.session.ID())
	})
	return shutdownErr
}
