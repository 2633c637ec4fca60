// Package observe provides application-wide observability primitives
// for chimescribe: OpenTelemetry metrics with a Prometheus exporter
// bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A
// package-level default [Metrics] instance ([DefaultMetrics]) is
// provided for convenience; tests should use [NewMetrics] with a
// custom [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all chimescribe
// metrics.
const meterName = "github.com/doron007/chimescribe"

// Metrics holds all OpenTelemetry metric instruments for the
// application. All fields are safe for concurrent use — the underlying
// OTel types handle their own synchronisation.
type Metrics struct {
	// FragmentsProcessed counts caption fragments by outcome. Use with
	// attribute: attribute.String("action", ...).
	FragmentsProcessed metric.Int64Counter

	// ChatMessages counts chat messages by outcome ("added" or
	// "duplicate").
	ChatMessages metric.Int64Counter

	// PollDuration tracks the latency of one capture poll.
	PollDuration metric.Float64Histogram

	// SnapshotDuration tracks the latency of persisting a session
	// snapshot.
	SnapshotDuration metric.Float64Histogram

	// StoreErrors counts failed store operations. Use with attributes:
	//   attribute.String("store", ...), attribute.String("op", ...)
	StoreErrors metric.Int64Counter

	// CacheFallbacks counts snapshots diverted to the cache store
	// after a primary store failure.
	CacheFallbacks metric.Int64Counter

	// TranscriptLines tracks the current transcript length of the
	// active session.
	TranscriptLines metric.Int64UpDownCounter

	// ActiveSessions tracks the number of live capture sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds)
// sized for capture polls and database writes.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the
// given [metric.MeterProvider]. Returns an error if any instrument
// creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FragmentsProcessed, err = m.Int64Counter("chimescribe.fragments.processed",
		metric.WithDescription("Total caption fragments by reconciliation outcome."),
	); err != nil {
		return nil, err
	}
	if met.ChatMessages, err = m.Int64Counter("chimescribe.chat.messages",
		metric.WithDescription("Total chat messages by outcome."),
	); err != nil {
		return nil, err
	}
	if met.PollDuration, err = m.Float64Histogram("chimescribe.poll.duration",
		metric.WithDescription("Latency of one capture poll."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SnapshotDuration, err = m.Float64Histogram("chimescribe.snapshot.duration",
		metric.WithDescription("Latency of persisting a session snapshot."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StoreErrors, err = m.Int64Counter("chimescribe.store.errors",
		metric.WithDescription("Total failed store operations by store and operation."),
	); err != nil {
		return nil, err
	}
	if met.CacheFallbacks, err = m.Int64Counter("chimescribe.store.cache_fallbacks",
		metric.WithDescription("Total snapshots diverted to the cache store."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptLines, err = m.Int64UpDownCounter("chimescribe.transcript.lines",
		metric.WithDescription("Current transcript length of the active session."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("chimescribe.active_sessions",
		metric.WithDescription("Number of live capture sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics
// instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance,
// creating it on first call using [otel.GetMeterProvider]. Subsequent
// calls return the same pointer. Panics if instrument creation fails
// (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordFragment records one reconciled caption fragment with its
// outcome.
func (m *Metrics) RecordFragment(ctx context.Context, action string) {
	m.FragmentsProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("action", action)),
	)
}

// RecordChatMessage records one observed chat message with its
// outcome.
func (m *Metrics) RecordChatMessage(ctx context.Context, outcome string) {
	m.ChatMessages.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordStoreError records a failed store operation.
func (m *Metrics) RecordStoreError(ctx context.Context, storeName, op string) {
	m.StoreErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("store", storeName),
			attribute.String("op", op),
		),
	)
}

// RecordCacheFallback records one snapshot diverted to the cache
// store.
func (m *Metrics) RecordCacheFallback(ctx context.Context) {
	m.CacheFallbacks.Add(ctx, 1)
}

// RecordSnapshot records the latency of one snapshot save.
func (m *Metrics) RecordSnapshot(ctx context.Context, d time.Duration) {
	m.SnapshotDuration.Record(ctx, d.Seconds())
}

// RecordPoll records the latency of one capture poll.
func (m *Metrics) RecordPoll(ctx context.Context, d time.Duration) {
	m.PollDuration.Record(ctx, d.Seconds())
}
