package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/doron007/chimescribe/internal/observe"
	"github.com/doron007/chimescribe/internal/session"
)

// Default poll cadences. Captions churn fastest, the roster slowest.
const (
	defaultCaptionInterval   = time.Second
	defaultChatInterval      = 2 * time.Second
	defaultAttendeesInterval = 30 * time.Second
)

// Poller drives a Source on fixed cadences and feeds every observation
// into the session. A failed poll is logged and retried on the next
// tick; the engine never sees capture errors.
//
// All methods are safe for concurrent use.
type Poller struct {
	source  Source
	session *session.Session
	metrics *observe.Metrics

	captionInterval   time.Duration
	chatInterval      time.Duration
	attendeesInterval time.Duration

	mu            sync.Mutex
	lastAttendees string
	done          chan struct{}
	stopOnce      sync.Once
}

// PollerConfig configures a [Poller].
type PollerConfig struct {
	// Source is the feed to poll.
	Source Source

	// Session receives every observation.
	Session *session.Session

	// CaptionInterval is the caption poll cadence. Defaults to 1s.
	CaptionInterval time.Duration

	// ChatInterval is the chat poll cadence. Defaults to 2s.
	ChatInterval time.Duration

	// AttendeesInterval is the roster poll cadence. Defaults to 30s.
	AttendeesInterval time.Duration

	// Metrics receives poll timing and fragment counts. Defaults to
	// [observe.DefaultMetrics] if nil.
	Metrics *observe.Metrics
}

// NewPoller creates a new [Poller] with the given configuration.
func NewPoller(cfg PollerConfig) *Poller {
	p := &Poller{
		source:            cfg.Source,
		session:           cfg.Session,
		metrics:           cfg.Metrics,
		captionInterval:   cfg.CaptionInterval,
		chatInterval:      cfg.ChatInterval,
		attendeesInterval: cfg.AttendeesInterval,
		done:              make(chan struct{}),
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if p.captionInterval <= 0 {
		p.captionInterval = defaultCaptionInterval
	}
	if p.chatInterval <= 0 {
		p.chatInterval = defaultChatInterval
	}
	if p.attendeesInterval <= 0 {
		p.attendeesInterval = defaultAttendeesInterval
	}
	return p
}

// Start begins polling in a background goroutine. The goroutine runs
// until [Poller.Stop] is called or ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	go p.loop(ctx)
}

// Stop halts the poll loop. Safe to call multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
}

// PollOnce runs one poll of all three feeds immediately.
func (p *Poller) PollOnce(ctx context.Context) {
	p.pollCaptions(ctx)
	p.pollChat(ctx)
	p.pollAttendees(ctx)
}

func (p *Poller) loop(ctx context.Context) {
	captions := time.NewTicker(p.captionInterval)
	defer captions.Stop()
	chat := time.NewTicker(p.chatInterval)
	defer chat.Stop()
	attendees := time.NewTicker(p.attendeesInterval)
	defer attendees.Stop()

	// Capture the roster once up front so early snapshots carry it.
	p.pollAttendees(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-captions.C:
			p.pollCaptions(ctx)
		case <-chat.C:
			p.pollChat(ctx)
		case <-attendees.C:
			p.pollAttendees(ctx)
		}
	}
}

func (p *Poller) pollCaptions(ctx context.Context) {
	start := time.Now()
	frags, err := p.source.Captions(ctx)
	if err != nil {
		slog.Debug("caption poll failed, retrying next tick", "error", err)
		return
	}
	for _, f := range frags {
		res := p.session.Reconcile(f.Speaker, f.Text, f.ObservedAt)
		p.metrics.RecordFragment(ctx, res.Action.String())
	}
	p.metrics.RecordPoll(ctx, time.Since(start))
}

func (p *Poller) pollChat(ctx context.Context) {
	msgs, err := p.source.Chat(ctx)
	if err != nil {
		slog.Debug("chat poll failed, retrying next tick", "error", err)
		return
	}
	for _, m := range msgs {
		outcome := "added"
		if !p.session.AddChat(m.Sender, m.Text, m.ObservedAt) {
			outcome = "duplicate"
		}
		p.metrics.RecordChatMessage(ctx, outcome)
	}
}

func (p *Poller) pollAttendees(ctx context.Context) {
	names, err := p.source.Attendees(ctx)
	if err != nil {
		slog.Debug("attendee poll failed, retrying next tick", "error", err)
		return
	}
	formatted := FormatAttendees(names)
	if formatted == "" {
		return
	}

	p.mu.Lock()
	changed := formatted != p.lastAttendees
	if changed {
		p.lastAttendees = formatted
	}
	p.mu.Unlock()

	if changed {
		p.session.SetAttendees(formatted)
		slog.Debug("attendee roster updated", "attendees", formatted)
	}
}
