package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/doron007/chimescribe/internal/session"
)

// fakeSource is a scripted Source for poller tests.
type fakeSource struct {
	mu        sync.Mutex
	captions  []Fragment
	chat      []ChatMessage
	attendees []string
	err       error
	closed    bool
}

func (s *fakeSource) Captions(ctx context.Context) ([]Fragment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := s.captions
	s.captions = nil
	return out, nil
}

func (s *fakeSource) Chat(ctx context.Context) ([]ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := s.chat
	s.chat = nil
	return out, nil
}

func (s *fakeSource) Attendees(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]string(nil), s.attendees...), nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) push(frags ...Fragment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captions = append(s.captions, frags...)
}

func newPollerTestSession() *session.Session {
	return session.New(session.Meta{
		Title:     "Weekly Sync",
		MeetingID: "1234567890",
		Date:      time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
	})
}

func TestPollOnceFeedsSession(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 8, 29, 9, 1, 0, 0, time.UTC)
	src := &fakeSource{
		captions: []Fragment{
			{Speaker: "Smith, Alice", Text: "good morning all", ObservedAt: at},
		},
		chat: []ChatMessage{
			{Sender: "Bob", Text: "agenda in thread", ObservedAt: at},
		},
		attendees: []string{"Smith, Alice", "Bob"},
	}
	sess := newPollerTestSession()
	p := NewPoller(PollerConfig{Source: src, Session: sess})

	p.PollOnce(context.Background())

	transcript := sess.TranscriptContent()
	if !strings.Contains(transcript, "Alice Smith [9:01:00 AM]: good morning all") {
		t.Errorf("caption missing:\n%s", transcript)
	}
	if !strings.Contains(transcript, "Attendees: Alice Smith, Bob") {
		t.Errorf("attendees missing:\n%s", transcript)
	}
	if !strings.Contains(sess.ChatContent(), "Bob: agenda in thread") {
		t.Errorf("chat missing:\n%s", sess.ChatContent())
	}
}

func TestPollOnceToleratesSourceErrors(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: errors.New("feed hiccup")}
	sess := newPollerTestSession()
	p := NewPoller(PollerConfig{Source: src, Session: sess})

	// Errors are retried on the next tick; the session is untouched.
	p.PollOnce(context.Background())
	if strings.Contains(sess.TranscriptContent(), "Attendees:") {
		t.Error("session mutated despite source errors")
	}
}

func TestPollerKeepsAttendeesWhenRosterEmpties(t *testing.T) {
	t.Parallel()

	src := &fakeSource{attendees: []string{"Smith, Alice"}}
	sess := newPollerTestSession()
	p := NewPoller(PollerConfig{Source: src, Session: sess})

	p.PollOnce(context.Background())
	src.mu.Lock()
	src.attendees = nil
	src.mu.Unlock()
	p.PollOnce(context.Background())

	if !strings.Contains(sess.TranscriptContent(), "Attendees: Alice Smith") {
		t.Errorf("attendee line lost:\n%s", sess.TranscriptContent())
	}
}

func TestPollerLoop(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	sess := newPollerTestSession()
	p := NewPoller(PollerConfig{
		Source:          src,
		Session:         sess,
		CaptionInterval: 5 * time.Millisecond,
		ChatInterval:    5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	src.push(Fragment{Speaker: "Bob", Text: "ticker driven caption", ObservedAt: time.Now()})

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(sess.TranscriptContent(), "ticker driven caption") {
		if time.Now().After(deadline) {
			t.Fatal("caption not reconciled within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
