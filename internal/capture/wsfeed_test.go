package capture

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDialRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	if _, err := Dial(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func newBufferedFeed() *Feed {
	return &Feed{done: make(chan struct{})}
}

func TestDispatchCaption(t *testing.T) {
	t.Parallel()

	f := newBufferedFeed()
	f.dispatch([]byte(`{"type":"caption","speaker":"Smith, Alice","text":"hello everyone","at":"2026-08-29T09:04:05Z"}`))

	frags, err := f.Captions(context.Background())
	if err != nil {
		t.Fatalf("Captions: %v", err)
	}
	if len(frags) != 1 {
		t.Fatalf("fragments = %d, want 1", len(frags))
	}
	got := frags[0]
	if got.Speaker != "Smith, Alice" || got.Text != "hello everyone" {
		t.Errorf("unexpected fragment %+v", got)
	}
	want := time.Date(2026, 8, 29, 9, 4, 5, 0, time.UTC)
	if !got.ObservedAt.Equal(want) {
		t.Errorf("ObservedAt = %v, want %v", got.ObservedAt, want)
	}
}

func TestDispatchCaptionWithoutTimestamp(t *testing.T) {
	t.Parallel()

	f := newBufferedFeed()
	before := time.Now()
	f.dispatch([]byte(`{"type":"caption","speaker":"Bob","text":"no clock on this one"}`))

	frags, _ := f.Captions(context.Background())
	if len(frags) != 1 {
		t.Fatalf("fragments = %d, want 1", len(frags))
	}
	if frags[0].ObservedAt.Before(before) {
		t.Errorf("ObservedAt = %v, want wall clock fallback", frags[0].ObservedAt)
	}
}

func TestDispatchChatAndAttendees(t *testing.T) {
	t.Parallel()

	f := newBufferedFeed()
	f.dispatch([]byte(`{"type":"chat","sender":"Carol","text":"link in thread"}`))
	f.dispatch([]byte(`{"type":"attendees","names":["Jones, Bob","Smith, Alice"]}`))

	msgs, err := f.Chat(context.Background())
	if err != nil || len(msgs) != 1 {
		t.Fatalf("Chat = %v, %v; want one message", msgs, err)
	}
	if msgs[0].Sender != "Carol" || msgs[0].Text != "link in thread" {
		t.Errorf("unexpected message %+v", msgs[0])
	}

	names, err := f.Attendees(context.Background())
	if err != nil || len(names) != 2 {
		t.Fatalf("Attendees = %v, %v; want two names", names, err)
	}
}

func TestDispatchIgnoresMalformed(t *testing.T) {
	t.Parallel()

	f := newBufferedFeed()
	f.dispatch([]byte(`{invalid`))
	f.dispatch([]byte(`{"type":"unknown","text":"x"}`))
	f.dispatch([]byte(`{"type":"caption"}`))

	frags, err := f.Captions(context.Background())
	if err != nil || len(frags) != 0 {
		t.Errorf("Captions = %v, %v; want empty", frags, err)
	}
}

func TestPollDrainsBuffer(t *testing.T) {
	t.Parallel()

	f := newBufferedFeed()
	f.dispatch([]byte(`{"type":"caption","speaker":"Bob","text":"one"}`))
	f.dispatch([]byte(`{"type":"caption","speaker":"Bob","text":"two"}`))

	frags, _ := f.Captions(context.Background())
	if len(frags) != 2 {
		t.Fatalf("first drain = %d, want 2", len(frags))
	}
	frags, err := f.Captions(context.Background())
	if err != nil || len(frags) != 0 {
		t.Errorf("second drain = %v, %v; want empty", frags, err)
	}
}

func TestPollAfterReadFailure(t *testing.T) {
	t.Parallel()

	f := newBufferedFeed()
	f.dispatch([]byte(`{"type":"caption","speaker":"Bob","text":"buffered before drop"}`))
	f.readErr = ErrFeedClosed

	// Buffered observations drain first.
	frags, err := f.Captions(context.Background())
	if err != nil || len(frags) != 1 {
		t.Fatalf("Captions = %v, %v; want buffered fragment", frags, err)
	}

	// Then polls surface the closed feed.
	if _, err := f.Captions(context.Background()); !errors.Is(err, ErrFeedClosed) {
		t.Errorf("err = %v, want ErrFeedClosed", err)
	}
	if _, err := f.Chat(context.Background()); !errors.Is(err, ErrFeedClosed) {
		t.Errorf("chat err = %v, want ErrFeedClosed", err)
	}
}

func TestFormatAttendees(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		names []string
		want  string
	}{
		{"empty", nil, ""},
		{"swaps and sorts", []string{"Smith, Alice", "Jones, Bob"}, "Alice Smith, Bob Jones"},
		{"dedup after swap", []string{"Smith, Alice", "Alice Smith"}, "Alice Smith"},
		{"skips conference rooms", []string{"‹Room 4B›", "Smith, Alice"}, "Alice Smith"},
		{"keeps unswappable names", []string{"Alice"}, "Alice"},
		{"drops blanks", []string{"  ", "Bob"}, "Bob"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := FormatAttendees(tc.names); got != tc.want {
				t.Errorf("FormatAttendees(%v) = %q, want %q", tc.names, got, tc.want)
			}
		})
	}
}
