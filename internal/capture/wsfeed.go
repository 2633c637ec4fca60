package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// ErrFeedClosed is returned by a Feed's poll methods once the
// connection is gone and its buffers are drained.
var ErrFeedClosed = errors.New("capture: feed closed")

// bufferCap bounds each pending-observation buffer; the oldest entries
// are dropped when a slow consumer lets one overflow.
const bufferCap = 1024

// feedEvent is the JSON envelope the caption relay sends for every
// observation.
type feedEvent struct {
	Type    string    `json:"type"`
	Speaker string    `json:"speaker,omitempty"`
	Sender  string    `json:"sender,omitempty"`
	Text    string    `json:"text,omitempty"`
	Names   []string  `json:"names,omitempty"`
	At      time.Time `json:"at,omitempty"`
}

// FeedOption is a functional option for configuring a Feed dial.
type FeedOption func(*feedOptions)

type feedOptions struct {
	header http.Header
}

// WithAuthToken sets a bearer token for the relay handshake.
func WithAuthToken(token string) FeedOption {
	return func(o *feedOptions) {
		o.header.Set("Authorization", "Bearer "+token)
	}
}

// WithHeader adds an HTTP header to the relay handshake.
func WithHeader(key, value string) FeedOption {
	return func(o *feedOptions) {
		o.header.Set(key, value)
	}
}

// Feed is a live WebSocket connection to a caption relay. A background
// read loop buffers incoming observations; the poll methods drain the
// buffers. It implements [Source].
type Feed struct {
	conn *websocket.Conn

	mu        sync.Mutex
	captions  []Fragment
	chat      []ChatMessage
	attendees []string
	readErr   error

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

var _ Source = (*Feed)(nil)

// Dial connects to a caption relay and starts reading observations.
// url must be non-empty.
func Dial(ctx context.Context, url string, opts ...FeedOption) (*Feed, error) {
	if url == "" {
		return nil, errors.New("capture: feed url must not be empty")
	}
	fo := &feedOptions{header: http.Header{}}
	for _, o := range opts {
		o(fo)
	}

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: fo.header,
	})
	if err != nil {
		return nil, fmt.Errorf("capture: dial %s: %w", url, err)
	}

	f := &Feed{
		conn: conn,
		done: make(chan struct{}),
	}
	f.wg.Add(1)
	go f.readLoop(ctx)
	return f, nil
}

// Captions implements [Source].
func (f *Feed) Captions(ctx context.Context) ([]Fragment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.captions
	f.captions = nil
	if len(out) == 0 && f.readErr != nil {
		return nil, fmt.Errorf("capture: captions: %w", f.readErr)
	}
	return out, nil
}

// Chat implements [Source].
func (f *Feed) Chat(ctx context.Context) ([]ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.chat
	f.chat = nil
	if len(out) == 0 && f.readErr != nil {
		return nil, fmt.Errorf("capture: chat: %w", f.readErr)
	}
	return out, nil
}

// Attendees implements [Source]. It returns the most recently
// announced roster; the relay sends the full roster on every change.
func (f *Feed) Attendees(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attendees == nil && f.readErr != nil {
		return nil, fmt.Errorf("capture: attendees: %w", f.readErr)
	}
	return append([]string(nil), f.attendees...), nil
}

// Close terminates the feed cleanly. Safe to call multiple times.
func (f *Feed) Close() error {
	f.once.Do(func() {
		close(f.done)
		f.conn.Close(websocket.StatusNormalClosure, "capture stopped")
		f.wg.Wait()
	})
	return nil
}

// readLoop receives JSON events from the relay and buffers them until
// the next poll.
func (f *Feed) readLoop(ctx context.Context) {
	defer f.wg.Done()

	for {
		select {
		case <-f.done:
			return
		default:
		}

		_, msg, err := f.conn.Read(ctx)
		if err != nil {
			f.mu.Lock()
			f.readErr = fmt.Errorf("%w: %v", ErrFeedClosed, err)
			f.mu.Unlock()
			return
		}
		f.dispatch(msg)
	}
}

// dispatch parses one raw relay message and buffers it. Malformed or
// unknown events are ignored.
func (f *Feed) dispatch(msg []byte) {
	var ev feedEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		return
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch ev.Type {
	case "caption":
		if ev.Speaker == "" && ev.Text == "" {
			return
		}
		f.captions = append(f.captions, Fragment{Speaker: ev.Speaker, Text: ev.Text, ObservedAt: at})
		if len(f.captions) > bufferCap {
			f.captions = f.captions[len(f.captions)-bufferCap:]
		}
	case "chat":
		if ev.Sender == "" && ev.Text == "" {
			return
		}
		f.chat = append(f.chat, ChatMessage{Sender: ev.Sender, Text: ev.Text, ObservedAt: at})
		if len(f.chat) > bufferCap {
			f.chat = f.chat[len(f.chat)-bufferCap:]
		}
	case "attendees":
		f.attendees = append([]string(nil), ev.Names...)
	}
}
