package session

import (
	"strings"
	"sync"
	"time"

	"github.com/doron007/chimescribe/internal/timeline"
	"github.com/doron007/chimescribe/internal/transcript"
	"github.com/doron007/chimescribe/pkg/store"
)

const (
	titlePrefix     = "Meeting Title: "
	datePrefix      = "Meeting Date: "
	attendeesPrefix = "Attendees: "

	// systemMessage is recorded once per session when the caption feed
	// announces machine generated captions.
	systemMessage = "Amazon Chime: Machine generated captions are generated by Amazon Transcribe."

	// chatSeenCap bounds the chat deduplication set; once exceeded it
	// is trimmed to the newest chatSeenKeep entries.
	chatSeenCap  = 100
	chatSeenKeep = 50
)

// Meta identifies the meeting a session belongs to.
type Meta struct {
	// Title is the raw meeting title.
	Title string

	// MeetingID is the meeting identifier as announced by the roster,
	// possibly with whitespace.
	MeetingID string

	// Organizer is the meeting organizer, when known.
	Organizer string

	// Date is the meeting day, used in the session identifier and the
	// header lines.
	Date time.Time
}

// Session accumulates the three content streams of one meeting and
// renders them into persisted buffers. All methods are safe for
// concurrent use.
type Session struct {
	meta   Meta
	id     string
	engine *transcript.Engine
	merger *timeline.Merger

	mu          sync.Mutex
	chat        []transcript.Line
	comments    []transcript.Line
	chatSeen    map[string]struct{}
	chatOrder   []string
	attendees   string
	systemAdded bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithEngine replaces the default reconciliation engine.
func WithEngine(e *transcript.Engine) SessionOption {
	return func(s *Session) { s.engine = e }
}

// WithMerger replaces the default chronological merger.
func WithMerger(m *timeline.Merger) SessionOption {
	return func(s *Session) { s.merger = m }
}

// New creates a Session for the given meeting and seeds the transcript
// with its header lines.
func New(meta Meta, opts ...SessionOption) *Session {
	s := &Session{
		meta:     meta,
		id:       ID(meta.Date, meta.Title, meta.MeetingID),
		engine:   transcript.NewEngine(),
		merger:   timeline.NewMerger(),
		chatSeen: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine.Restore(transcript.Line{
		Kind: transcript.KindHeader,
		Text: titlePrefix + "[" + meta.Date.Format("01-02") + "] - " + meta.Title,
	})
	s.engine.Restore(transcript.Line{
		Kind: transcript.KindHeader,
		Text: datePrefix + meta.Date.Format("01/02"),
	})
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Meta returns the meeting metadata.
func (s *Session) Meta() Meta { return s.meta }

// Reconcile feeds one caption fragment into the transcript. The
// machine-caption announcement is recorded once as a system line and
// never reconciled.
func (s *Session) Reconcile(speaker, text string, at time.Time) transcript.Result {
	if speaker == "Amazon Chime" && strings.Contains(text, "Machine generated captions") {
		s.mu.Lock()
		first := !s.systemAdded
		s.systemAdded = true
		s.mu.Unlock()
		if first {
			s.engine.Restore(transcript.Line{Kind: transcript.KindSystem, Text: systemMessage})
		}
		return transcript.Result{Action: transcript.ActionDiscarded}
	}
	return s.engine.Reconcile(speaker, text, at)
}

// AddChat records one chat message unless the same sender already sent
// the same content. Reports whether the message was added.
func (s *Session) AddChat(sender, text string, at time.Time) bool {
	sender = strings.TrimSpace(sender)
	text = strings.TrimSpace(text)
	if sender == "" || text == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sender + ":" + text
	if _, dup := s.chatSeen[key]; dup {
		return false
	}
	s.chatSeen[key] = struct{}{}
	s.chatOrder = append(s.chatOrder, key)
	if len(s.chatOrder) > chatSeenCap {
		cut := len(s.chatOrder) - chatSeenKeep
		for _, old := range s.chatOrder[:cut] {
			delete(s.chatSeen, old)
		}
		s.chatOrder = append([]string(nil), s.chatOrder[cut:]...)
	}

	s.chat = append(s.chat, transcript.Line{
		Kind:    transcript.KindChat,
		Speaker: sender,
		Text:    text,
		Tag:     transcript.NewTag(at),
	})
	return true
}

// AddComment records a manually injected note and returns its rendered
// form.
func (s *Session) AddComment(text string, at time.Time) string {
	line := transcript.Line{
		Kind: transcript.KindComment,
		Text: strings.TrimSpace(text),
		Tag:  transcript.NewTag(at),
	}
	s.mu.Lock()
	s.comments = append(s.comments, line)
	s.mu.Unlock()
	return line.Rendered()
}

// SetAttendees updates the attendee roster line. The roster is volatile
// during a meeting, so it lives outside the transcript and is inserted
// after the title at render time.
func (s *Session) SetAttendees(list string) {
	s.mu.Lock()
	s.attendees = strings.TrimSpace(list)
	s.mu.Unlock()
}

// TranscriptContent renders the transcript buffer, with the attendee
// line inserted after the title header when known.
func (s *Session) TranscriptContent() string {
	lines := s.engine.Lines()
	if len(lines) == 0 {
		return ""
	}
	return timeline.Render(s.withAttendees(lines))
}

// ChatContent renders the chat buffer.
func (s *Session) ChatContent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return timeline.Render(s.chat)
}

// CommentsContent renders the comment buffer.
func (s *Session) CommentsContent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return timeline.Render(s.comments)
}

// CombinedContent merges all three streams chronologically, headers
// first. When scrub is true, near-duplicate caption lines that
// survived reconciliation are removed.
func (s *Session) CombinedContent(now time.Time, scrub bool) string {
	transcriptLines := s.withAttendees(s.engine.Lines())

	s.mu.Lock()
	chat := append([]transcript.Line(nil), s.chat...)
	comments := append([]transcript.Line(nil), s.comments...)
	s.mu.Unlock()

	merged := s.merger.Merge(now,
		timeline.Stream{Label: "transcript", Lines: transcriptLines},
		timeline.Stream{Label: "chat", Lines: chat},
		timeline.Stream{Label: "comments", Lines: comments},
	)
	if scrub {
		merged = s.merger.Scrub(merged)
	}
	return timeline.Render(merged)
}

// Snapshot assembles the persisted record of this session.
func (s *Session) Snapshot(now time.Time) store.Record {
	return store.Record{
		ID:         s.id,
		MeetingID:  strings.Join(strings.Fields(s.meta.MeetingID), ""),
		Title:      s.meta.Title,
		Organizer:  s.meta.Organizer,
		Transcript: s.TranscriptContent(),
		Chat:       s.ChatContent(),
		Comments:   s.CommentsContent(),
		Combined:   s.CombinedContent(now, true),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// withAttendees injects the attendee header line after the title line.
func (s *Session) withAttendees(lines []transcript.Line) []transcript.Line {
	s.mu.Lock()
	attendees := s.attendees
	s.mu.Unlock()
	if attendees == "" {
		return lines
	}
	out := make([]transcript.Line, 0, len(lines)+1)
	for _, l := range lines {
		out = append(out, l)
		if strings.HasPrefix(l.Text, titlePrefix) && l.Kind == transcript.KindHeader {
			out = append(out, transcript.Line{Kind: transcript.KindHeader, Text: attendeesPrefix + attendees})
			attendees = ""
		}
	}
	return out
}
