package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/doron007/chimescribe/internal/transcript"
	"github.com/doron007/chimescribe/pkg/store"
)

// ErrStale is returned by Resume when a saved session exists but was
// last updated too long ago to continue.
var ErrStale = errors.New("session: saved session too old to resume")

// commentSender marks the rendered form of an injected comment line.
const commentSender = "[Injected Comment]"

// tag, dash, sender (or the injected comment marker), then the text.
var chatPattern = regexp.MustCompile(`^\[(\d{1,2}:\d{2}(?::\d{2})? [AP]M)\] - (.*?): (.*)$`)

// Resume loads the saved record for the given meeting and rebuilds a
// live session from it, so a restarted capture continues appending to
// the same transcript instead of duplicating it. Restored caption
// lines re-register their fingerprints, which lets the engine discard
// fragments that were already persisted.
//
// The primary store is tried first, then the cache when the primary
// fails or has no record. [store.ErrNotFound] is returned when neither
// holds one, [ErrStale] when the record is older than within.
func Resume(ctx context.Context, primary, cache store.Store, meta Meta, within time.Duration, opts ...SessionOption) (*Session, error) {
	id := ID(meta.Date, meta.Title, meta.MeetingID)
	rec, err := loadRecord(ctx, primary, cache, id)
	if err != nil {
		return nil, err
	}
	if within > 0 && time.Since(rec.UpdatedAt) > within {
		return nil, fmt.Errorf("session: resume %s: %w", id, ErrStale)
	}

	s := New(meta, opts...)
	s.restore(rec)
	slog.Info("resumed saved session",
		"session_id", id,
		"updated_at", rec.UpdatedAt,
		"lines", s.engine.Len(),
	)
	return s, nil
}

// loadRecord fetches the record from the primary store, falling back
// to the cache on any primary failure.
func loadRecord(ctx context.Context, primary, cache store.Store, id string) (*store.Record, error) {
	rec, err := primary.Load(ctx, id)
	if err == nil {
		return rec, nil
	}
	if cache != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("primary store unavailable, loading saved session from cache",
				"session_id", id,
				"error", err,
			)
		}
		if rec, cerr := cache.Load(ctx, id); cerr == nil {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("session: load %s: %w", id, err)
}

// restore replays a persisted record into the session's buffers.
func (s *Session) restore(rec *store.Record) {
	ref := s.meta.Date

	for _, raw := range strings.Split(rec.Transcript, "\n") {
		raw = strings.TrimSpace(raw)
		switch {
		case raw == "":
		case strings.HasPrefix(raw, titlePrefix), strings.HasPrefix(raw, datePrefix):
			// New already seeded the header lines.
		case strings.HasPrefix(raw, attendeesPrefix):
			s.SetAttendees(strings.TrimPrefix(raw, attendeesPrefix))
		case raw == systemMessage:
			s.mu.Lock()
			first := !s.systemAdded
			s.systemAdded = true
			s.mu.Unlock()
			if first {
				s.engine.Restore(transcript.Line{Kind: transcript.KindSystem, Text: systemMessage})
			}
		default:
			if line, ok := transcript.ParseRenderedCaption(raw, ref); ok {
				s.engine.Restore(line)
			}
		}
	}

	for _, raw := range strings.Split(rec.Chat, "\n") {
		if line, ok := parseRenderedMessage(raw, ref); ok && line.Kind == transcript.KindChat {
			s.AddChat(line.Speaker, line.Text, line.Tag.Time(ref))
		}
	}

	for _, raw := range strings.Split(rec.Comments, "\n") {
		if line, ok := parseRenderedMessage(raw, ref); ok && line.Kind == transcript.KindComment {
			s.mu.Lock()
			s.comments = append(s.comments, line)
			s.mu.Unlock()
		}
	}
}

// parseRenderedMessage reconstructs a chat or comment line from its
// persisted form, using ref for the tag's date.
func parseRenderedMessage(rendered string, ref time.Time) (line transcript.Line, ok bool) {
	m := chatPattern.FindStringSubmatch(strings.TrimSpace(rendered))
	if m == nil {
		return transcript.Line{}, false
	}
	tag, _ := transcript.ParseTag("["+m[1]+"]", ref)
	if m[2] == commentSender {
		return transcript.Line{
			Kind: transcript.KindComment,
			Text: m[3],
			Tag:  tag,
		}, true
	}
	return transcript.Line{
		Kind:    transcript.KindChat,
		Speaker: m[2],
		Text:    m[3],
		Tag:     tag,
	}, true
}
