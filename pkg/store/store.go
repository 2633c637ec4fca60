// Package store defines persistence for meeting sessions.
//
// A session is saved as a single [Record] keyed by its session ID. Two
// backends implement [Store]: a PostgreSQL store used as the primary,
// and an embedded SQLite store used as a local cache that takes over
// when the primary is unreachable.
//
// Every implementation must be safe for concurrent use.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by Load when no record exists for the ID.
var ErrNotFound = errors.New("store: session not found")

// Record is a persisted snapshot of one meeting session. The four
// content fields hold newline-joined rendered lines.
type Record struct {
	// ID is the session identifier, unique per meeting and day.
	ID string

	// MeetingID is the numeric meeting identifier with whitespace
	// removed. May be empty when meeting details never resolved.
	MeetingID string

	// Title is the raw meeting title before filename sanitization.
	Title string

	// Organizer is the meeting organizer, when known.
	Organizer string

	// Transcript, Chat and Comments are the per-stream buffers.
	Transcript string
	Chat       string
	Comments   string

	// Combined is the chronologically merged document.
	Combined string

	// CreatedAt is when the session was first saved. Subsequent saves
	// must preserve it.
	CreatedAt time.Time

	// UpdatedAt is when the session was last saved.
	UpdatedAt time.Time
}

// Empty reports whether the record carries no content at all.
func (r Record) Empty() bool {
	return r.Transcript == "" && r.Chat == "" && r.Comments == ""
}

// Store persists session records.
type Store interface {
	// Save upserts a record. When a record with the same ID exists,
	// the original CreatedAt is preserved and each content field only
	// shrinks if the existing one was empty; see [GuardContent].
	Save(ctx context.Context, rec Record) error

	// Load retrieves a record by session ID. Returns [ErrNotFound]
	// when it does not exist.
	Load(ctx context.Context, id string) (*Record, error)

	// Latest returns the most recently updated record, or nil when the
	// store is empty. Used to resume an interrupted session.
	Latest(ctx context.Context) (*Record, error)

	// DeleteOlderThan removes records created before cutoff and
	// reports how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases the underlying connections.
	Close() error
}

// GuardContent applies the shrink guard to one content field: the
// incoming value replaces the existing one unless it has fewer lines
// than a non-empty existing value. Captures can transiently regress
// (a feed reconnect, a partial snapshot); a shorter buffer must never
// overwrite a longer saved one.
func GuardContent(existing, incoming string) string {
	if existing == "" || incoming == "" {
		if incoming == "" {
			return existing
		}
		return incoming
	}
	if countLines(incoming) < countLines(existing) {
		return existing
	}
	return incoming
}

// GuardRecord merges an incoming record over an existing one,
// preserving CreatedAt and applying [GuardContent] per content field.
func GuardRecord(existing, incoming Record) Record {
	out := incoming
	out.CreatedAt = existing.CreatedAt
	out.Transcript = GuardContent(existing.Transcript, incoming.Transcript)
	out.Chat = GuardContent(existing.Chat, incoming.Chat)
	out.Comments = GuardContent(existing.Comments, incoming.Comments)
	out.Combined = GuardContent(existing.Combined, incoming.Combined)
	return out
}

func countLines(s string) int {
	return strings.Count(s, "\n") + 1
}
