// Package sqlite provides the embedded cache session store. It is used
// as the save target when the primary PostgreSQL store is unreachable,
// so a flaky database never costs captured transcript content.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doron007/chimescribe/pkg/store"
)

var _ store.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    meeting_id TEXT NOT NULL DEFAULT '',
    title      TEXT NOT NULL DEFAULT '',
    organizer  TEXT NOT NULL DEFAULT '',
    transcript TEXT NOT NULL DEFAULT '',
    chat       TEXT NOT NULL DEFAULT '',
    comments   TEXT NOT NULL DEFAULT '',
    combined   TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions (updated_at);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions (created_at);
`

// Store persists session records in a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open initializes or connects to the cache database at path. Use
// ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite store: apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save implements [store.Store].
func (s *Store) Save(ctx context.Context, rec store.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite store: begin save: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM sessions WHERE id = ?`, rec.ID)
	existing, err := scanRecord(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First save of this session.
	case err != nil:
		return fmt.Errorf("sqlite store: check existing: %w", err)
	default:
		rec = store.GuardRecord(*existing, rec)
	}

	const q = `
		INSERT INTO sessions
		    (id, meeting_id, title, organizer, transcript, chat, comments, combined, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		    meeting_id = excluded.meeting_id,
		    title      = excluded.title,
		    organizer  = excluded.organizer,
		    transcript = excluded.transcript,
		    chat       = excluded.chat,
		    comments   = excluded.comments,
		    combined   = excluded.combined,
		    created_at = excluded.created_at,
		    updated_at = excluded.updated_at`

	if _, err := tx.ExecContext(ctx, q,
		rec.ID,
		rec.MeetingID,
		rec.Title,
		rec.Organizer,
		rec.Transcript,
		rec.Chat,
		rec.Comments,
		rec.Combined,
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	); err != nil {
		return fmt.Errorf("sqlite store: save: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite store: commit save: %w", err)
	}
	return nil
}

// Load implements [store.Store].
func (s *Store) Load(ctx context.Context, id string) (*store.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM sessions WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite store: load: %w", err)
	}
	return rec, nil
}

// Latest implements [store.Store].
func (s *Store) Latest(ctx context.Context) (*store.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM sessions ORDER BY updated_at DESC LIMIT 1`)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite store: latest: %w", err)
	}
	return rec, nil
}

// DeleteOlderThan implements [store.Store].
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("sqlite store: delete older than: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite store: rows affected: %w", err)
	}
	return n, nil
}

// Close implements [store.Store].
func (s *Store) Close() error {
	return s.db.Close()
}

const recordColumns = "id, meeting_id, title, organizer, transcript, chat, comments, combined, created_at, updated_at"

// timeLayout is RFC 3339 with a fixed-width nanosecond fraction.
// RFC3339Nano trims trailing zeros, which breaks lexicographic
// ordering within a second ("05.1Z" sorts after "05.15Z"), so the
// fraction is zero padded to keep TEXT comparison chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Timestamps are stored as UTC strings whose string comparison orders
// them chronologically at nanosecond precision.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func scanRecord(row *sql.Row) (*store.Record, error) {
	var (
		r                  store.Record
		createdAt, updated string
	)
	if err := row.Scan(
		&r.ID,
		&r.MeetingID,
		&r.Title,
		&r.Organizer,
		&r.Transcript,
		&r.Chat,
		&r.Comments,
		&r.Combined,
		&createdAt,
		&updated,
	); err != nil {
		return nil, err
	}
	var err error
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &r, nil
}
