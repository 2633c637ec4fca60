// Package postgres provides the PostgreSQL-backed primary session
// store.
//
// Usage:
//
//	st, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
//
//	_ = st.Save(ctx, rec)
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doron007/chimescribe/pkg/store"
)

var _ store.Store = (*Store)(nil)

// Store persists session records in a sessions table. All methods are
// safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New establishes a connection pool to the database at dsn, verifies
// connectivity and runs [Migrate].
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Save implements [store.Store]. The read and the upsert run in one
// transaction so concurrent savers cannot interleave between the
// shrink-guard check and the write.
func (s *Store) Save(ctx context.Context, rec store.Record) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres store: begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := loadOne(ctx, tx, `SELECT `+recordColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, rec.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// First save of this session.
	case err != nil:
		return fmt.Errorf("postgres store: check existing: %w", err)
	default:
		rec = store.GuardRecord(*existing, rec)
	}

	const q = `
		INSERT INTO sessions
		    (id, meeting_id, title, organizer, transcript, chat, comments, combined, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
		    meeting_id = EXCLUDED.meeting_id,
		    title      = EXCLUDED.title,
		    organizer  = EXCLUDED.organizer,
		    transcript = EXCLUDED.transcript,
		    chat       = EXCLUDED.chat,
		    comments   = EXCLUDED.comments,
		    combined   = EXCLUDED.combined,
		    created_at = EXCLUDED.created_at,
		    updated_at = EXCLUDED.updated_at`

	if _, err := tx.Exec(ctx, q,
		rec.ID,
		rec.MeetingID,
		rec.Title,
		rec.Organizer,
		rec.Transcript,
		rec.Chat,
		rec.Comments,
		rec.Combined,
		rec.CreatedAt,
		rec.UpdatedAt,
	); err != nil {
		return fmt.Errorf("postgres store: save: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: commit save: %w", err)
	}
	return nil
}

// Load implements [store.Store].
func (s *Store) Load(ctx context.Context, id string) (*store.Record, error) {
	rec, err := loadOne(ctx, s.pool, `SELECT `+recordColumns+` FROM sessions WHERE id = $1`, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("postgres store: load: %w", err)
	}
	return rec, err
}

// Latest implements [store.Store]. Returns (nil, nil) when the store
// is empty.
func (s *Store) Latest(ctx context.Context) (*store.Record, error) {
	rec, err := loadOne(ctx, s.pool, `SELECT `+recordColumns+` FROM sessions ORDER BY updated_at DESC LIMIT 1`)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: latest: %w", err)
	}
	return rec, nil
}

// DeleteOlderThan implements [store.Store].
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres store: delete older than: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close implements [store.Store].
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const recordColumns = "id, meeting_id, title, organizer, transcript, chat, comments, combined, created_at, updated_at"

// querier covers the query surface shared by pools and transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadOne(ctx context.Context, q querier, sql string, args ...any) (*store.Record, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	rec, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (store.Record, error) {
		var r store.Record
		err := row.Scan(
			&r.ID,
			&r.MeetingID,
			&r.Title,
			&r.Organizer,
			&r.Transcript,
			&r.Chat,
			&r.Comments,
			&r.Combined,
			&r.CreatedAt,
			&r.UpdatedAt,
		)
		return r, err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
