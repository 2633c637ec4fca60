package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doron007/chimescribe/pkg/store"
	"github.com/doron007/chimescribe/pkg/store/postgres"
)

// testDSN returns the test database DSN from the environment, or skips
// the test if CHIMESCRIBE_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("CHIMESCRIBE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHIMESCRIBE_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean sessions
// table and closes it when the test finishes.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS sessions`); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	st, err := postgres.New(ctx, dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testRecord(id string, at time.Time) store.Record {
	return store.Record{
		ID:         id,
		MeetingID:  "1234567890",
		Title:      "Weekly Sync",
		Organizer:  "Jane Doe",
		Transcript: "Meeting Title: Weekly Sync\nJane Doe [10:00:00 AM]: hello",
		Chat:       "[10:00:05 AM] - Bob Smith: hi all",
		Comments:   "",
		Combined:   "Meeting Title: Weekly Sync\nJane Doe [10:00:00 AM]: hello\n[10:00:05 AM] - Bob Smith: hi all",
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func TestPostgresSaveAndLoad(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Microsecond)

	rec := testRecord("[08-29] - Weekly Sync - MoM - 1234567890", at)
	if err := st.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := st.Load(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Transcript != rec.Transcript || got.MeetingID != rec.MeetingID {
		t.Errorf("loaded record differs: %+v", got)
	}
}

func TestPostgresLoadMissing(t *testing.T) {
	st := newTestStore(t)
	_, err := st.Load(context.Background(), "no such session")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err=%v, want ErrNotFound", err)
	}
}

func TestPostgresSavePreservesLongerContent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Microsecond)

	rec := testRecord("guarded", at)
	if err := st.Save(ctx, rec); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	// A regressed snapshot with fewer transcript lines must not
	// overwrite the longer saved buffer.
	shrunk := rec
	shrunk.Transcript = "Jane Doe [10:00:00 AM]: hello"
	shrunk.UpdatedAt = at.Add(time.Minute)
	if err := st.Save(ctx, shrunk); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := st.Load(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Transcript != rec.Transcript {
		t.Errorf("Transcript=%q, want original longer buffer", got.Transcript)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt=%v, want preserved %v", got.CreatedAt, at)
	}
	if !got.UpdatedAt.Equal(shrunk.UpdatedAt) {
		t.Errorf("UpdatedAt=%v, want refreshed %v", got.UpdatedAt, shrunk.UpdatedAt)
	}
}

func TestPostgresLatest(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Microsecond)

	if rec, err := st.Latest(ctx); err != nil || rec != nil {
		t.Fatalf("Latest on empty store = %v, %v; want nil, nil", rec, err)
	}

	older := testRecord("older", at.Add(-time.Hour))
	newer := testRecord("newer", at)
	if err := st.Save(ctx, older); err != nil {
		t.Fatalf("Save older: %v", err)
	}
	if err := st.Save(ctx, newer); err != nil {
		t.Fatalf("Save newer: %v", err)
	}

	got, err := st.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got == nil || got.ID != "newer" {
		t.Errorf("Latest=%+v, want record %q", got, "newer")
	}
}

func TestPostgresDeleteOlderThan(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Microsecond)

	stale := testRecord("stale", at.Add(-48*time.Hour))
	fresh := testRecord("fresh", at)
	if err := st.Save(ctx, stale); err != nil {
		t.Fatalf("Save stale: %v", err)
	}
	if err := st.Save(ctx, fresh); err != nil {
		t.Fatalf("Save fresh: %v", err)
	}

	n, err := st.DeleteOlderThan(ctx, at.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d records, want 1", n)
	}
	if _, err := st.Load(ctx, "stale"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("stale record still present, err=%v", err)
	}
	if _, err := st.Load(ctx, "fresh"); err != nil {
		t.Errorf("fresh record lost: %v", err)
	}
}
