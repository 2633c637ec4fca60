package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT         PRIMARY KEY,
    meeting_id TEXT         NOT NULL DEFAULT '',
    title      TEXT         NOT NULL DEFAULT '',
    organizer  TEXT         NOT NULL DEFAULT '',
    transcript TEXT         NOT NULL DEFAULT '',
    chat       TEXT         NOT NULL DEFAULT '',
    comments   TEXT         NOT NULL DEFAULT '',
    combined   TEXT         NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_meeting_id
    ON sessions (meeting_id);

CREATE INDEX IF NOT EXISTS idx_sessions_updated_at
    ON sessions (updated_at);

CREATE INDEX IF NOT EXISTS idx_sessions_created_at
    ON sessions (created_at);
`

// Migrate ensures the sessions table and its indexes exist. It is
// idempotent and safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlSessions); err != nil {
		return fmt.Errorf("postgres store: apply schema: %w", err)
	}
	return nil
}
