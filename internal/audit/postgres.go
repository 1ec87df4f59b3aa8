package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink writes KillEvents to a Postgres table via pgx. It is
// configured from OOMKILLD_AUDIT_DSN; absent that, the daemon runs with
// a MemorySink instead.
type PostgresSink struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS oomkilld_kill_events (
	id UUID PRIMARY KEY,
	pid INTEGER NOT NULL,
	name TEXT NOT NULL,
	vm_rss_bytes BIGINT NOT NULL,
	score DOUBLE PRECISION NOT NULL,
	killed_at TIMESTAMPTZ NOT NULL
)`

// NewPostgresSink connects to dsn and ensures the audit table exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit: ensure table: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// Record implements Sink.
func (s *PostgresSink) Record(ctx context.Context, event KillEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO oomkilld_kill_events (id, pid, name, vm_rss_bytes, score, killed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.PID.Int(), event.Name, event.VMRSSBytes, event.Score, event.KilledAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert kill event: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}
