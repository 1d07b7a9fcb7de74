package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecorder stores tuning history in a Postgres table
type PostgresRecorder struct {
	db *pgxpool.Pool
}

// NewPostgresRecorder wraps an existing pool
func NewPostgresRecorder(db *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// Connect opens a pool for dsn and ensures the schema exists
func Connect(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	r := NewPostgresRecorder(pool)
	if err := r.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the pool
func (r *PostgresRecorder) Close() {
	r.db.Close()
}

// EnsureSchema creates the history table if needed
func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.db.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS tuning_history (
            cycle_id        TEXT PRIMARY KEY,
            ran_at          TIMESTAMPTZ NOT NULL,
            accepted        BOOLEAN NOT NULL,
            dry_run         BOOLEAN NOT NULL,
            regime          TEXT NOT NULL,
            improvement_pct DOUBLE PRECISION NOT NULL,
            payload         JSONB NOT NULL
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create tuning_history: %w", err)
	}
	_, err = r.db.Exec(ctx, `CREATE INDEX IF NOT EXISTS tuning_history_ran_at_idx ON tuning_history (ran_at DESC)`)
	if err != nil {
		return fmt.Errorf("failed to index tuning_history: %w", err)
	}
	return nil
}

// Record inserts e. Re-recording a cycle ID overwrites it.
func (r *PostgresRecorder) Record(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode history entry: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	const insertSQL = `
        INSERT INTO tuning_history (cycle_id, ran_at, accepted, dry_run, regime, improvement_pct, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (cycle_id) DO UPDATE SET
            ran_at          = EXCLUDED.ran_at,
            accepted        = EXCLUDED.accepted,
            dry_run         = EXCLUDED.dry_run,
            regime          = EXCLUDED.regime,
            improvement_pct = EXCLUDED.improvement_pct,
            payload         = EXCLUDED.payload
    `
	if _, err := r.db.Exec(ctx, insertSQL,
		e.CycleID,
		e.RanAt,
		e.Accepted,
		e.DryRun,
		e.Regime,
		e.ImprovementPct,
		payload,
	); err != nil {
		return fmt.Errorf("failed to insert history entry %s: %w", e.CycleID, err)
	}
	return nil
}

// Recent returns up to n entries, newest first
func (r *PostgresRecorder) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = DefaultCap
	}

	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	rows, err := r.db.Query(ctx, `
        SELECT payload
        FROM tuning_history
        ORDER BY ran_at DESC
        LIMIT $1
    `, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var e Entry
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("failed to decode history entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
