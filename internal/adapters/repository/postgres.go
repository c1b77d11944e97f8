package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/matchflow/internal/domain/types"
	"github.com/okian/matchflow/pkg/metrics"
)

const createRunsTable = `CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	request_id  TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	started_at  TIMESTAMPTZ,
	finished_at TIMESTAMPTZ,
	result      JSONB
)`

const insertRun = `INSERT INTO runs (id, request_id, kind, status, error, created_at, started_at, finished_at, result) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
const updateRun = `UPDATE runs SET status=$2, error=$3, started_at=$4, finished_at=$5, result=$6 WHERE id=$1`
const selectRun = `SELECT id, request_id, kind, status, error, created_at, started_at, finished_at, result FROM runs WHERE id=$1`
const listRuns = `SELECT id, request_id, kind, status, error, created_at, started_at, finished_at, result FROM runs ORDER BY created_at DESC, id DESC LIMIT $1`
const countRuns = `SELECT count(*) FROM runs`

// uniqueViolation is the SQLSTATE of a duplicate primary key.
const uniqueViolation = "23505"

// PostgresStore keeps runs in a PostgreSQL table, results as JSONB.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and makes sure the runs table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect run store: %w", err)
	}
	if _, err := pool.Exec(ctx, createRunsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &PostgresStore{Pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.Pool.Close()
	return nil
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, run types.Run) error {
	_, err := s.Pool.Exec(ctx, insertRun,
		run.ID, run.RequestID, string(run.Kind), string(run.Status), run.Error,
		run.CreatedAt, run.StartedAt, run.FinishedAt, jsonb(run.Result))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		metrics.RecordErrorByComponent("repository", "exists")
		return fmt.Errorf("%w: %s", ErrExists, run.ID)
	}
	if err != nil {
		metrics.RecordErrorByComponent("repository", "query")
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// Update implements Store.
func (s *PostgresStore) Update(ctx context.Context, run types.Run) error {
	tag, err := s.Pool.Exec(ctx, updateRun,
		run.ID, string(run.Status), run.Error, run.StartedAt, run.FinishedAt, jsonb(run.Result))
	if err != nil {
		metrics.RecordErrorByComponent("repository", "query")
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if tag.RowsAffected() == 0 {
		metrics.RecordErrorByComponent("repository", "not_found")
		return fmt.Errorf("%w: %s", ErrNotFound, run.ID)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (types.Run, error) {
	run, err := scanRun(s.Pool.QueryRow(ctx, selectRun, id))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		metrics.RecordErrorByComponent("repository", "query")
		return types.Run{}, fmt.Errorf("select run %s: %w", id, err)
	}
	return run, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]types.Run, error) {
	if limit <= 0 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	rows, err := s.Pool.Query(ctx, listRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Count implements Store. Query failures count as zero.
func (s *PostgresStore) Count(ctx context.Context) int {
	var n int
	if err := s.Pool.QueryRow(ctx, countRuns).Scan(&n); err != nil {
		metrics.RecordErrorByComponent("repository", "query")
		return 0
	}
	return n
}

func scanRun(row pgx.Row) (types.Run, error) {
	var (
		run          types.Run
		kind, status string
		started      *time.Time
		finished     *time.Time
		result       []byte
	)
	if err := row.Scan(&run.ID, &run.RequestID, &kind, &status, &run.Error,
		&run.CreatedAt, &started, &finished, &result); err != nil {
		return types.Run{}, err
	}
	run.Kind = types.RunKind(kind)
	run.Status = types.RunStatus(status)
	run.StartedAt, run.FinishedAt = started, finished
	if len(result) > 0 {
		run.Result = result
	}
	return run, nil
}

// jsonb maps an empty result to SQL NULL.
func jsonb(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
