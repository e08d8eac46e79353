package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beachwatch/beachwatch/internal/contract"
)

const schema = `
	CREATE TABLE IF NOT EXISTS contract_runs (
		run_id       UUID PRIMARY KEY,
		started_at   TIMESTAMPTZ NOT NULL,
		finished_at  TIMESTAMPTZ NOT NULL,
		passed       BOOLEAN NOT NULL,
		failed_count INTEGER NOT NULL,
		results      JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS contract_runs_started_at_idx ON contract_runs (started_at DESC);
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL run repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the contract_runs table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create contract_runs: %w", err)
	}
	return nil
}

// Save inserts or replaces a run.
func (r *PostgresRepository) Save(ctx context.Context, report *contract.Report) error {
	results, err := json.Marshal(report.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	query := `
		INSERT INTO contract_runs (run_id, started_at, finished_at, passed, failed_count, results)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			passed = EXCLUDED.passed,
			failed_count = EXCLUDED.failed_count,
			results = EXCLUDED.results
	`

	_, err = r.pool.Exec(ctx, query,
		report.RunID.String(),
		report.StartedAt,
		report.FinishedAt,
		report.Passed(),
		report.FailedCount(),
		results,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", report.RunID, err)
	}
	return nil
}

// Get returns the run with the given id.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*contract.Report, error) {
	query := `
		SELECT run_id::text, started_at, finished_at, results
		FROM contract_runs
		WHERE run_id = $1
	`

	report, err := scanReport(r.pool.QueryRow(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return report, nil
}

// Latest returns the most recently started run.
func (r *PostgresRepository) Latest(ctx context.Context) (*contract.Report, error) {
	query := `
		SELECT run_id::text, started_at, finished_at, results
		FROM contract_runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT 1
	`

	report, err := scanReport(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return report, nil
}

// List returns up to limit runs, most recent first.
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]*contract.Report, error) {
	query := `
		SELECT run_id::text, started_at, finished_at, results
		FROM contract_runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]*contract.Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reports, nil
}

func scanReport(row pgx.Row) (*contract.Report, error) {
	var (
		report  contract.Report
		runID   string
		results []byte
	)

	if err := row.Scan(&runID, &report.StartedAt, &report.FinishedAt, &results); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	report.RunID = id

	if err := json.Unmarshal(results, &report.Results); err != nil {
		return nil, fmt.Errorf("decode results of run %s: %w", runID, err)
	}
	return &report, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
