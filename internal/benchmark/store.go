package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evalforge/evalforge/internal/metrics"
)

// ErrRunNotFound indicates the requested run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunStore persists evaluation runs in PostgreSQL. Only metric scores
// and reasons are stored; answer transcripts, retrieved context, and
// rank scores live in the in-memory Report alone.
//
// RunStore is safe for concurrent use by multiple goroutines.
type RunStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRunStore creates a RunStore on an existing pool.
func NewRunStore(pool *pgxpool.Pool, logger *slog.Logger) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RunStore{pool: pool, logger: logger}, nil
}

// SaveReport writes the run row and all per-case metric results in one
// transaction.
func (s *RunStore) SaveReport(ctx context.Context, report *Report) error {
	if report == nil {
		return fmt.Errorf("report is required")
	}
	if report.Run.ID == uuid.Nil {
		return fmt.Errorf("report has no run id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Debug("save transaction rollback failed", "run_id", report.Run.ID, "error", rbErr)
			}
		}
	}()

	if _, err := tx.Exec(ctx,
		`INSERT INTO runs (id, name, collection, top_k, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		report.Run.ID, report.Run.Name, report.Run.Collection, report.Run.TopK, report.Run.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting run %s: %w", report.Run.ID, err)
	}

	batch := &pgx.Batch{}
	queued := 0
	for _, c := range report.Cases {
		for _, res := range c.Results {
			batch.Queue(
				`INSERT INTO run_results (run_id, golden_input, metric, score, passed, reason)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				report.Run.ID, c.Input, res.Name, res.Score, res.Passed, res.Reason,
			)
			queued++
		}
	}
	if queued > 0 {
		br := tx.SendBatch(ctx, batch)
		for range queued {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("inserting results for run %s: %w", report.Run.ID, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("closing result batch for run %s: %w", report.Run.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing run %s: %w", report.Run.ID, err)
	}
	committed = true

	s.logger.Info("saved evaluation run", "run_id", report.Run.ID, "results", queued)
	return nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means
// 20.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, collection, top_k, created_at
		 FROM runs
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Name, &r.Collection, &r.TopK, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading run rows: %w", err)
	}
	return runs, nil
}

// GetRun reloads a persisted run as a Report. Cases carry inputs and
// metric results only; summaries are recomputed from the stored scores.
func (s *RunStore) GetRun(ctx context.Context, id uuid.UUID) (*Report, error) {
	var run Run
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, collection, top_k, created_at FROM runs WHERE id = $1`, id,
	).Scan(&run.ID, &run.Name, &run.Collection, &run.TopK, &run.CreatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case err != nil:
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT golden_input, metric, score, passed, reason
		 FROM run_results
		 WHERE run_id = $1
		 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("loading results for run %s: %w", id, err)
	}
	defer rows.Close()

	cases, err := scanCases(rows)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}

	return &Report{Run: run, Cases: cases, Summaries: summarize(cases)}, nil
}

// scanCases regroups result rows into cases. Rows arrive in insertion
// order, so a new case starts whenever the input changes or a metric
// repeats within the current group.
func scanCases(rows pgx.Rows) ([]CaseResult, error) {
	var cases []CaseResult
	for rows.Next() {
		var (
			input string
			res   metrics.Result
		)
		if err := rows.Scan(&input, &res.Name, &res.Score, &res.Passed, &res.Reason); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}

		startNew := len(cases) == 0 ||
			cases[len(cases)-1].Input != input ||
			slices.ContainsFunc(cases[len(cases)-1].Results, func(r metrics.Result) bool { return r.Name == res.Name })
		if startNew {
			cases = append(cases, CaseResult{Input: input})
		}

		last := &cases[len(cases)-1]
		last.Results = append(last.Results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading result rows: %w", err)
	}
	return cases, nil
}
