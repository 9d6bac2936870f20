package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	duckdbdriver "github.com/duckdb/duckdb-go/v2"

	"github.com/foundationallm/foundationallm-sub000/internal/harness"
	"github.com/foundationallm/foundationallm-sub000/internal/history"
)

// Store is the analytical history database of runs and optimizer iterations.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a DuckDB database and applies the schema. An
// empty path opens an in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying connection pool for ad-hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// IngestRun stores a run and its case results. Re-ingesting a run id
// replaces the earlier copy.
func (s *Store) IngestRun(ctx context.Context, results harness.Results) error {
	if s == nil || s.db == nil {
		return errors.New("duckdb: store is nil")
	}
	if results.RunID == "" {
		return errors.New("duckdb: run id is required")
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if err := deleteRun(ctx, conn, results.RunID); err != nil {
		return err
	}
	summary := results.Summary
	if _, err := conn.ExecContext(ctx,
		`INSERT INTO runs (
		  run_id, suite, agent, validation_mode, started_at, finished_at,
		  total, passed, failed, errored, skipped, pass_rate, avg_latency_seconds, tokens_total
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		results.RunID,
		results.Suite,
		nullableString(results.Agent),
		nullableString(string(results.Mode)),
		results.StartedAt,
		results.FinishedAt,
		summary.Total,
		summary.Passed,
		summary.Failed,
		summary.Errored,
		summary.Skipped,
		summary.PassRate,
		summary.AvgLatencySeconds,
		summary.TokensTotal,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if len(results.Cases) == 0 {
		return nil
	}
	if err := appendCaseResults(conn, results); err != nil {
		_ = deleteRun(ctx, conn, results.RunID)
		return err
	}
	return nil
}

func deleteRun(ctx context.Context, conn *sql.Conn, runID string) error {
	if _, err := conn.ExecContext(ctx, "DELETE FROM case_results WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("delete case results: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "DELETE FROM runs WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// appendCaseResults bulk-loads case rows through the DuckDB appender.
func appendCaseResults(conn *sql.Conn, results harness.Results) error {
	var appender *duckdbdriver.Appender
	if err := conn.Raw(func(driverConn any) error {
		rawConn, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("duckdb driver connection unavailable (got %T)", driverConn)
		}
		var err error
		appender, err = duckdbdriver.NewAppenderFromConn(rawConn, "", "case_results")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	for _, item := range results.Cases {
		if err := appender.AppendRow(
			results.RunID,
			int64(item.Index),
			item.ID,
			CaseKey(results.Suite, item.Question),
			item.Question,
			nullableString(string(item.Mode)),
			string(item.Status),
			item.Passed,
			item.LatencySeconds,
			int64(item.Tokens),
			jsonList(item.FailedChecks()),
			nullableString(item.Error),
		); err != nil {
			_ = appender.Close()
			return fmt.Errorf("append case %s: %w", item.ID, err)
		}
	}
	if err := appender.Close(); err != nil {
		return fmt.Errorf("flush case results: %w", err)
	}
	return nil
}

// IngestIteration stores one optimizer iteration, replacing a previous
// record with the same session and index.
func (s *Store) IngestIteration(ctx context.Context, it history.Iteration) error {
	if s == nil || s.db == nil {
		return errors.New("duckdb: store is nil")
	}
	if it.SessionID == "" {
		return errors.New("duckdb: session id is required")
	}
	createdAt := it.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO optimizer_iterations (
		  session_id, iteration, agent, prompt_name, suite, decision,
		  pass_rate, passed, total, run_id, candidate, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.SessionID,
		it.Index,
		nullableString(it.Agent),
		nullableString(it.PromptName),
		nullableString(it.Suite),
		string(it.Decision),
		it.PassRate,
		it.Passed,
		it.Total,
		nullableString(it.RunID),
		nullableString(it.Candidate),
		nullableString(it.Error),
		createdAt,
	); err != nil {
		return fmt.Errorf("insert iteration: %w", err)
	}
	return nil
}
