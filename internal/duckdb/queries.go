package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TrendPoint is one run in a suite's pass-rate history.
type TrendPoint struct {
	RunID     string
	Agent     string
	StartedAt time.Time
	PassRate  float64
	Passed    int
	Evaluated int
}

// PassRateTrend returns the most recent runs of a suite in chronological
// order. limit <= 0 returns every run.
func (s *Store) PassRateTrend(ctx context.Context, suiteName string, limit int) ([]TrendPoint, error) {
	query := `SELECT run_id, COALESCE(agent, ''), started_at, pass_rate, passed, evaluated
		FROM v_pass_rate_trend
		WHERE suite = ?
		ORDER BY started_at DESC, run_id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, suiteName)
	if err != nil {
		return nil, fmt.Errorf("query trend: %w", err)
	}
	defer rows.Close()
	var points []TrendPoint
	for rows.Next() {
		var point TrendPoint
		var startedAt sql.NullTime
		if err := rows.Scan(&point.RunID, &point.Agent, &startedAt, &point.PassRate, &point.Passed, &point.Evaluated); err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		point.StartedAt = startedAt.Time
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read trend: %w", err)
	}
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// CaseStability summarizes how often one question passed across runs.
type CaseStability struct {
	CaseKey  string
	CaseID   string
	Question string
	Runs     int
	Passed   int
}

// Flaky reports whether the case both passed and failed at least once.
func (c CaseStability) Flaky() bool {
	return c.Passed > 0 && c.Passed < c.Runs
}

// UnstableCases lists a suite's cases that did not pass in every evaluated
// run, least stable first.
func (s *Store) UnstableCases(ctx context.Context, suiteName string) ([]CaseStability, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.case_key, arg_max(c.case_id, r.started_at), arg_max(c.question, r.started_at),
		        COUNT(*) AS runs, CAST(SUM(CASE WHEN c.passed THEN 1 ELSE 0 END) AS BIGINT) AS passed
		 FROM case_results c
		 JOIN runs r ON r.run_id = c.run_id
		 WHERE r.suite = ? AND c.status <> 'skipped'
		 GROUP BY c.case_key
		 HAVING SUM(CASE WHEN c.passed THEN 1 ELSE 0 END) < COUNT(*)
		 ORDER BY CAST(SUM(CASE WHEN c.passed THEN 1 ELSE 0 END) AS DOUBLE) / COUNT(*), c.case_key`,
		suiteName,
	)
	if err != nil {
		return nil, fmt.Errorf("query unstable cases: %w", err)
	}
	defer rows.Close()
	var out []CaseStability
	for rows.Next() {
		var item CaseStability
		if err := rows.Scan(&item.CaseKey, &item.CaseID, &item.Question, &item.Runs, &item.Passed); err != nil {
			return nil, fmt.Errorf("scan unstable case: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// SessionIterations returns the stored iterations of an optimizer session.
func (s *Store) SessionIterations(ctx context.Context, sessionID string) ([]IterationRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT iteration, decision, COALESCE(pass_rate, 0), COALESCE(passed, 0), COALESCE(total, 0), COALESCE(run_id, '')
		 FROM optimizer_iterations
		 WHERE session_id = ?
		 ORDER BY iteration`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()
	var out []IterationRow
	for rows.Next() {
		var item IterationRow
		if err := rows.Scan(&item.Index, &item.Decision, &item.PassRate, &item.Passed, &item.Total, &item.RunID); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// IterationRow is the queryable projection of an optimizer iteration.
type IterationRow struct {
	Index    int
	Decision string
	PassRate float64
	Passed   int
	Total    int
	RunID    string
}
