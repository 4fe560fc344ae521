package loadtest

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/studiowebux/chatload/internal/migrations"
)

// Manager handles load test data persistence
type Manager struct {
	db *sql.DB
}

// NewManager opens (or creates) the SQLite database at dbPath and migrates it
func NewManager(dbPath string) (*Manager, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers anyway; one connection also keeps ":memory:" databases intact
	db.SetMaxOpenConns(1)

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Manager{db: db}, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}

// CreateRun creates a new run record and sets run.ID
func (m *Manager) CreateRun(run *Run) error {
	result, err := m.db.Exec(`
		INSERT INTO load_test_runs
		(name, host, preset, users, spawn_rate, run_time_sec, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Name, run.Host, run.Preset, run.Users, run.SpawnRate, run.RunTimeSec, run.StartedAt, run.Status)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id
	return nil
}

// UpdateRun writes the final statistics of a run
func (m *Manager) UpdateRun(run *Run) error {
	_, err := m.db.Exec(`
		UPDATE load_test_runs
		SET completed_at = ?, status = ?, total_requests = ?, total_failures = ?,
		    avg_response_ms = ?, min_response_ms = ?, max_response_ms = ?,
		    p50_response_ms = ?, p95_response_ms = ?, p99_response_ms = ?, current_rps = ?
		WHERE id = ?
	`, run.CompletedAt, run.Status, run.TotalRequests, run.TotalFailures,
		run.AvgResponseMs, run.MinResponseMs, run.MaxResponseMs,
		run.P50ResponseMs, run.P95ResponseMs, run.P99ResponseMs, run.CurrentRPS, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run %d: %w", run.ID, err)
	}
	return nil
}

const runColumns = `
	id, name, host, COALESCE(preset, ''), users, spawn_rate, run_time_sec, started_at, completed_at, status,
	COALESCE(total_requests, 0), COALESCE(total_failures, 0), COALESCE(avg_response_ms, 0),
	COALESCE(min_response_ms, 0), COALESCE(max_response_ms, 0), COALESCE(p50_response_ms, 0),
	COALESCE(p95_response_ms, 0), COALESCE(p99_response_ms, 0), COALESCE(current_rps, 0)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var completedAt sql.NullTime
	err := row.Scan(&run.ID, &run.Name, &run.Host, &run.Preset, &run.Users, &run.SpawnRate, &run.RunTimeSec,
		&run.StartedAt, &completedAt, &run.Status, &run.TotalRequests, &run.TotalFailures, &run.AvgResponseMs,
		&run.MinResponseMs, &run.MaxResponseMs, &run.P50ResponseMs, &run.P95ResponseMs, &run.P99ResponseMs,
		&run.CurrentRPS)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}

// GetRun retrieves a run by ID
func (m *Manager) GetRun(id int64) (*Run, error) {
	row := m.db.QueryRow("SELECT "+runColumns+" FROM load_test_runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %d: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first
func (m *Manager) ListRuns(limit int) ([]*Run, error) {
	query := "SELECT " + runColumns + " FROM load_test_runs ORDER BY started_at DESC, id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := m.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun deletes a run and all its metrics
func (m *Manager) DeleteRun(id int64) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Foreign keys are off by default in SQLite, so cascade by hand
	if _, err := tx.Exec("DELETE FROM load_test_metrics WHERE run_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete metrics: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM load_test_runs WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return tx.Commit()
}

// SaveMetricsBatch saves multiple metrics in a single transaction
func (m *Manager) SaveMetricsBatch(metrics []*Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO load_test_metrics
		(run_id, timestamp, elapsed_ms, method, name, status_code, response_ms, response_size, failure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, metric := range metrics {
		_, err := stmt.Exec(metric.RunID, metric.Timestamp, metric.ElapsedMs, metric.Method, metric.Name,
			metric.StatusCode, metric.ResponseMs, metric.ResponseSize, metric.Failure)
		if err != nil {
			return fmt.Errorf("failed to insert metric: %w", err)
		}
	}

	return tx.Commit()
}

// GetMetrics retrieves all metrics for a run ordered by elapsed time
func (m *Manager) GetMetrics(runID int64) ([]*Metric, error) {
	rows, err := m.db.Query(`
		SELECT id, run_id, timestamp, elapsed_ms, method, name, status_code, response_ms, response_size,
		       COALESCE(failure, '')
		FROM load_test_metrics
		WHERE run_id = ?
		ORDER BY elapsed_ms, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*Metric
	for rows.Next() {
		metric := &Metric{}
		err := rows.Scan(&metric.ID, &metric.RunID, &metric.Timestamp, &metric.ElapsedMs, &metric.Method,
			&metric.Name, &metric.StatusCode, &metric.ResponseMs, &metric.ResponseSize, &metric.Failure)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, metric)
	}
	return metrics, rows.Err()
}

// GetEndpointSummary groups the persisted metrics of a run by endpoint
func (m *Manager) GetEndpointSummary(runID int64) ([]*EndpointSummary, error) {
	rows, err := m.db.Query(`
		SELECT method, name, COUNT(*),
		       SUM(CASE WHEN failure IS NOT NULL AND failure != '' THEN 1 ELSE 0 END),
		       AVG(response_ms), MAX(response_ms)
		FROM load_test_metrics
		WHERE run_id = ?
		GROUP BY method, name
		ORDER BY name, method
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise metrics: %w", err)
	}
	defer rows.Close()

	var summaries []*EndpointSummary
	for rows.Next() {
		s := &EndpointSummary{}
		if err := rows.Scan(&s.Method, &s.Name, &s.Requests, &s.Failures, &s.AvgResponseMs, &s.MaxResponseMs); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
