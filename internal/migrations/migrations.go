package migrations

import (
	"database/sql"
	"fmt"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: 1,
		Name:    "Add host and preset indices to load_test_runs",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_load_runs_host ON load_test_runs(host);
			CREATE INDEX IF NOT EXISTS idx_load_runs_preset ON load_test_runs(preset);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_load_runs_host;
			DROP INDEX IF EXISTS idx_load_runs_preset;
		`,
	},
	{
		Version: 2,
		Name:    "Add composite index for per-endpoint metric queries",
		Up: `
			-- Used by GetEndpointSummary GROUP BY
			CREATE INDEX IF NOT EXISTS idx_load_metrics_grouping ON load_test_metrics(run_id, method, name);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_load_metrics_grouping;
		`,
	},
}

// InitSchema creates all tables required by the load test store
// This must be called before running migrations to ensure all tables exist
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS load_test_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		host TEXT NOT NULL,
		preset TEXT,
		users INTEGER NOT NULL DEFAULT 0,
		spawn_rate REAL NOT NULL DEFAULT 0,
		run_time_sec INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		status TEXT NOT NULL,
		total_requests INTEGER DEFAULT 0,
		total_failures INTEGER DEFAULT 0,
		avg_response_ms REAL DEFAULT 0,
		min_response_ms INTEGER DEFAULT 0,
		max_response_ms INTEGER DEFAULT 0,
		p50_response_ms INTEGER DEFAULT 0,
		p95_response_ms INTEGER DEFAULT 0,
		p99_response_ms INTEGER DEFAULT 0,
		current_rps REAL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_load_runs_started_at ON load_test_runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_load_runs_status ON load_test_runs(status);

	CREATE TABLE IF NOT EXISTS load_test_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		method TEXT NOT NULL,
		name TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		response_ms INTEGER NOT NULL,
		response_size INTEGER DEFAULT 0,
		failure TEXT,
		FOREIGN KEY (run_id) REFERENCES load_test_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_load_metrics_run_id ON load_test_metrics(run_id);
	CREATE INDEX IF NOT EXISTS idx_load_metrics_elapsed ON load_test_metrics(run_id, elapsed_ms);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Run executes all pending migrations on the database
func Run(db *sql.DB) error {
	if err := InitSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := GetCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, migration := range AllMigrations {
		if migration.Version <= currentVersion {
			continue
		}

		if _, err := db.Exec(migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		_, err = db.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version,
			migration.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// GetCurrentVersion returns the current database schema version
func GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_migrations
	`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return version, nil
}
