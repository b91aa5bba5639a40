// Package persistence stores runs, block scores, decision logs and
// sequential sessions in SQLite.
package persistence

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var (
	// ErrScenarioNotFound is returned when no run was stored under a name.
	ErrScenarioNotFound = errors.New("scenario not found")
	// ErrSessionNotFound is returned when a user has no saved session for
	// a scenario.
	ErrSessionNotFound = errors.New("session not found")
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite serialises writers; one connection keeps WAL readers simple.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Debug("database opened", "path", path)
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL,
		scenario_name TEXT NOT NULL,
		mode TEXT NOT NULL,
		seed TEXT NOT NULL,
		rcp REAL NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS year_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		run_index INTEGER NOT NULL,
		year INTEGER NOT NULL,
		record_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS block_scores (
		user_name TEXT NOT NULL,
		scenario_name TEXT NOT NULL,
		period TEXT NOT NULL,
		raw_json TEXT NOT NULL,
		score_json TEXT NOT NULL,
		total_score REAL NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (user_name, scenario_name, period)
	);

	CREATE TABLE IF NOT EXISTS decision_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_name TEXT NOT NULL,
		scenario_name TEXT NOT NULL,
		year INTEGER NOT NULL,
		planting_trees_amount REAL NOT NULL,
		house_migration_amount REAL NOT NULL,
		dam_levee_construction_cost REAL NOT NULL,
		paddy_dam_construction_cost REAL NOT NULL,
		capacity_building_cost REAL NOT NULL,
		transportation_invest REAL NOT NULL,
		agricultural_rnd_cost REAL NOT NULL,
		cp_climate_params REAL NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		user_name TEXT NOT NULL,
		scenario_name TEXT NOT NULL,
		year INTEGER NOT NULL,
		state_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_name, scenario_name)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_scenario ON runs(scenario_name, created_at);
	CREATE INDEX IF NOT EXISTS idx_year_records_run ON year_records(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
