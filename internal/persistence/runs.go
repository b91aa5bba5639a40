package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/adaptation-sim/internal/engine"
)

// RunInfo describes a stored run.
type RunInfo struct {
	ID        string  `db:"id" json:"id"`
	User      string  `db:"user_name" json:"user_name"`
	Scenario  string  `db:"scenario_name" json:"scenario_name"`
	Mode      string  `db:"mode" json:"mode"`
	Seed      string  `db:"seed" json:"seed"`
	RCP       float64 `db:"rcp" json:"rcp"`
	CreatedAt int64   `db:"created_at" json:"created_at"`
}

// NewRunID returns a fresh run id.
func NewRunID() string {
	return uuid.New().String()
}

// SaveRun stores the records of one simulation call under id. A later run
// with the same scenario name supersedes it for lookups.
func (db *DB) SaveRun(id, user, scenario string, res engine.Result) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs (id, user_name, scenario_name, mode, seed, rcp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, user, scenario, string(res.Mode), strconv.FormatUint(res.Seed, 10), res.RCP, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Preparex(`INSERT INTO year_records (run_id, run_index, year, record_json) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range res.Records {
		raw, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode record %d: %w", r.Year, err)
		}
		idx := 0
		if r.Simulation != nil {
			idx = *r.Simulation
		}
		if _, err := stmt.Exec(id, idx, r.Year, string(raw)); err != nil {
			return fmt.Errorf("insert record %d: %w", r.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("run saved", "id", id, "scenario", scenario, "records", len(res.Records))
	return nil
}

// LatestScenario returns the records of the most recent run stored under
// name, in the order they were produced.
func (db *DB) LatestScenario(name string) ([]engine.Record, error) {
	var id string
	err := db.conn.Get(&id,
		"SELECT id FROM runs WHERE scenario_name = ? ORDER BY created_at DESC, rowid DESC LIMIT 1",
		name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrScenarioNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("find scenario %s: %w", name, err)
	}
	return db.RunRecords(id)
}

// RunRecords returns the stored records of a run id.
func (db *DB) RunRecords(id string) ([]engine.Record, error) {
	var rows []string
	if err := db.conn.Select(&rows, "SELECT record_json FROM year_records WHERE run_id = ? ORDER BY id", id); err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	records := make([]engine.Record, 0, len(rows))
	for _, raw := range rows {
		var r engine.Record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", id, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// ListScenarios returns every stored scenario name, sorted.
func (db *DB) ListScenarios() ([]string, error) {
	names := []string{}
	err := db.conn.Select(&names, "SELECT DISTINCT scenario_name FROM runs ORDER BY scenario_name")
	return names, err
}

// Runs returns stored run metadata, newest first.
func (db *DB) Runs(limit int) ([]RunInfo, error) {
	var runs []RunInfo
	err := db.conn.Select(&runs,
		"SELECT id, user_name, scenario_name, mode, seed, rcp, created_at FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	return runs, err
}
