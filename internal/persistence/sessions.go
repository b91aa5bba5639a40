package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/talgya/adaptation-sim/internal/engine"
)

// DecisionEntry is one logged decision record.
type DecisionEntry struct {
	ID       int64  `db:"id" json:"id"`
	User     string `db:"user_name" json:"user_name"`
	Scenario string `db:"scenario_name" json:"scenario_name"`
	engine.DecisionVars
	CreatedAt int64 `db:"created_at" json:"timestamp"`
}

// AppendDecisions logs the decisions a user submitted.
func (db *DB) AppendDecisions(user, scenario string, dvs []engine.DecisionVars) error {
	if len(dvs) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	for _, dv := range dvs {
		_, err := tx.Exec(`INSERT INTO decision_log
			(user_name, scenario_name, year, planting_trees_amount, house_migration_amount,
			 dam_levee_construction_cost, paddy_dam_construction_cost, capacity_building_cost,
			 transportation_invest, agricultural_rnd_cost, cp_climate_params, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			user, scenario, dv.Year, dv.PlantingTreesAmount, dv.HouseMigrationAmount,
			dv.DamLeveeConstructionCost, dv.PaddyDamConstructionCost, dv.CapacityBuildingCost,
			dv.TransportationInvest, dv.AgriculturalRnDCost, dv.ClimateScenario, now,
		)
		if err != nil {
			return fmt.Errorf("insert decision %d: %w", dv.Year, err)
		}
	}
	return tx.Commit()
}

// DecisionLog returns every logged decision in submission order.
func (db *DB) DecisionLog() ([]DecisionEntry, error) {
	rows, err := db.conn.Queryx(`SELECT id, user_name, scenario_name, year, planting_trees_amount,
		house_migration_amount, dam_levee_construction_cost, paddy_dam_construction_cost,
		capacity_building_cost, transportation_invest, agricultural_rnd_cost, cp_climate_params, created_at
		FROM decision_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load decision log: %w", err)
	}
	defer rows.Close()

	var out []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		err := rows.Scan(&e.ID, &e.User, &e.Scenario, &e.Year, &e.PlantingTreesAmount,
			&e.HouseMigrationAmount, &e.DamLeveeConstructionCost, &e.PaddyDamConstructionCost,
			&e.CapacityBuildingCost, &e.TransportationInvest, &e.AgriculturalRnDCost, &e.ClimateScenario, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Session is the saved state of a sequential run.
type Session struct {
	User     string               `json:"user_name"`
	Scenario string               `json:"scenario_name"`
	Year     int                  `json:"year"`
	State    engine.InitialValues `json:"state"`
}

// SaveSession stores the state reached after year, replacing any earlier
// session for the pair.
func (db *DB) SaveSession(user, scenario string, year int, state engine.InitialValues) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = db.conn.Exec(`INSERT OR REPLACE INTO sessions (user_name, scenario_name, year, state_json, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		user, scenario, year, string(raw), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession returns the saved session for (user, scenario).
func (db *DB) LoadSession(user, scenario string) (Session, error) {
	var row struct {
		Year  int    `db:"year"`
		State string `db:"state_json"`
	}
	err := db.conn.Get(&row, "SELECT year, state_json FROM sessions WHERE user_name = ? AND scenario_name = ?", user, scenario)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s/%s", ErrSessionNotFound, user, scenario)
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	s := Session{User: user, Scenario: scenario, Year: row.Year}
	if err := json.Unmarshal([]byte(row.State), &s.State); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}
