package persistence

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/talgya/adaptation-sim/internal/engine"
	"github.com/talgya/adaptation-sim/internal/scoring"
)

// Export file names written by ExportFiles.
const (
	BlockScoresFile = "block_scores.tsv"
	DecisionLogFile = "decision_log.csv"
)

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ExportFiles writes the block scores and decision log into dir.
func (db *DB) ExportFiles(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	scores, err := db.BlockScores()
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, BlockScoresFile), func(w io.Writer) error {
		return WriteBlockScoresTSV(w, scores)
	}); err != nil {
		return err
	}

	log, err := db.DecisionLog()
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, DecisionLogFile), func(w io.Writer) error {
		return WriteDecisionLogCSV(w, log)
	}); err != nil {
		return err
	}

	slog.Info("results exported", "dir", dir, "block_scores", len(scores), "decisions", len(log))
	return nil
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fill(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// WriteBlockScoresTSV writes one tab-separated row per stored block.
func WriteBlockScoresTSV(w io.Writer, rows []ScoreRow) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	header := []string{"user_name", "scenario_name", "period", "total_score"}
	for _, k := range scoring.Keys {
		header = append(header, "score_"+k)
	}
	for _, k := range scoring.Keys {
		header = append(header, "raw_"+k)
	}
	header = append(header, "timestamp")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		line := []string{r.User, r.Scenario, r.Period, ftoa(r.TotalScore)}
		for _, k := range scoring.Keys {
			line = append(line, ftoa(r.Score[k]))
		}
		for _, k := range scoring.Keys {
			line = append(line, ftoa(r.Raw[k]))
		}
		line = append(line, strconv.FormatInt(r.CreatedAt, 10))
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDecisionLogCSV writes the decision log as CSV.
func WriteDecisionLogCSV(w io.Writer, entries []DecisionEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"year", "planting_trees_amount", "house_migration_amount", "dam_levee_construction_cost",
		"paddy_dam_construction_cost", "capacity_building_cost", "transportation_invest",
		"agricultural_RnD_cost", "cp_climate_params", "user_name", "scenario_name", "timestamp",
	}); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{
			strconv.Itoa(e.Year), ftoa(e.PlantingTreesAmount), ftoa(e.HouseMigrationAmount),
			ftoa(e.DamLeveeConstructionCost), ftoa(e.PaddyDamConstructionCost), ftoa(e.CapacityBuildingCost),
			ftoa(e.TransportationInvest), ftoa(e.AgriculturalRnDCost), ftoa(e.ClimateScenario),
			e.User, e.Scenario, strconv.FormatInt(e.CreatedAt, 10),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RecordColumns is the column order of WriteRecordsCSV.
var RecordColumns = []string{
	"Year", "Temperature (℃)", "Precipitation (mm)", "Available Water", "Crop Yield",
	"Municipal Demand", "Flood Damage", "Levee Level", "High Temp Tolerance Level", "Hot Days",
	"Extreme Precip Frequency", "Extreme Precip Events", "Ecosystem Level", "Municipal Cost",
	"Urban Level", "Resident Burden", "Levee investment total", "RnD investment total",
	"Resident capacity", "Forest Area", "risky_house_total", "non_risky_house_total",
	"transportation_level", "paddy_dam_area", "planting_trees_amount", "house_migration_amount",
	"dam_levee_construction_cost", "paddy_dam_construction_cost", "capacity_building_cost",
	"agricultural_RnD_cost", "transportation_invest", "Simulation",
}

// WriteRecordsCSV writes a trajectory as CSV, one row per record.
func WriteRecordsCSV(w io.Writer, records []engine.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RecordColumns); err != nil {
		return err
	}
	for _, r := range records {
		sim := ""
		if r.Simulation != nil {
			sim = strconv.Itoa(*r.Simulation)
		}
		row := []string{
			strconv.Itoa(r.Year), ftoa(r.Temperature), ftoa(r.Precipitation), ftoa(r.AvailableWater),
			ftoa(r.CropYield), ftoa(r.MunicipalDemand), ftoa(r.FloodDamage), ftoa(r.LeveeLevel),
			ftoa(r.HighTempTolerance), ftoa(r.HotDays), ftoa(r.ExtremePrecipFrequency),
			strconv.Itoa(r.ExtremePrecipEvents), ftoa(r.EcosystemLevel), ftoa(r.MunicipalCost),
			ftoa(r.UrbanLevel), ftoa(r.ResidentBurden), ftoa(r.LeveeInvestmentTotal),
			ftoa(r.RnDInvestmentTotal), ftoa(r.ResidentCapacity), ftoa(r.ForestArea),
			ftoa(r.RiskyHouseTotal), ftoa(r.NonRiskyHouseTotal), ftoa(r.TransportationLevel),
			ftoa(r.PaddyDamArea), ftoa(r.PlantingTreesAmount), ftoa(r.HouseMigrationAmount),
			ftoa(r.DamLeveeConstructionCost), ftoa(r.PaddyDamConstructionCost),
			ftoa(r.CapacityBuildingCost), ftoa(r.AgriculturalRnDCost), ftoa(r.TransportationInvest),
			sim,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
