package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of a parameter override file. Every key is
// optional; absent keys keep their default.
type File struct {
	Params    Set       `yaml:"params"`
	Scenarios Scenarios `yaml:"scenarios"`
}

// Load reads a YAML file and overlays it onto the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Set, Scenarios, error) {
	set, sc := Defaults(), DefaultScenarios()
	if path == "" {
		return set, sc, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return set, sc, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse overlays YAML bytes onto the defaults.
func Parse(raw []byte) (Set, Scenarios, error) {
	file := File{Params: Defaults()}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Defaults(), DefaultScenarios(), fmt.Errorf("params yaml: %w", err)
	}
	if len(file.Scenarios) == 0 {
		file.Scenarios = DefaultScenarios()
	}
	if err := file.Params.Validate(); err != nil {
		return Defaults(), DefaultScenarios(), err
	}
	return file.Params, file.Scenarios, nil
}

// Validate rejects sets that cannot describe a horizon.
func (s Set) Validate() error {
	if s.EndYear < s.StartYear {
		return fmt.Errorf("end_year %d before start_year %d", s.EndYear, s.StartYear)
	}
	if s.TreeGrowupYear < 0 {
		return fmt.Errorf("tree_growup_year must be non-negative, got %d", s.TreeGrowupYear)
	}
	if s.HouseTotal <= 0 {
		return fmt.Errorf("house_total must be positive, got %g", s.HouseTotal)
	}
	if s.TotalArea <= 0 || s.PaddyFieldArea <= 0 {
		return fmt.Errorf("total_area and paddy_field_area must be positive")
	}
	if s.PaddyDamCostPerHa <= 0 || s.NecessaryWaterForCrops <= 0 {
		return fmt.Errorf("paddy_dam_cost_per_ha and necessary_water_for_crops must be positive")
	}
	if s.TempCriticalCrop == s.TempThresholdCropIni {
		return fmt.Errorf("temp_critical_crop must differ from temp_threshold_crop_ini")
	}
	return nil
}
