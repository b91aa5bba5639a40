package steward

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/adaptation-sim/internal/engine"
	"github.com/talgya/adaptation-sim/internal/params"
)

// Policy is what the steward plays: who it plays as, where it starts and
// which decisions it takes each year.
type Policy struct {
	User     string               `yaml:"user"`
	Scenario string               `yaml:"scenario"`
	RCP      float64              `yaml:"rcp"`
	Seed     uint64               `yaml:"seed"`
	From     int                  `yaml:"from"`
	To       int                  `yaml:"to"`
	Initial  engine.InitialValues `yaml:"initial"`

	// Years lists decisions for explicit years; unlisted years take none.
	Years []engine.DecisionVars `yaml:"years"`

	// Decades is a decade table keyed by each decade's first year.
	Decades []engine.DecisionVars `yaml:"decades"`
}

// LoadPolicy reads a YAML policy file.
func LoadPolicy(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}
	var pol Policy
	if err := yaml.Unmarshal(raw, &pol); err != nil {
		return Policy{}, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if err := pol.Validate(); err != nil {
		return Policy{}, fmt.Errorf("policy %s: %w", path, err)
	}
	return pol, nil
}

// Validate checks the policy is usable.
func (pol Policy) Validate() error {
	var errs []error
	if pol.User == "" {
		errs = append(errs, errors.New("user is required"))
	}
	if pol.Scenario == "" {
		errs = append(errs, errors.New("scenario is required"))
	}
	if len(pol.Years) > 0 && len(pol.Decades) > 0 {
		errs = append(errs, errors.New("years and decades are exclusive"))
	}
	if pol.From != 0 && pol.To != 0 && pol.To < pol.From {
		errs = append(errs, fmt.Errorf("to %d before from %d", pol.To, pol.From))
	}
	return errors.Join(errs...)
}

// Span returns the first and last year to step, defaulting to p's horizon.
func (pol Policy) Span(p params.Set) (int, int) {
	from, to := pol.From, pol.To
	if from == 0 {
		from = p.StartYear
	}
	if to == 0 {
		to = p.EndYear
	}
	return from, to
}

// DecisionFor returns the decisions for year, stamped with the year and
// the policy's climate scenario.
func (pol Policy) DecisionFor(year int, p params.Set) engine.DecisionVars {
	var dv engine.DecisionVars
	switch {
	case len(pol.Decades) > 0:
		dv = engine.DecadeTable(pol.Decades, p).Resolve(year, p)
	default:
		for _, y := range pol.Years {
			if y.Year == year {
				dv = y
				break
			}
		}
	}
	dv.Year = year
	dv.ClimateScenario = pol.RCP
	return dv
}
