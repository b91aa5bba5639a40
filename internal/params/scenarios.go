package params

import (
	"log/slog"
	"sort"
)

// Override patches the climate-trend fields of a Set. Nil fields are left
// untouched.
type Override struct {
	TempTrend                     *float64 `yaml:"temp_trend" json:"temp_trend,omitempty"`
	PrecipUncertaintyTrend        *float64 `yaml:"precip_uncertainty_trend" json:"precip_uncertainty_trend,omitempty"`
	ExtremePrecipFreqTrend        *float64 `yaml:"extreme_precip_freq_trend" json:"extreme_precip_freq_trend,omitempty"`
	ExtremePrecipIntensityTrend   *float64 `yaml:"extreme_precip_intensity_trend" json:"extreme_precip_intensity_trend,omitempty"`
	ExtremePrecipUncertaintyTrend *float64 `yaml:"extreme_precip_uncertainty_trend" json:"extreme_precip_uncertainty_trend,omitempty"`
}

// Scenarios maps an RCP code (1.9, 2.6, 4.5, 6.0, 8.5) to its override.
type Scenarios map[float64]Override

func f(v float64) *float64 { return &v }

// DefaultScenarios returns the RCP override table.
func DefaultScenarios() Scenarios {
	return Scenarios{
		1.9: {
			TempTrend:                     f(0.02),
			PrecipUncertaintyTrend:        f(0),
			ExtremePrecipFreqTrend:        f(0.05),
			ExtremePrecipIntensityTrend:   f(0.2),
			ExtremePrecipUncertaintyTrend: f(0.05),
		},
		2.6: {
			TempTrend:                     f(0.025),
			PrecipUncertaintyTrend:        f(0),
			ExtremePrecipFreqTrend:        f(0.07),
			ExtremePrecipIntensityTrend:   f(0.4),
			ExtremePrecipUncertaintyTrend: f(0.07),
		},
		4.5: {
			TempTrend:                     f(0.035),
			PrecipUncertaintyTrend:        f(0),
			ExtremePrecipFreqTrend:        f(0.1),
			ExtremePrecipIntensityTrend:   f(0.8),
			ExtremePrecipUncertaintyTrend: f(0.1),
		},
		6.0: {
			TempTrend:                     f(0.045),
			PrecipUncertaintyTrend:        f(0),
			ExtremePrecipFreqTrend:        f(0.13),
			ExtremePrecipIntensityTrend:   f(1.1),
			ExtremePrecipUncertaintyTrend: f(0.13),
		},
		8.5: {
			TempTrend:                     f(0.06),
			PrecipUncertaintyTrend:        f(0),
			ExtremePrecipFreqTrend:        f(0.17),
			ExtremePrecipIntensityTrend:   f(1.5),
			ExtremePrecipUncertaintyTrend: f(0.15),
		},
	}
}

// Codes returns the known RCP codes in ascending order.
func (sc Scenarios) Codes() []float64 {
	codes := make([]float64, 0, len(sc))
	for c := range sc {
		codes = append(codes, c)
	}
	sort.Float64s(codes)
	return codes
}

// Apply patches s in place with the override's non-nil fields.
func (o Override) Apply(s *Set) {
	if o.TempTrend != nil {
		s.TempTrend = *o.TempTrend
	}
	if o.PrecipUncertaintyTrend != nil {
		s.PrecipUncertaintyTrend = *o.PrecipUncertaintyTrend
	}
	if o.ExtremePrecipFreqTrend != nil {
		s.ExtremePrecipFreqTrend = *o.ExtremePrecipFreqTrend
	}
	if o.ExtremePrecipIntensityTrend != nil {
		s.ExtremePrecipIntensityTrend = *o.ExtremePrecipIntensityTrend
	}
	if o.ExtremePrecipUncertaintyTrend != nil {
		s.ExtremePrecipUncertaintyTrend = *o.ExtremePrecipUncertaintyTrend
	}
}

// WithScenario returns a copy of s patched by the override for rcp.
// Unknown codes fall back to an empty override.
func (s Set) WithScenario(sc Scenarios, rcp float64) Set {
	o, ok := sc[rcp]
	if !ok {
		slog.Debug("no climate override for scenario", "rcp", rcp)
		return s
	}
	o.Apply(&s)
	return s
}
