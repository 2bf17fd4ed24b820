// Package stats computes mobility statistics from a flattened table of
// commuting-survey records: mode histograms, estimated CO2 emissions and
// mode to recommendation flows, for individual and professional travel.
package stats

import (
	"maps"
	"slices"
	"strings"

	"github.com/sells-group/mobility-stats/internal/geo"
	"github.com/sells-group/mobility-stats/internal/record"
)

// Modes are the individual commuting modes, in presentation order.
var Modes = []string{"walking", "bike", "ebike", "pub", "moto", "carpool", "car", "train"}

// ProModes are the professional travel modes, in presentation order.
var ProModes = []string{"walking", "bike", "pub", "moto", "car", "train", "boat", "plane"}

// LegacyProFields are the area_mode suffixes of the legacy professional
// columns (data.freq_mod_pro_<area>_<mode>).
var LegacyProFields = []string{
	"local_walking", "local_car", "local_pub", "local_bike", "local_moto", "local_train",
	"region_car", "region_pub", "region_train", "region_moto", "region_plane",
	"europe_car", "europe_train", "europe_plane",
	"inter_car", "inter_train", "inter_plane",
}

// DefaultEmissionFactors returns grams of CO2 per passenger-km. The table
// covers the travel modes and the recommendation-only codes (elec, inter,
// avoid, cargo) once aliases are resolved.
func DefaultEmissionFactors() map[string]float64 {
	return map[string]float64{
		"walking":   0,
		"bike":      6,
		"ebike":     11,
		"pub":       25,
		"moto":      155,
		"elec_moto": 82,
		"carpool":   93,
		"car":       186,
		"train":     8,
		"boat":      161,
		"plane":     263,
		"elec":      90,
		"inter":     56,
		"avoid":     0,
		"cargo":     11,
	}
}

// DefaultRecoAliases maps recommendation vocabulary to mode names.
func DefaultRecoAliases() map[string]string {
	return map[string]string{
		"covoit": "carpool",
		"velo":   "bike",
		"marche": "walking",
		"tpu":    "pub",
		"vae":    "ebike",
	}
}

// Params holds the constant tables of the statistics model. A Params value
// is never mutated once handed to NewEngine.
type Params struct {
	VersionField string

	Modes           []string
	ProModes        []string
	LegacyProFields []string

	// EmissionFactors are grams of CO2 per passenger-km.
	EmissionFactors map[string]float64
	RecoAliases     map[string]string

	WeeksPerYear float64
	RoundTrip    float64
	// LegacyProScale annualizes the monthly legacy professional counts.
	LegacyProScale int
	// TrainShare is the part of an intermodal journey attributed to train.
	TrainShare float64

	Areas     geo.AreaThresholds
	Estimator *geo.Estimator
}

// DefaultParams returns the reference model constants.
func DefaultParams() Params {
	return Params{
		VersionField:    record.VersionField,
		Modes:           slices.Clone(Modes),
		ProModes:        slices.Clone(ProModes),
		LegacyProFields: slices.Clone(LegacyProFields),
		EmissionFactors: DefaultEmissionFactors(),
		RecoAliases:     DefaultRecoAliases(),
		WeeksPerYear:    45,
		RoundTrip:       2,
		LegacyProScale:  12,
		TrainShare:      0.8,
		Areas:           geo.DefaultAreaThresholds(),
		Estimator:       geo.NewEstimator(),
	}
}

// clone returns a deep copy so later changes by the caller cannot leak in.
// Zero fields fall back to the defaults.
func (p Params) clone() Params {
	d := DefaultParams()
	if p.VersionField == "" {
		p.VersionField = d.VersionField
	}
	if len(p.Modes) == 0 {
		p.Modes = d.Modes
	}
	if len(p.ProModes) == 0 {
		p.ProModes = d.ProModes
	}
	if len(p.LegacyProFields) == 0 {
		p.LegacyProFields = d.LegacyProFields
	}
	if p.EmissionFactors == nil {
		p.EmissionFactors = d.EmissionFactors
	}
	if p.RecoAliases == nil {
		p.RecoAliases = d.RecoAliases
	}
	if p.WeeksPerYear <= 0 {
		p.WeeksPerYear = d.WeeksPerYear
	}
	if p.RoundTrip <= 0 {
		p.RoundTrip = d.RoundTrip
	}
	if p.LegacyProScale <= 0 {
		p.LegacyProScale = d.LegacyProScale
	}
	if p.TrainShare <= 0 || p.TrainShare > 1 {
		p.TrainShare = d.TrainShare
	}
	if p.Areas == (geo.AreaThresholds{}) {
		p.Areas = d.Areas
	}
	if p.Estimator == nil {
		p.Estimator = d.Estimator
	}

	p.Modes = slices.Clone(p.Modes)
	p.ProModes = slices.Clone(p.ProModes)
	p.LegacyProFields = slices.Clone(p.LegacyProFields)
	p.EmissionFactors = maps.Clone(p.EmissionFactors)
	p.RecoAliases = maps.Clone(p.RecoAliases)
	return p
}

// Normalize maps a recommendation code to the mode vocabulary. Unknown codes
// are returned trimmed and unchanged.
func (p Params) Normalize(code string) string {
	code = strings.TrimSpace(code)
	if m, ok := p.RecoAliases[code]; ok {
		return m
	}
	return code
}

// Factor returns the emission factor of mode in g/pkm.
func (p Params) Factor(mode string) (float64, bool) {
	f, ok := p.EmissionFactors[mode]
	return f, ok
}

// annualJourneys converts weekly occurrences to one-way trips per year.
func (p Params) annualJourneys(perWeek float64) float64 {
	return perWeek * p.WeeksPerYear * p.RoundTrip
}
