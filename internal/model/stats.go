// Package model defines the aggregate statistics returned by the engine and
// the stored survey entities they are computed from.
package model

// Frequency is one histogram bin. Sum, when set, is the count-weighted total
// of the numeric Value.
type Frequency struct {
	Value string `json:"value" yaml:"value"`
	Count int    `json:"count" yaml:"count"`
	Sum   *int   `json:"sum,omitempty" yaml:"sum,omitempty"`
}

// Frequencies is the histogram of one field. Total is the number of rows
// the histogram was computed from, not the sum of bin counts.
type Frequencies struct {
	Field string      `json:"field" yaml:"field"`
	Total int         `json:"total" yaml:"total"`
	Data  []Frequency `json:"data" yaml:"data"`
}

// Emissions aggregates the estimated yearly CO2 emissions of one mode.
// Distances are kilometers and Emissions are kilograms.
type Emissions struct {
	Mode      string  `json:"mode" yaml:"mode"`
	Total     int     `json:"total" yaml:"total"`
	Distances float64 `json:"distances" yaml:"distances"`
	Journeys  int     `json:"journeys" yaml:"journeys"`
	Emissions float64 `json:"emissions" yaml:"emissions"`
}

// EmissionReductions holds the emissions (kg) avoided for one mode if the
// recommendations were followed.
type EmissionReductions struct {
	Mode    string  `json:"mode" yaml:"mode"`
	Total   int     `json:"total" yaml:"total"`
	Reduced float64 `json:"reduced" yaml:"reduced"`
}

// Link is a weighted edge from a used mode to a recommendation code.
type Link struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Value  int    `json:"value" yaml:"value"`
}

// Links is a mode to recommendation flow graph.
type Links struct {
	Total int    `json:"total" yaml:"total"`
	Data  []Link `json:"data" yaml:"data"`
}

// Stats bundles every individual and professional aggregate.
type Stats struct {
	Total int `json:"total" yaml:"total"`

	// Individual commute.
	Frequencies            []Frequencies        `json:"frequencies" yaml:"frequencies"`
	ModeFrequencies        []Frequencies        `json:"mode_frequencies" yaml:"mode_frequencies"`
	ModeEmissions          []Emissions          `json:"mode_emissions" yaml:"mode_emissions"`
	RecoModeEmissions      []Emissions          `json:"reco_mode_emissions" yaml:"reco_mode_emissions"`
	ModeEmissionReductions []EmissionReductions `json:"mode_emission_reductions" yaml:"mode_emission_reductions"`
	ModeLinks              Links                `json:"mode_links" yaml:"mode_links"`

	// Professional travel.
	ProFrequencies       []Frequencies `json:"pro_frequencies" yaml:"pro_frequencies"`
	ProModeFrequencies   []Frequencies `json:"pro_mode_frequencies" yaml:"pro_mode_frequencies"`
	ProModeEmissions     []Emissions   `json:"pro_mode_emissions" yaml:"pro_mode_emissions"`
	RecoProModeEmissions []Emissions   `json:"reco_pro_mode_emissions" yaml:"reco_pro_mode_emissions"`
	ProModeLinks         Links         `json:"pro_mode_links" yaml:"pro_mode_links"`
}

// Bin returns the bin with the given value, if any.
func (f Frequencies) Bin(value string) (Frequency, bool) {
	for _, b := range f.Data {
		if b.Value == value {
			return b, true
		}
	}
	return Frequency{}, false
}

// FindEmissions returns the aggregate for mode, if any.
func FindEmissions(es []Emissions, mode string) (Emissions, bool) {
	for _, e := range es {
		if e.Mode == mode {
			return e, true
		}
	}
	return Emissions{}, false
}

// FindFrequencies returns the histogram of field, if any.
func FindFrequencies(fs []Frequencies, field string) (Frequencies, bool) {
	for _, f := range fs {
		if f.Field == field {
			return f, true
		}
	}
	return Frequencies{}, false
}

// Edge returns the weight of the source to target edge, 0 when absent.
func (l Links) Edge(source, target string) int {
	for _, e := range l.Data {
		if e.Source == source && e.Target == target {
			return e.Value
		}
	}
	return 0
}
