// Package geo estimates travel distances from coordinates and hexagonal
// grid cells, and classifies professional destinations by distance.
package geo

// Destination area classes for professional trips.
const (
	AreaLocal    = "local"
	AreaNational = "national"
	AreaEurope   = "europe"
	AreaInter    = "inter"
)

// Areas lists the destination classes from nearest to farthest.
var Areas = []string{AreaLocal, AreaNational, AreaEurope, AreaInter}

// AreaThresholds holds the exclusive upper bounds (kilometers) of the
// local, national and europe classes. Anything farther is inter.
type AreaThresholds struct {
	LocalKM    float64 `yaml:"local_km" mapstructure:"local_km"`
	NationalKM float64 `yaml:"national_km" mapstructure:"national_km"`
	EuropeKM   float64 `yaml:"europe_km" mapstructure:"europe_km"`
}

// DefaultAreaThresholds returns the 20/500/1500 km bounds.
func DefaultAreaThresholds() AreaThresholds {
	return AreaThresholds{LocalKM: 20, NationalKM: 500, EuropeKM: 1500}
}

// Classify returns the destination area for a distance.
// Rules:
//   - local: km < 20
//   - national: km < 500
//   - europe: km < 1500
//   - inter: otherwise
func (a AreaThresholds) Classify(km float64) string {
	switch {
	case km < a.LocalKM:
		return AreaLocal
	case km < a.NationalKM:
		return AreaNational
	case km < a.EuropeKM:
		return AreaEurope
	default:
		return AreaInter
	}
}

// ClassifyArea classifies km with the default thresholds.
func ClassifyArea(km float64) string {
	return DefaultAreaThresholds().Classify(km)
}
