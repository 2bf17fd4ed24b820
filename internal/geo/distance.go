package geo

import (
	"maps"
	"math"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/uber/h3-go/v4"
)

// EarthRadiusKM is the mean earth radius used by GreatCircle.
const EarthRadiusKM = 6371.0

// Defaults for the distance model.
const (
	// DefaultRouteFactor turns a straight-line commute into an approximate
	// travelled distance.
	DefaultRouteFactor = 1.3
	// DefaultHexCoefficient is the network-vs-measured detour ratio applied
	// to professional trips (Ballou et al., TRR 1804).
	DefaultHexCoefficient = 1.22
	// DefaultSubResolution is the resolution whose center child stands in
	// for a coarse destination cell.
	DefaultSubResolution = 9
)

// DefaultHexModes lists the modes that carry an explicit hex coefficient.
var DefaultHexModes = []string{"train", "car", "bike", "walking", "moto", "pub", "boat", "plane"}

// Estimator computes approximate travel distances in kilometers. Every
// method is fail-soft: invalid input yields 0.
type Estimator struct {
	routeFactor   float64
	hexCoeffs     map[string]float64
	defaultCoeff  float64
	subResolution int
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithRouteFactor sets the great-circle inflation factor.
func WithRouteFactor(f float64) Option {
	return func(e *Estimator) {
		if f > 0 {
			e.routeFactor = f
		}
	}
}

// WithHexCoefficients sets per-mode inflation coefficients for hex
// distances. Modes absent from m fall back to the default coefficient.
func WithHexCoefficients(m map[string]float64) Option {
	return func(e *Estimator) {
		e.hexCoeffs = maps.Clone(m)
	}
}

// WithDefaultHexCoefficient sets the coefficient used for unlisted modes.
func WithDefaultHexCoefficient(c float64) Option {
	return func(e *Estimator) {
		if c > 0 {
			e.defaultCoeff = c
		}
	}
}

// WithSubResolution sets the resolution of the center child used for
// cross-cell distances.
func WithSubResolution(res int) Option {
	return func(e *Estimator) {
		if res >= 0 && res <= 15 {
			e.subResolution = res
		}
	}
}

// NewEstimator creates an Estimator with the default constants, then
// applies opts.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		routeFactor:   DefaultRouteFactor,
		hexCoeffs:     make(map[string]float64, len(DefaultHexModes)),
		defaultCoeff:  DefaultHexCoefficient,
		subResolution: DefaultSubResolution,
	}
	for _, m := range DefaultHexModes {
		e.hexCoeffs[m] = DefaultHexCoefficient
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEstimator = NewEstimator()

// GreatCircle is Estimator.GreatCircle with the default constants.
func GreatCircle(lat1, lon1, lat2, lon2 float64) float64 {
	return defaultEstimator.GreatCircle(lat1, lon1, lat2, lon2)
}

// HexDistance is Estimator.HexDistance with the default constants.
func HexDistance(lat, lon float64, cell, mode string) float64 {
	return defaultEstimator.HexDistance(lat, lon, cell, mode)
}

// GreatCircle returns the spherical law-of-cosines distance between two
// coordinates, multiplied by the route factor.
func (e *Estimator) GreatCircle(lat1, lon1, lat2, lon2 float64) float64 {
	if !validCoord(lat1, lon1) || !validCoord(lat2, lon2) {
		return 0
	}
	φ1, φ2 := radians(lat1), radians(lat2)
	Δλ := radians(lon2) - radians(lon1)

	cosC := math.Cos(φ1)*math.Cos(φ2)*math.Cos(Δλ) + math.Sin(φ1)*math.Sin(φ2)
	// Rounding can push the cosine slightly past ±1 for near-identical points.
	cosC = math.Max(-1, math.Min(1, cosC))

	return finite(EarthRadiusKM * math.Acos(cosC) * e.routeFactor)
}

// Between returns GreatCircle for two points. A nil point yields 0.
func (e *Estimator) Between(a, b *geom.Point) float64 {
	if a == nil || b == nil {
		return 0
	}
	return e.GreatCircle(a.Y(), a.X(), b.Y(), b.X())
}

// HexDistance estimates the distance from a coordinate to a destination
// known only as a hexagonal grid cell. When the coordinate falls in the
// cell itself, the average edge length at that resolution is returned
// instead of a near-zero distance. Otherwise the great-circle distance to
// the cell's center child at the sub-resolution is scaled by the mode's
// coefficient.
func (e *Estimator) HexDistance(lat, lon float64, cell, mode string) float64 {
	if !validCoord(lat, lon) {
		return 0
	}
	c, ok := parseCell(cell)
	if !ok {
		return 0
	}

	res := c.Resolution()
	origin := h3.NewLatLng(lat, lon)
	own, err := h3.LatLngToCell(origin, res)
	if err != nil {
		return 0
	}
	if own == c {
		edge, err := h3.HexagonEdgeLengthAvgKm(res)
		if err != nil {
			return 0
		}
		return finite(edge)
	}

	center := c
	if res < e.subResolution {
		if center, err = c.CenterChild(e.subResolution); err != nil {
			return 0
		}
	}
	dest, err := center.LatLng()
	if err != nil {
		return 0
	}
	return finite(h3.GreatCircleDistanceKm(dest, origin) * e.coefficient(mode))
}

// ToCell returns HexDistance from a point. A nil point yields 0.
func (e *Estimator) ToCell(p *geom.Point, cell, mode string) float64 {
	if p == nil {
		return 0
	}
	return e.HexDistance(p.Y(), p.X(), cell, mode)
}

func (e *Estimator) coefficient(mode string) float64 {
	if c, ok := e.hexCoeffs[mode]; ok && c > 0 {
		return c
	}
	return e.defaultCoeff
}

func parseCell(s string) (h3.Cell, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	c := h3.Cell(h3.IndexFromString(s))
	if !c.IsValid() {
		return 0, false
	}
	return c, true
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
