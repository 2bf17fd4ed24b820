package geo

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/mobility-stats/internal/record"
)

// SRID of every point built by this package (WGS84).
const SRID = 4326

// NewPoint builds a WGS84 point (X = longitude, Y = latitude). It returns
// nil when a coordinate is not finite or out of range.
func NewPoint(lat, lon float64) *geom.Point {
	if !validCoord(lat, lon) {
		return nil
	}
	return geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(SRID)
}

// PointFromRow reads prefix.lat and prefix.lon from a flattened row.
// Missing or malformed coordinates yield nil.
func PointFromRow(r record.Row, prefix string) *geom.Point {
	lat, ok := r.Float(prefix + ".lat")
	if !ok {
		return nil
	}
	lon, ok := r.Float(prefix + ".lon")
	if !ok {
		return nil
	}
	return NewPoint(lat, lon)
}

func validCoord(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
