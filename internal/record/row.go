// Package record holds the flattened tabular view of survey responses that
// the statistics engine consumes.
package record

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Row is one survey response flattened into dotted paths, for example
// "data.freq_mod_journeys.0.modes.0". Values are whatever the loader decoded:
// string, float64, int, bool or json.Number.
type Row map[string]any

// Table is an immutable snapshot of rows handed to one computation.
type Table []Row

// Has reports whether key holds a non-empty value. NaN and blank strings
// count as empty.
func (r Row) Has(key string) bool {
	v, ok := r[key]
	if !ok || v == nil {
		return false
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x) != ""
	case float64:
		return !math.IsNaN(x)
	case float32:
		return !math.IsNaN(float64(x))
	}
	return true
}

// String returns the value as a string. Whole floats are rendered without a
// fractional part so that 5.0 and "5" land in the same histogram bin.
func (r Row) String(key string) string {
	if !r.Has(key) {
		return ""
	}
	switch x := r[key].(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// Float returns the value as a float64. ok is false when the key is missing
// or the value is not numeric.
func (r Row) Float(key string) (float64, bool) {
	if !r.Has(key) {
		return 0, false
	}
	var f float64
	switch x := r[key].(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		v, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = v
	case string:
		v, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = v
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int returns the value truncated to an int, or 0 when it is missing or
// malformed.
func (r Row) Int(key string) int {
	f, ok := r.Float(key)
	if !ok {
		return 0
	}
	return int(f)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time parses the value as a timestamp. time.Time values pass through.
func (r Row) Time(key string) (time.Time, bool) {
	if t, ok := r[key].(time.Time); ok {
		return t, !t.IsZero()
	}
	s := r.String(key)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
