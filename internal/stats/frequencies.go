package stats

import (
	"slices"
	"strings"

	"github.com/sells-group/mobility-stats/internal/geo"
	"github.com/sells-group/mobility-stats/internal/model"
	"github.com/sells-group/mobility-stats/internal/record"
)

// Input columns read by the frequency aggregators.
const (
	EquipmentsPrefix  = "data.equipments"
	ConstraintsPrefix = "data.constraints"
	TravelTimeField   = "data.travel_time"

	legacyModePrefix    = "data.freq_mod_"
	legacyProModePrefix = "data.freq_mod_pro_"
)

// LegacyProRecoFields maps a legacy professional area to its
// recommendation column. Europe shares the regional recommendation.
var LegacyProRecoFields = map[string]string{
	"local":  "typo.reco_pro.reco_pro_loc",
	"region": "typo.reco_pro.reco_pro_reg",
	"europe": "typo.reco_pro.reco_pro_reg",
	"inter":  "typo.reco_pro.reco_pro_int",
}

var legacyProRecoColumns = []string{
	"typo.reco_pro.reco_pro_loc",
	"typo.reco_pro.reco_pro_reg",
	"typo.reco_pro.reco_pro_int",
}

// EquipmentFrequencies counts the equipments declared across all
// data.equipments.* slots.
func EquipmentFrequencies(t record.Table) model.Frequencies {
	return pooledFrequencies(t, "equipments", EquipmentsPrefix)
}

// ConstraintFrequencies counts the constraints declared across all
// data.constraints.* slots.
func ConstraintFrequencies(t record.Table) model.Frequencies {
	return pooledFrequencies(t, "constraints", ConstraintsPrefix)
}

// TravelTimeFrequencies counts the distinct travel times.
func TravelTimeFrequencies(t record.Table) model.Frequencies {
	return valueFrequencies(t, "travel_time", TravelTimeField)
}

// RecommendationFrequencies counts the primary recommendation codes.
func RecommendationFrequencies(t record.Table) model.Frequencies {
	return valueFrequencies(t, "reco_dt2", record.RecoField)
}

// ProRecommendationFrequencies counts professional recommendation codes,
// pooling the per-area legacy columns and the per-journey ones.
func ProRecommendationFrequencies(t record.Table) model.Frequencies {
	h := newHistogram(false)
	for _, r := range t {
		for _, col := range legacyProRecoColumns {
			if v := r.String(col); v != "" {
				h.add(v, 0)
			}
		}
		for _, v := range record.Prefixed(r, record.ProRecoPrefix) {
			h.add(v, 0)
		}
	}
	f := h.frequencies("reco_pros", len(t))
	sortByCount(f.Data)
	return f
}

func pooledFrequencies(t record.Table, field, prefix string) model.Frequencies {
	h := newHistogram(false)
	for _, r := range t {
		for _, v := range record.Prefixed(r, prefix) {
			h.add(v, 0)
		}
	}
	f := h.frequencies(field, len(t))
	sortByCount(f.Data)
	return f
}

func valueFrequencies(t record.Table, field, col string) model.Frequencies {
	h := newHistogram(false)
	for _, r := range t {
		if v := r.String(col); v != "" {
			h.add(v, 0)
		}
	}
	f := h.frequencies(field, len(t))
	sortByCount(f.Data)
	return f
}

// ModeFrequencies returns one weekly-usage histogram per individual mode.
// Legacy rows contribute their data.freq_mod_<mode> value; journey rows
// contribute each journey's days to every distinct mode it uses. Every
// mode is present, even without bins.
func (e *Engine) ModeFrequencies(parts record.Partitioned) []model.Frequencies {
	merged := MergeFrequencies(
		e.legacyModeFrequencies(parts.Legacy),
		e.journeyModeFrequencies(parts.Journey),
	)
	return finalizeFrequencies(merged, len(parts.All), rank(e.p.Modes), false)
}

func (e *Engine) legacyModeFrequencies(t record.Table) []model.Frequencies {
	out := make([]model.Frequencies, 0, len(e.p.Modes))
	for _, m := range e.p.Modes {
		h := newHistogram(true)
		col := legacyModePrefix + m
		for _, r := range t {
			if n := r.Int(col); n > 0 {
				h.addN(n)
			}
		}
		out = append(out, h.frequencies(m, len(t)))
	}
	return out
}

func (e *Engine) journeyModeFrequencies(t record.Table) []model.Frequencies {
	hs := make(map[string]*histogram, len(e.p.Modes))
	for _, m := range e.p.Modes {
		hs[m] = newHistogram(true)
	}
	for _, r := range t {
		for _, j := range record.Journeys(r) {
			if j.Days <= 0 {
				continue
			}
			for _, m := range j.Modes {
				if h, ok := hs[m]; ok {
					h.addN(j.Days)
				}
			}
		}
	}
	out := make([]model.Frequencies, 0, len(hs))
	for _, m := range e.p.Modes {
		out = append(out, hs[m].frequencies(m, len(t)))
	}
	return out
}

// ProModeFrequencies returns the professional trip histograms keyed
// "<area>_<mode>". Legacy monthly counts are annualized and their region
// area is reported as national. Journey rows are classified by the
// distance from the workplace to the destination cell. Fields without
// bins are dropped.
func (e *Engine) ProModeFrequencies(parts record.Partitioned) []model.Frequencies {
	merged := MergeFrequencies(
		e.legacyProModeFrequencies(parts.Legacy),
		e.journeyProModeFrequencies(parts.Journey),
	)
	return finalizeFrequencies(merged, len(parts.All), e.proFieldRank(), true)
}

func (e *Engine) legacyProModeFrequencies(t record.Table) []model.Frequencies {
	out := make([]model.Frequencies, 0, len(e.p.LegacyProFields))
	for _, f := range e.p.LegacyProFields {
		h := newHistogram(true)
		col := legacyProModePrefix + f
		for _, r := range t {
			if n := r.Int(col) * e.p.LegacyProScale; n > 0 {
				h.addN(n)
			}
		}
		out = append(out, h.frequencies(proFieldName(f), len(t)))
	}
	return out
}

func (e *Engine) journeyProModeFrequencies(t record.Table) []model.Frequencies {
	hs := map[string]*histogram{}
	for _, r := range t {
		work := geo.PointFromRow(r, record.WorkplacePrefix)
		for _, j := range record.ProJourneys(r) {
			if j.Days <= 0 || !slices.Contains(e.p.ProModes, j.Mode) {
				continue
			}
			km := e.p.Estimator.ToCell(work, j.HexID, j.Mode)
			field := e.p.Areas.Classify(km) + "_" + j.Mode
			h, ok := hs[field]
			if !ok {
				h = newHistogram(true)
				hs[field] = h
			}
			h.addN(j.Days)
		}
	}
	out := make([]model.Frequencies, 0, len(hs))
	for field, h := range hs {
		out = append(out, h.frequencies(field, len(t)))
	}
	return out
}

// finalizeFrequencies sets the row total, sorts bins numerically and
// orders fields.
func finalizeFrequencies(fs []model.Frequencies, total int, order func(a, b string) int, dropEmpty bool) []model.Frequencies {
	out := make([]model.Frequencies, 0, len(fs))
	for _, f := range fs {
		if dropEmpty && len(f.Data) == 0 {
			continue
		}
		f.Total = total
		sortByValue(f.Data)
		out = append(out, f)
	}
	slices.SortStableFunc(out, func(a, b model.Frequencies) int {
		return order(a.Field, b.Field)
	})
	return out
}

// proFieldRank orders "<area>_<mode>" fields by area distance, then by
// professional mode order.
func (e *Engine) proFieldRank() func(a, b string) int {
	var fields []string
	for _, area := range geo.Areas {
		for _, m := range e.p.ProModes {
			fields = append(fields, area+"_"+m)
		}
	}
	return rank(fields)
}

// proFieldName renames the legacy region area to national.
func proFieldName(legacy string) string {
	if rest, ok := strings.CutPrefix(legacy, "region_"); ok {
		return geo.AreaNational + "_" + rest
	}
	return legacy
}

// MergeFrequencies combines histograms computed from disjoint row subsets.
// Fields are matched by name and bins by value: counts, sums and totals
// add up. The result is ordered by field with bins sorted by value, so
// the merge is commutative.
func MergeFrequencies(a, b []model.Frequencies) []model.Frequencies {
	byField := map[string]*model.Frequencies{}
	var fields []string
	for _, src := range [][]model.Frequencies{a, b} {
		for _, f := range src {
			acc, ok := byField[f.Field]
			if !ok {
				acc = &model.Frequencies{Field: f.Field, Data: []model.Frequency{}}
				byField[f.Field] = acc
				fields = append(fields, f.Field)
			}
			acc.Total += f.Total
			acc.Data = mergeBins(acc.Data, f.Data)
		}
	}
	slices.Sort(fields)

	out := make([]model.Frequencies, 0, len(fields))
	for _, field := range fields {
		f := *byField[field]
		sortByValue(f.Data)
		out = append(out, f)
	}
	return out
}

func mergeBins(acc, add []model.Frequency) []model.Frequency {
	for _, b := range add {
		i := slices.IndexFunc(acc, func(x model.Frequency) bool { return x.Value == b.Value })
		if i < 0 {
			acc = append(acc, copyBin(b))
			continue
		}
		acc[i].Count += b.Count
		if b.Sum != nil {
			s := *b.Sum
			if acc[i].Sum != nil {
				s += *acc[i].Sum
			}
			acc[i].Sum = &s
		}
	}
	return acc
}

func copyBin(b model.Frequency) model.Frequency {
	if b.Sum != nil {
		s := *b.Sum
		b.Sum = &s
	}
	return b
}
