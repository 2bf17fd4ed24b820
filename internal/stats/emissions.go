package stats

import (
	"cmp"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/sells-group/mobility-stats/internal/geo"
	"github.com/sells-group/mobility-stats/internal/model"
	"github.com/sells-group/mobility-stats/internal/record"
)

// share is the part of a trip attributed to one mode.
type share struct {
	mode   string
	weight float64
}

// trip is one emitting unit: a legacy (row, mode) usage, a commuting
// journey or a professional journey.
type trip struct {
	km       float64 // one-way distance
	journeys float64 // one-way trips per year
	shares   []share
	reco     string // normalized recommendation
	legacy   bool
}

// factorTable looks up emission factors and warns once per unknown mode.
type factorTable struct {
	p      Params
	log    *zap.Logger
	warned map[string]bool
}

func (e *Engine) factors(aggregator string) *factorTable {
	return &factorTable{
		p:      e.p,
		log:    e.log.With(zap.String("aggregator", aggregator)),
		warned: map[string]bool{},
	}
}

func (ft *factorTable) get(mode string) (float64, bool) {
	f, ok := ft.p.Factor(mode)
	if !ok && !ft.warned[mode] {
		ft.warned[mode] = true
		ft.log.Warn("stats: unknown emission factor, mode skipped", zap.String("mode", mode))
	}
	return f, ok
}

// kg returns the emissions of n one-way trips of km kilometers.
func kg(km, n, gPerKM float64) float64 {
	return km * n * gPerKM / 1000
}

// journeyShares splits a journey between its modes. When train is
// combined with other modes it carries TrainShare and the others split
// the rest equally; otherwise all modes share equally.
func journeyShares(j record.Journey, trainShare float64) []share {
	modes := j.Modes
	if len(modes) == 0 {
		return nil
	}
	out := make([]share, 0, len(modes))
	if len(modes) > 1 && j.HasMode("train") {
		rest := (1 - trainShare) / float64(len(modes)-1)
		for _, m := range modes {
			w := rest
			if m == "train" {
				w = trainShare
			}
			out = append(out, share{mode: m, weight: w})
		}
		return out
	}
	w := 1 / float64(len(modes))
	for _, m := range modes {
		out = append(out, share{mode: m, weight: w})
	}
	return out
}

// commuteTrips expands the individual commute of each row. Usage that is
// missing or not positive yields no trip.
func (e *Engine) commuteTrips(parts record.Partitioned) (legacy, journey []trip) {
	for _, r := range parts.Legacy {
		km := e.commuteKM(r)
		reco := e.p.Normalize(r.String(record.RecoField))
		for _, m := range e.p.Modes {
			usage, ok := r.Float(legacyModePrefix + m)
			if !ok || usage <= 0 {
				continue
			}
			legacy = append(legacy, trip{
				km:       km,
				journeys: e.p.annualJourneys(usage),
				shares:   []share{{mode: m, weight: 1}},
				reco:     reco,
				legacy:   true,
			})
		}
	}
	for _, r := range parts.Journey {
		km := e.commuteKM(r)
		reco := e.p.Normalize(r.String(record.RecoField))
		for _, j := range record.Journeys(r) {
			if j.Days <= 0 || len(j.Modes) == 0 {
				continue
			}
			journey = append(journey, trip{
				km:       km,
				journeys: e.p.annualJourneys(float64(j.Days)),
				shares:   journeyShares(j, e.p.TrainShare),
				reco:     reco,
			})
		}
	}
	return legacy, journey
}

// proTrips expands the professional journeys of journey-schema rows. The
// distance runs from the workplace to the destination cell.
func (e *Engine) proTrips(t record.Table) []trip {
	var out []trip
	for _, r := range t {
		work := geo.PointFromRow(r, record.WorkplacePrefix)
		for _, j := range record.ProJourneys(r) {
			if j.Days <= 0 || !slices.Contains(e.p.ProModes, j.Mode) {
				continue
			}
			out = append(out, trip{
				km:       e.p.Estimator.ToCell(work, j.HexID, j.Mode),
				journeys: float64(j.Days) * e.p.RoundTrip,
				shares:   []share{{mode: j.Mode, weight: 1}},
				reco:     e.p.Normalize(j.Reco),
			})
		}
	}
	return out
}

func (e *Engine) commuteKM(r record.Row) float64 {
	return e.p.Estimator.Between(
		geo.PointFromRow(r, record.OriginPrefix),
		geo.PointFromRow(r, record.WorkplacePrefix),
	)
}

// distance is the trip's contribution to Emissions.Distances: the one-way
// distance for legacy usage, the full yearly distance otherwise. Shares do
// not scale it.
func (tr trip) distance() float64 {
	if tr.legacy {
		return tr.km
	}
	return tr.km * tr.journeys
}

// emissionsAcc accumulates emissions by mode.
type emissionsAcc struct {
	ft    *factorTable
	byKey map[string]*emissionsSum
}

type emissionsSum struct {
	km, journeys, kg float64
}

func newEmissionsAcc(ft *factorTable) *emissionsAcc {
	return &emissionsAcc{ft: ft, byKey: map[string]*emissionsSum{}}
}

// add attributes weight of trip tr to mode. Contributions without positive
// emissions are ignored.
func (a *emissionsAcc) add(mode string, weight float64, tr trip) {
	if mode == "" {
		return
	}
	f, ok := a.ft.get(mode)
	if !ok {
		return
	}
	co2 := weight * kg(tr.km, tr.journeys, f)
	if co2 <= 0 {
		return
	}
	s, ok := a.byKey[mode]
	if !ok {
		s = &emissionsSum{}
		a.byKey[mode] = s
	}
	s.km += tr.distance()
	s.journeys += tr.journeys
	s.kg += co2
}

func (a *emissionsAcc) addTrips(trips []trip, applyReco bool) {
	for _, tr := range trips {
		if applyReco {
			a.add(tr.reco, 1, tr)
			continue
		}
		for _, s := range tr.shares {
			a.add(s.mode, s.weight, tr)
		}
	}
}

func (a *emissionsAcc) result(total int) []model.Emissions {
	out := make([]model.Emissions, 0, len(a.byKey))
	for mode, s := range a.byKey {
		out = append(out, model.Emissions{
			Mode:      mode,
			Total:     total,
			Distances: s.km,
			Journeys:  int(math.Round(s.journeys)),
			Emissions: s.kg,
		})
	}
	return out
}

// ModeEmissions estimates the yearly commuting emissions per mode. With
// applyReco, each trip is regrouped under the row's recommended mode as if
// the recommendation had been followed.
func (e *Engine) ModeEmissions(parts record.Partitioned, applyReco bool) []model.Emissions {
	name := "mode_emissions"
	if applyReco {
		name = "reco_mode_emissions"
	}
	ft := e.factors(name)
	legacy, journey := e.commuteTrips(parts)

	la := newEmissionsAcc(ft)
	la.addTrips(legacy, applyReco)
	ja := newEmissionsAcc(ft)
	ja.addTrips(journey, applyReco)

	merged := MergeEmissions(la.result(len(parts.Legacy)), ja.result(len(parts.Journey)))
	return finalizeEmissions(merged, len(parts.All), rank(e.p.Modes))
}

// ProModeEmissions estimates the yearly professional travel emissions per
// mode. Only journey-schema rows carry destinations. With applyReco, each
// journey is regrouped under its own recommendation.
func (e *Engine) ProModeEmissions(parts record.Partitioned, applyReco bool) []model.Emissions {
	name := "pro_mode_emissions"
	if applyReco {
		name = "reco_pro_mode_emissions"
	}
	acc := newEmissionsAcc(e.factors(name))
	acc.addTrips(e.proTrips(parts.Journey), applyReco)
	return finalizeEmissions(acc.result(len(parts.Journey)), len(parts.Journey), rank(e.p.ProModes))
}

// ModeEmissionReductions sums, per actual mode, the emissions avoided by
// switching each trip share to the recommended mode. Shares that would
// emit more under the recommendation are not counted.
func (e *Engine) ModeEmissionReductions(parts record.Partitioned) []model.EmissionReductions {
	ft := e.factors("mode_emission_reductions")
	legacy, journey := e.commuteTrips(parts)

	reduce := func(trips []trip, total int) []model.EmissionReductions {
		byMode := map[string]float64{}
		for _, tr := range trips {
			if tr.reco == "" {
				continue
			}
			recoF, ok := ft.get(tr.reco)
			if !ok {
				continue
			}
			for _, s := range tr.shares {
				f, ok := ft.get(s.mode)
				if !ok {
					continue
				}
				delta := s.weight * (kg(tr.km, tr.journeys, f) - kg(tr.km, tr.journeys, recoF))
				if delta > 0 {
					byMode[s.mode] += delta
				}
			}
		}
		out := make([]model.EmissionReductions, 0, len(byMode))
		for m, v := range byMode {
			out = append(out, model.EmissionReductions{Mode: m, Total: total, Reduced: v})
		}
		return out
	}

	merged := MergeReductions(reduce(legacy, len(parts.Legacy)), reduce(journey, len(parts.Journey)))

	order := rank(e.p.Modes)
	out := make([]model.EmissionReductions, 0, len(merged))
	for _, r := range merged {
		r.Total = len(parts.All)
		r.Reduced = round3(r.Reduced)
		if r.Reduced > 0 {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b model.EmissionReductions) int {
		return order(a.Mode, b.Mode)
	})
	return out
}

// finalizeEmissions sets the row total, rounds to 3 decimals, drops modes
// without emissions and orders the rest.
func finalizeEmissions(es []model.Emissions, total int, order func(a, b string) int) []model.Emissions {
	out := make([]model.Emissions, 0, len(es))
	for _, em := range es {
		em.Total = total
		em.Distances = round3(em.Distances)
		em.Emissions = round3(em.Emissions)
		if em.Emissions > 0 {
			out = append(out, em)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Emissions) int {
		return order(a.Mode, b.Mode)
	})
	return out
}

// MergeEmissions combines per-mode emissions computed from disjoint row
// subsets. All numeric fields add up. The result is ordered by mode, so
// the merge is commutative.
func MergeEmissions(a, b []model.Emissions) []model.Emissions {
	byMode := map[string]model.Emissions{}
	for _, src := range [][]model.Emissions{a, b} {
		for _, em := range src {
			acc, ok := byMode[em.Mode]
			if !ok {
				byMode[em.Mode] = em
				continue
			}
			acc.Total += em.Total
			acc.Distances += em.Distances
			acc.Journeys += em.Journeys
			acc.Emissions += em.Emissions
			byMode[em.Mode] = acc
		}
	}
	out := make([]model.Emissions, 0, len(byMode))
	for _, em := range byMode {
		out = append(out, em)
	}
	slices.SortFunc(out, func(x, y model.Emissions) int { return cmp.Compare(x.Mode, y.Mode) })
	return out
}

// MergeReductions combines per-mode reductions computed from disjoint row
// subsets, ordered by mode.
func MergeReductions(a, b []model.EmissionReductions) []model.EmissionReductions {
	byMode := map[string]model.EmissionReductions{}
	for _, src := range [][]model.EmissionReductions{a, b} {
		for _, r := range src {
			acc, ok := byMode[r.Mode]
			if !ok {
				byMode[r.Mode] = r
				continue
			}
			acc.Total += r.Total
			acc.Reduced += r.Reduced
			byMode[r.Mode] = acc
		}
	}
	out := make([]model.EmissionReductions, 0, len(byMode))
	for _, r := range byMode {
		out = append(out, r)
	}
	slices.SortFunc(out, func(x, y model.EmissionReductions) int { return cmp.Compare(x.Mode, y.Mode) })
	return out
}

func round3(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Round(f*1000) / 1000
}
