package stats

import (
	"cmp"
	"slices"
	"strings"

	"github.com/sells-group/mobility-stats/internal/model"
	"github.com/sells-group/mobility-stats/internal/record"
)

type edge struct{ source, target string }

type edgeCounter map[edge]int

func (c edgeCounter) inc(source, target string) {
	if source == "" || target == "" {
		return
	}
	c[edge{source, target}]++
}

func (c edgeCounter) links(total int) model.Links {
	data := make([]model.Link, 0, len(c))
	for k, v := range c {
		data = append(data, model.Link{Source: k.source, Target: k.target, Value: v})
	}
	return model.Links{Total: total, Data: data}
}

// ModeRecoLinks counts, for each used commuting mode, the recommendations
// issued to its users. Legacy rows link every mode with positive usage;
// journey rows link every distinct mode of journeys with positive days.
func (e *Engine) ModeRecoLinks(parts record.Partitioned) model.Links {
	legacy := edgeCounter{}
	for _, r := range parts.Legacy {
		reco := r.String(record.RecoField)
		for _, m := range e.p.Modes {
			if r.Int(legacyModePrefix+m) > 0 {
				legacy.inc(m, reco)
			}
		}
	}

	journey := edgeCounter{}
	for _, r := range parts.Journey {
		reco := r.String(record.RecoField)
		for _, j := range record.Journeys(r) {
			if j.Days <= 0 {
				continue
			}
			for _, m := range j.Modes {
				journey.inc(m, reco)
			}
		}
	}

	merged := MergeLinks(legacy.links(len(parts.Legacy)), journey.links(len(parts.Journey)))
	sortLinks(merged.Data, rank(e.p.Modes))
	return merged
}

// ProModeRecoLinks counts, for each professional travel mode, the
// recommendations issued for it. Legacy rows use the recommendation of
// the column's area; journey rows use the journey's own recommendation.
func (e *Engine) ProModeRecoLinks(parts record.Partitioned) model.Links {
	legacy := edgeCounter{}
	for _, r := range parts.Legacy {
		for _, f := range e.p.LegacyProFields {
			area, mode, ok := strings.Cut(f, "_")
			if !ok || r.Int(legacyProModePrefix+f) <= 0 {
				continue
			}
			col, ok := LegacyProRecoFields[area]
			if !ok {
				continue
			}
			legacy.inc(mode, r.String(col))
		}
	}

	journey := edgeCounter{}
	for _, r := range parts.Journey {
		for _, j := range record.ProJourneys(r) {
			if j.Days > 0 {
				journey.inc(j.Mode, j.Reco)
			}
		}
	}

	merged := MergeLinks(legacy.links(len(parts.Legacy)), journey.links(len(parts.Journey)))
	sortLinks(merged.Data, rank(e.p.ProModes))
	return merged
}

// MergeLinks combines edge tables computed from disjoint row subsets.
// Matching (source, target) edges add up, as do totals. Edges are ordered
// by source then target, so the merge is commutative.
func MergeLinks(a, b model.Links) model.Links {
	c := edgeCounter{}
	for _, src := range []model.Links{a, b} {
		for _, l := range src.Data {
			c[edge{l.Source, l.Target}] += l.Value
		}
	}
	out := c.links(a.Total + b.Total)
	sortLinks(out.Data, cmp.Compare[string])
	return out
}

func sortLinks(data []model.Link, sourceOrder func(a, b string) int) {
	slices.SortFunc(data, func(x, y model.Link) int {
		if c := sourceOrder(x.Source, y.Source); c != 0 {
			return c
		}
		return cmp.Compare(x.Target, y.Target)
	})
}
