package record

import (
	"sort"
	"strconv"
	"strings"
)

// Journey is one commuting pattern of a journey-schema row: a number of
// days per week and the distinct modes combined on that trip.
type Journey struct {
	Index int
	Days  int
	Modes []string
}

// HasMode reports whether m is one of the journey's modes.
func (j Journey) HasMode(m string) bool {
	for _, x := range j.Modes {
		if x == m {
			return true
		}
	}
	return false
}

// Intermodal reports whether the journey combines more than one mode,
// ignoring walking legs.
func (j Journey) Intermodal() bool {
	n := 0
	for _, m := range j.Modes {
		if m != "walking" {
			n++
		}
	}
	return n > 1
}

// ProJourney is one professional trip pattern: a number of trips, a single
// mode and the hexagonal grid cell of the destination.
type ProJourney struct {
	Index int
	Days  int
	Mode  string
	HexID string
	Reco  string
}

// Journeys extracts the individual journeys of a row, ordered by index.
// Mode duplicates within a journey are removed.
func Journeys(r Row) []Journey {
	idx := indices(r, JourneysPrefix)
	out := make([]Journey, 0, len(idx))
	for _, i := range idx {
		base := JourneysPrefix + Sep + strconv.Itoa(i)
		j := Journey{Index: i, Days: r.Int(base + ".days")}

		modePrefix := base + ".modes" + Sep
		slots := indices(r, base+".modes")
		seen := map[string]bool{}
		for _, s := range slots {
			m := r.String(modePrefix + strconv.Itoa(s))
			if m == "" || seen[m] {
				continue
			}
			seen[m] = true
			j.Modes = append(j.Modes, m)
		}
		out = append(out, j)
	}
	return out
}

// ProJourneys extracts the professional journeys of a row, ordered by index.
// Each journey carries the recommendation issued for it, when present.
func ProJourneys(r Row) []ProJourney {
	idx := indices(r, ProJourneyPrefix)
	out := make([]ProJourney, 0, len(idx))
	for _, i := range idx {
		n := strconv.Itoa(i)
		base := ProJourneyPrefix + Sep + n
		out = append(out, ProJourney{
			Index: i,
			Days:  r.Int(base + ".days"),
			Mode:  r.String(base + ".mode"),
			HexID: r.String(base + ".hex_id"),
			Reco:  r.String(ProRecoPrefix + Sep + n),
		})
	}
	return out
}

// Prefixed returns the non-empty string values of every key under prefix,
// ordered by key.
func Prefixed(r Row, prefix string) []string {
	p := prefix + Sep
	var keys []string
	for k := range r {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		if v := r.String(k); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// indices collects the numeric path segments directly under prefix.
func indices(r Row, prefix string) []int {
	p := prefix + Sep
	set := map[int]bool{}
	for k := range r {
		if !strings.HasPrefix(k, p) {
			continue
		}
		rest := k[len(p):]
		if dot := strings.IndexByte(rest, '.'); dot >= 0 {
			rest = rest[:dot]
		}
		i, err := strconv.Atoi(rest)
		if err != nil || i < 0 {
			continue
		}
		set[i] = true
	}
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
