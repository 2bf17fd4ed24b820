package stats

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/sells-group/mobility-stats/internal/model"
)

// histogram counts occurrences of string values. Weighted histograms also
// track a per-bin sum of integer weights.
type histogram struct {
	weighted bool
	counts   map[string]int
	sums     map[string]int
}

func newHistogram(weighted bool) *histogram {
	return &histogram{
		weighted: weighted,
		counts:   map[string]int{},
		sums:     map[string]int{},
	}
}

func (h *histogram) add(value string, weight int) {
	h.counts[value]++
	if h.weighted {
		h.sums[value] += weight
	}
}

// addN adds one occurrence of the integer n, weighted by n.
func (h *histogram) addN(n int) {
	h.add(strconv.Itoa(n), n)
}

func (h *histogram) empty() bool {
	return len(h.counts) == 0
}

func (h *histogram) frequencies(field string, total int) model.Frequencies {
	data := make([]model.Frequency, 0, len(h.counts))
	for v, c := range h.counts {
		f := model.Frequency{Value: v, Count: c}
		if h.weighted {
			s := h.sums[v]
			f.Sum = &s
		}
		data = append(data, f)
	}
	return model.Frequencies{Field: field, Total: total, Data: data}
}

// sortByCount orders bins by count descending, then value ascending.
func sortByCount(data []model.Frequency) {
	slices.SortFunc(data, func(a, b model.Frequency) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
}

// sortByValue orders bins numerically; non-numeric values sort last,
// lexicographically.
func sortByValue(data []model.Frequency) {
	slices.SortFunc(data, func(a, b model.Frequency) int {
		return compareNumeric(a.Value, b.Value)
	})
}

func compareNumeric(a, b string) int {
	x, errA := strconv.ParseFloat(a, 64)
	y, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		if c := cmp.Compare(x, y); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}

// rank orders keys by their position in list; keys missing from list come
// after, alphabetically.
func rank(list []string) func(a, b string) int {
	pos := make(map[string]int, len(list))
	for i, k := range list {
		if _, ok := pos[k]; !ok {
			pos[k] = i
		}
	}
	return func(a, b string) int {
		pa, okA := pos[a]
		pb, okB := pos[b]
		switch {
		case okA && okB:
			return cmp.Compare(pa, pb)
		case okA:
			return -1
		case okB:
			return 1
		default:
			return cmp.Compare(a, b)
		}
	}
}
