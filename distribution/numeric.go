package distribution

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

const (
	// maxDiscreteValues is the largest distinct count that still gets one
	// bin per value.
	maxDiscreteValues = 20

	maxBins = 20
	minBins = 2
)

// ErrNonFinite is returned for NaN or infinite values in a numeric column.
var ErrNonFinite = errors.New("non-finite numeric value")

// toFloats coerces non-null numeric values to float64.
func toFloats(values []interface{}) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		f, ok := toFloat64(v)
		if !ok {
			return nil, fmt.Errorf("cannot use %T as a number", v)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %v", ErrNonFinite, f)
		}
		out[i] = f
	}
	return out, nil
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

// binNumeric builds the histogram for finite values. It returns nil when
// there is nothing to bin.
func binNumeric(values []float64) (*Distribution, error) {
	if len(values) == 0 {
		return nil, nil
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	distinct := uniqueSorted(sorted)

	switch u := len(distinct); {
	case u == 0:
		return nil, nil
	case u == 1:
		return &Distribution{
			Type:   Numeric,
			Labels: []interface{}{formatLabel(distinct[0])},
			Counts: []int{len(sorted)},
			Edges:  []float64{distinct[0], distinct[0]},
		}, nil
	case u <= maxDiscreteValues:
		return binDiscrete(sorted, distinct), nil
	default:
		return binContinuous(sorted)
	}
}

// binDiscrete gives every distinct value its own bin. Edges sit halfway
// between neighbours; the outer edges extend by half the mean gap.
func binDiscrete(sorted, distinct []float64) *Distribution {
	u := len(distinct)
	halfGap := (distinct[u-1] - distinct[0]) / float64(u-1) / 2

	edges := make([]float64, u+1)
	edges[0] = distinct[0] - halfGap
	for i := 1; i < u; i++ {
		edges[i] = distinct[i-1] + (distinct[i]-distinct[i-1])/2
	}
	edges[u] = distinct[u-1] + halfGap

	// Values are matched to their distinct value rather than searched
	// against the midpoints, which can collapse onto a neighbour when two
	// values are one ulp apart.
	counts := make([]int, u)
	k := 0
	for _, v := range sorted {
		for distinct[k] != v {
			k++
		}
		counts[k]++
	}

	labels := make([]interface{}, u)
	for i, v := range distinct {
		labels[i] = formatLabel(v)
	}

	return &Distribution{
		Type:   Numeric,
		Labels: labels,
		Counts: counts,
		Edges:  edges,
	}
}

// binContinuous partitions [min, max] into equal-width bins. A range too
// wide to represent as a float64 is an error.
func binContinuous(sorted []float64) (*Distribution, error) {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if math.IsInf(hi-lo, 0) {
		return nil, fmt.Errorf("%w: range %g..%g overflows", ErrNonFinite, lo, hi)
	}
	bins := binCount(sorted)

	edges := make([]float64, bins+1)
	step := (hi - lo) / float64(bins)
	if math.IsInf(step, 0) || math.IsNaN(step) {
		return nil, fmt.Errorf("%w: bin width for range %g..%g", ErrNonFinite, lo, hi)
	}
	for i := range edges {
		edges[i] = lo + float64(i)*step
	}
	edges[bins] = hi

	counts := histogram(sorted, edges)

	labels := make([]interface{}, bins)
	for i := 0; i < bins; i++ {
		labels[i] = formatLabel(edges[i])
	}

	return mergeEqualLabels(&Distribution{
		Type:   Numeric,
		Labels: labels,
		Counts: counts,
		Edges:  edges,
	}), nil
}

// binCount picks the number of bins from the interquartile range.
func binCount(sorted []float64) int {
	iqr := quantile(sorted, 0.75) - quantile(sorted, 0.25)
	if iqr <= 0 {
		return maxBins
	}

	width := 2 * iqr * math.Pow(float64(len(sorted)), -1.0/3.0)
	n := math.Ceil((sorted[len(sorted)-1] - sorted[0]) / width)

	switch {
	case math.IsNaN(n) || n > maxBins:
		return maxBins
	case n < minBins:
		return minBins
	default:
		return int(n)
	}
}

// quantile returns the q-th quantile of sorted values using linear
// interpolation between the closest ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// histogram counts values per bin. Bins are [edge_i, edge_i+1) except the
// last, which also holds the upper edge.
func histogram(values, edges []float64) []int {
	last := len(edges) - 2
	counts := make([]int, last+1)
	for _, v := range values {
		i := sort.Search(len(edges), func(i int) bool { return edges[i] > v }) - 1
		if i < 0 {
			i = 0
		}
		if i > last {
			i = last
		}
		counts[i]++
	}
	return counts
}

// mergeEqualLabels folds adjacent bins whose rounded labels coincide so
// labels stay strictly ascending.
func mergeEqualLabels(d *Distribution) *Distribution {
	labels := make([]interface{}, 0, len(d.Labels))
	counts := make([]int, 0, len(d.Counts))
	edges := []float64{d.Edges[0]}

	for i, label := range d.Labels {
		if n := len(labels); n > 0 && labels[n-1] == label {
			counts[n-1] += d.Counts[i]
			edges[n] = d.Edges[i+1]
			continue
		}
		labels = append(labels, label)
		counts = append(counts, d.Counts[i])
		edges = append(edges, d.Edges[i+1])
	}

	d.Labels, d.Counts, d.Edges = labels, counts, edges
	return d
}

func uniqueSorted(sorted []float64) []float64 {
	out := make([]float64, 0, len(sorted))
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// formatLabel renders a numeric label as a rounded integer.
func formatLabel(v float64) string {
	r := math.Round(v)
	if r == 0 {
		r = 0 // drop the sign of -0
	}
	return strconv.FormatFloat(r, 'f', 0, 64)
}
