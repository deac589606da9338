package nlmetric

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// ReduceHourly bins irregular samples into one-hour windows and reduces
// each window to its NaN-ignoring median.
//
// Boundaries start at times[0] and step by one hour until one lies past
// the last sample, so every sample falls in exactly one half-open bin
// [b(k), b(k+1)). A boundary counts as "exceeded" once t >= b, not
// only once t > b, so a sample exactly on a boundary opens the next bin.
// A bin with no non-NaN value yields NaN. Output times are bin starts
// shifted by 30 minutes.
//
// times must be non-empty, ascending and the same length as values.
func ReduceHourly(times []time.Time, values []float64) (Series, error) {
	if len(times) != len(values) {
		return Series{}, fmt.Errorf("%w: %d times, %d values", ErrShapeMismatch, len(times), len(values))
	}
	if len(times) == 0 {
		return Series{}, fmt.Errorf("%w: no samples", ErrShapeMismatch)
	}
	for i := 1; i < len(times); i++ {
		if times[i].Before(times[i-1]) {
			return Series{}, fmt.Errorf("%w at index %d", ErrUnsorted, i)
		}
	}

	first := times[0]
	bins := int(times[len(times)-1].Sub(first)/time.Hour) + 1

	out := Series{
		Times:  make([]time.Time, bins),
		Values: make([]float64, bins),
	}

	lo := 0
	for k := 0; k < bins; k++ {
		upper := first.Add(time.Duration(k+1) * time.Hour)
		hi := lo + sort.Search(len(times)-lo, func(i int) bool {
			return !times[lo+i].Before(upper)
		})
		out.Times[k] = first.Add(time.Duration(k)*time.Hour + 30*time.Minute)
		out.Values[k] = nanMedian(values[lo:hi])
		lo = hi
	}
	return out, nil
}

// nanMedian is the median of the non-NaN entries of xs, NaN if none.
// Infinities are kept and order like any other value.
func nanMedian(xs []float64) float64 {
	valid := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			valid = append(valid, x)
		}
	}
	n := len(valid)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(valid)
	if n%2 == 1 {
		return valid[n/2]
	}
	return (valid[n/2-1] + valid[n/2]) / 2
}
