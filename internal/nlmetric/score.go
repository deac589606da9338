package nlmetric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Sign returns +1, -1 or 0 for x, and NaN for NaN.
func Sign(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return math.NaN()
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// Polarity returns the elementwise Sign of values as a new slice.
func Polarity(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = Sign(v)
	}
	return out
}

// Score computes the NL metric of model against observed.
//
// Both series are reduced to polarity. When the grids differ in length
// or endpoints, the observed values are first interpolated onto the
// model's timestamps (NaN outside its span) and then re-signed.
//
// The polarity product is +1 where both agree firmly, -1 where they
// disagree, 0 where either is exactly zero and NaN where either is
// missing. The score is the count of +1 entries over the count of
// non-NaN entries. With no comparable entry ErrScoreUndefined is
// returned.
func Score(model, observed Series) (Result, error) {
	if err := model.Validate(); err != nil {
		return Result{}, fmt.Errorf("model series: %w", err)
	}
	if err := observed.Validate(); err != nil {
		return Result{}, fmt.Errorf("observed series: %w", err)
	}

	obsValues := observed.Values
	if !sameGrid(model, observed) {
		var err error
		obsValues, err = Interpolate(observed.Times, observed.Values, model.Times, math.NaN())
		if err != nil {
			return Result{}, fmt.Errorf("align observed onto model grid: %w", err)
		}
	}

	product := Polarity(model.Values)
	floats.Mul(product, Polarity(obsValues))

	compared := floats.Count(func(v float64) bool { return !math.IsNaN(v) }, product)
	agreed := floats.Count(func(v float64) bool { return v == 1 }, product)
	if compared == 0 {
		return Result{}, ErrScoreUndefined
	}

	return Result{
		Score:    float64(agreed) / float64(compared),
		Compared: compared,
		Agreed:   agreed,
	}, nil
}

// sameGrid mirrors the alignment trigger: equal length and matching
// first and last timestamps.
func sameGrid(a, b Series) bool {
	if a.Len() != b.Len() {
		return false
	}
	if a.Len() == 0 {
		return true
	}
	return a.Times[0].Equal(b.Times[0]) && a.Times[a.Len()-1].Equal(b.Times[b.Len()-1])
}
