package nlmetric

import (
	"math"
	"time"

	"gonum.org/v1/gonum/interp"
)

// TimeGrid returns start, start+cadence, ... up to but excluding end.
func TimeGrid(start, end time.Time, cadence time.Duration) []time.Time {
	if cadence <= 0 || !end.After(start) {
		return nil
	}
	n := int((end.Sub(start) + cadence - 1) / cadence)
	out := make([]time.Time, 0, n)
	for t := start; t.Before(end); t = t.Add(cadence) {
		out = append(out, t)
	}
	return out
}

// HourlyGrid is the common grid both builders resample onto.
func HourlyGrid(iv Interval) []time.Time {
	return TimeGrid(iv.Start, iv.End, time.Hour)
}

// Wrap360 maps a longitude in degrees onto [0, 360).
func Wrap360(deg float64) float64 {
	w := math.Mod(deg, 360)
	if w < 0 {
		w += 360
	}
	if w >= 360 {
		w = 0
	}
	return w
}

// CircularDelta returns b - a folded into (-180, 180].
func CircularDelta(a, b float64) float64 {
	d := Wrap360(b - a)
	if d > 180 {
		d -= 360
	}
	return d
}

// unixSeconds converts times to float seconds for interpolation.
func unixSeconds(ts []time.Time) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = float64(t.UnixNano()) / 1e9
	}
	return out
}

// Interpolate linearly resamples (xs, ys) onto at. Points outside
// [xs[0], xs[len-1]] take fill. NaN neighbours propagate NaN.
func Interpolate(xs []time.Time, ys []float64, at []time.Time, fill float64) ([]float64, error) {
	if len(xs) != len(ys) {
		return nil, ErrShapeMismatch
	}
	out := make([]float64, len(at))
	switch len(xs) {
	case 0:
		for i := range out {
			out[i] = fill
		}
		return out, nil
	case 1:
		for i, t := range at {
			if t.Equal(xs[0]) {
				out[i] = ys[0]
			} else {
				out[i] = fill
			}
		}
		return out, nil
	}

	x := unixSeconds(xs)
	var pl interp.PiecewiseLinear
	if err := pl.Fit(x, ys); err != nil {
		return nil, ErrUnsorted
	}

	lo, hi := x[0], x[len(x)-1]
	for i, v := range unixSeconds(at) {
		if v < lo || v > hi {
			out[i] = fill
			continue
		}
		out[i] = pl.Predict(v)
	}
	return out, nil
}
