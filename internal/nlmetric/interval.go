package nlmetric

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	// SearchHalfWindow bounds the crossing search on each side of the
	// reference time. Wide enough for one synodic rotation (~27.3 d) of
	// any near-1 AU observer.
	SearchHalfWindow = 30 * 24 * time.Hour

	// SearchCadence is the sampling step of the crossing search, and so
	// the resolution of the resolved interval edges.
	SearchCadence = 6 * time.Hour
)

// ResolveInterval finds the Carrington rotation centered on ref as seen
// from body: the interval between the two moments body passes the
// longitude antipodal to its own longitude at ref.
//
// The search samples body every SearchCadence over ref±SearchHalfWindow.
// The circular offset from the antipode, kept in [0, 360), jumps by more
// than 180 degrees exactly where the trajectory crosses the antipode.
// The interval runs from the last crossing at or before ref to the first
// crossing after it. If either is missing, ErrIntervalNotFound is
// returned; the caller decides whether to widen the search.
func ResolveInterval(ctx context.Context, eph Ephemeris, ref time.Time, body Body) (Interval, error) {
	ref = ref.UTC()

	inst, err := eph.Position(ctx, []time.Time{ref}, body)
	if err != nil {
		return Interval{}, fmt.Errorf("position of %s at %s: %w", body, ref.Format(time.RFC3339), err)
	}
	if len(inst) != 1 {
		return Interval{}, fmt.Errorf("%w: ephemeris returned %d positions for 1 time", ErrShapeMismatch, len(inst))
	}
	antipode := Wrap360(inst[0].Lon + 180)

	window := TimeGrid(ref.Add(-SearchHalfWindow), ref.Add(SearchHalfWindow), SearchCadence)
	traj, err := eph.Position(ctx, window, body)
	if err != nil {
		return Interval{}, fmt.Errorf("search trajectory of %s: %w", body, err)
	}
	if len(traj) != len(window) {
		return Interval{}, fmt.Errorf("%w: ephemeris returned %d positions for %d times", ErrShapeMismatch, len(traj), len(window))
	}

	crossings := antipodeCrossings(traj, antipode)

	var start, end time.Time
	for _, i := range crossings {
		t := window[i]
		if !t.After(ref) {
			start = t
		} else if end.IsZero() {
			end = t
		}
	}

	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: %s around %s (%d crossings in ±%s)",
			ErrIntervalNotFound, body, ref.Format(time.RFC3339), len(crossings), SearchHalfWindow)
	}
	return Interval{Start: start, End: end}, nil
}

// antipodeCrossings returns the indices i where the offset from antipode
// wrapped between sample i-1 and sample i.
func antipodeCrossings(traj Trajectory, antipode float64) []int {
	var idx []int
	prev := math.NaN()
	for i, p := range traj {
		off := Wrap360(p.Lon - antipode)
		if i > 0 && math.Abs(off-prev) > 180 {
			idx = append(idx, i)
		}
		prev = off
	}
	return idx
}
