package nlmetric

import (
	"context"
	"errors"
	"math"
	"time"
)

// driftEphemeris moves a body through Carrington longitude at a constant
// rate, crossing every longitude once per Period.
type driftEphemeris struct {
	Epoch  time.Time
	Lon0   float64
	Period time.Duration // sign sets direction; negative drifts westward
	Radius float64
	Lat    float64
	Err    error
}

func (e driftEphemeris) Position(_ context.Context, times []time.Time, _ Body) (Trajectory, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	out := make(Trajectory, len(times))
	for i, t := range times {
		lon := e.Lon0
		if e.Period != 0 {
			lon += 360 * t.Sub(e.Epoch).Hours() / e.Period.Hours()
		}
		out[i] = Position{Time: t, Lon: Wrap360(lon), Lat: e.Lat, Radius: e.Radius}
	}
	return out, nil
}

// earthLike is the 2020-06-01 fixture: westward drift with a 27d3h
// synodic period, so the antipode is crossed 325.5 h either side of the
// reference, between 6-hour samples.
func earthLike() driftEphemeris {
	return driftEphemeris{
		Epoch:  fixtureRef,
		Lon0:   100,
		Period: -(27*24 + 3) * time.Hour,
		Radius: 215,
	}
}

var fixtureRef = time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

// funcTelemetry emits one sample every Step across the requested
// interval, valued by the field's function.
type funcTelemetry struct {
	Step   time.Duration
	Fields map[Field]func(t time.Time) float64
	Err    error
	Calls  []Field
}

func (f *funcTelemetry) Fetch(_ context.Context, iv Interval, _ Body, field Field) ([]Sample, error) {
	f.Calls = append(f.Calls, field)
	if f.Err != nil {
		return nil, f.Err
	}
	fn, ok := f.Fields[field]
	if !ok {
		return nil, nil
	}
	var out []Sample
	for t := iv.Start; t.Before(iv.End); t = t.Add(f.Step) {
		out = append(out, Sample{Time: t, Value: fn(t)})
	}
	return out, nil
}

func constant(v float64) func(time.Time) float64 {
	return func(time.Time) float64 { return v }
}

// hemisphereMap is positive on the half of the map with lon < 180.
type hemisphereMap struct {
	Coords []Coordinate
}

func (m *hemisphereMap) Sample(coords []Coordinate) ([]float64, error) {
	m.Coords = coords
	out := make([]float64, len(coords))
	for i, c := range coords {
		if c.Lon < 180 {
			out[i] = 2.5
		} else {
			out[i] = -2.5
		}
	}
	return out, nil
}

type constMap float64

func (m constMap) Sample(coords []Coordinate) ([]float64, error) {
	out := make([]float64, len(coords))
	for i := range out {
		out[i] = float64(m)
	}
	return out, nil
}

type recordingSink struct {
	Records []SeriesRecord
	Err     error
}

func (s *recordingSink) Save(_ context.Context, rec SeriesRecord) error {
	s.Records = append(s.Records, rec)
	return s.Err
}

var errBoom = errors.New("boom")

func hourly(start time.Time, values ...float64) Series {
	s := Series{Times: make([]time.Time, len(values)), Values: values}
	for i := range values {
		s.Times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return s
}

var nan = math.NaN()
