// Package nlmetric scores a modeled neutral line against in-situ polarity.
//
// The pipeline builds two hourly series over one Carrington rotation
// centered on a reference date:
//   - Observed: spacecraft radial field, reduced to hourly medians and
//     interpolated onto the rotation's hourly grid.
//   - Predicted: the spacecraft trajectory, ballistically projected down
//     to the model's source surface, sampled on the neutral line map.
//
// Score compares the signs of the two series. Telemetry, ephemeris, map
// sampling and persistence are collaborators behind small interfaces; the
// concrete adapters live in sibling packages.
package nlmetric

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrIntervalNotFound means the dense search window did not contain
	// a pair of antipode crossings bracketing the reference time.
	ErrIntervalNotFound = errors.New("rotation interval not found")

	// ErrProjection means a radial speed was missing or non-positive.
	ErrProjection = errors.New("ballistic projection failed")

	// ErrScoreUndefined means no entry could be compared.
	ErrScoreUndefined = errors.New("score undefined: no comparable points")

	// ErrShapeMismatch is a violated length/shape precondition.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnsorted is a shape precondition: timestamps must ascend.
	ErrUnsorted = fmt.Errorf("%w: timestamps not ascending", ErrShapeMismatch)
)

// =============================================================================
// Data Model
// =============================================================================

// Body identifies an observer (spacecraft or Lagrange point).
type Body string

// Bodies with built-in conventions.
const (
	BodyEarth   Body = "earth"
	BodyL1      Body = "L1"
	BodyStereoA Body = "stereo-a"
	BodyStereoB Body = "stereo-b"
)

// Field names a telemetry quantity.
type Field string

const (
	FieldBr Field = "br" // radial magnetic field, nT
	FieldVr Field = "vr" // radial solar wind speed, km/s
)

// BodyProfile holds per-body data conventions.
type BodyProfile struct {
	// InvertRadial flips field and velocity signs. L1 monitors report in
	// GSE, whose X axis points sunward (opposite to RTN R).
	InvertRadial bool
}

// ProfileFor returns the conventions for body.
func ProfileFor(body Body) BodyProfile {
	switch body {
	case BodyL1:
		return BodyProfile{InvertRadial: true}
	default:
		return BodyProfile{}
	}
}

// Interval is one rotation period. Start is always before End.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Contains reports whether t lies in [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

func (iv Interval) String() string {
	return fmt.Sprintf("%s/%s", iv.Start.UTC().Format(time.RFC3339), iv.End.UTC().Format(time.RFC3339))
}

// Sample is one raw telemetry point. NaN marks a missing value.
type Sample struct {
	Time  time.Time
	Value float64
}

// Series is a time-ordered sequence of scalar values.
type Series struct {
	Times  []time.Time
	Values []float64
}

// Len returns the number of points.
func (s Series) Len() int {
	return len(s.Times)
}

// Validate checks equal lengths and strictly ascending times.
func (s Series) Validate() error {
	if len(s.Times) != len(s.Values) {
		return fmt.Errorf("%w: %d times, %d values", ErrShapeMismatch, len(s.Times), len(s.Values))
	}
	for i := 1; i < len(s.Times); i++ {
		if !s.Times[i].After(s.Times[i-1]) {
			return fmt.Errorf("%w at index %d", ErrUnsorted, i)
		}
	}
	return nil
}

// Position is a body location in the Carrington (corotating) frame.
type Position struct {
	Time   time.Time
	Lon    float64 // degrees, [0, 360)
	Lat    float64 // degrees
	Radius float64 // solar radii
}

// Trajectory is a time-ordered list of positions.
type Trajectory []Position

// Coordinates returns the (lon, lat) pairs for map sampling.
func (tr Trajectory) Coordinates() []Coordinate {
	out := make([]Coordinate, len(tr))
	for i, p := range tr {
		out[i] = Coordinate{Lon: p.Lon, Lat: p.Lat}
	}
	return out
}

// Coordinate is a point on the model's source surface.
type Coordinate struct {
	Lon float64
	Lat float64
}

// Result is a score with the counts behind it. Scores are only
// comparable between runs with similar Compared counts.
type Result struct {
	Body      Body
	Reference time.Time
	Interval  Interval
	Score     float64
	Compared  int
	Agreed    int
}

// =============================================================================
// Collaborators
// =============================================================================

// Telemetry returns raw samples of field for body inside iv. Missing
// values come back as NaN; the time axis is never dropped.
type Telemetry interface {
	Fetch(ctx context.Context, iv Interval, body Body, field Field) ([]Sample, error)
}

// Ephemeris returns Carrington-frame positions of body at each time.
type Ephemeris interface {
	Position(ctx context.Context, times []time.Time, body Body) (Trajectory, error)
}

// NeutralLineMap samples a model map at source-surface coordinates.
type NeutralLineMap interface {
	Sample(coords []Coordinate) ([]float64, error)
}

// SeriesKind labels a persisted series.
type SeriesKind string

const (
	KindObserved  SeriesKind = "observed"
	KindPredicted SeriesKind = "predicted"
	KindVelocity  SeriesKind = "velocity"
)

// SeriesRecord is what builders hand to a Sink.
type SeriesRecord struct {
	Body      Body
	Kind      SeriesKind
	Reference time.Time
	Series    Series
}

// Sink persists built series. Builders never fail on sink errors.
type Sink interface {
	Save(ctx context.Context, rec SeriesRecord) error
}
