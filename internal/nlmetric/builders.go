package nlmetric

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// BuildOptions configures the observed series.
type BuildOptions struct {
	// Magnitude returns the field value (nT) instead of its sign.
	Magnitude bool
}

// PredictOptions configures the predicted series.
type PredictOptions struct {
	// Magnitude returns the sampled map value instead of its sign.
	Magnitude bool

	// ConstantSpeed skips velocity telemetry and projects every point at
	// NominalSpeed.
	ConstantSpeed bool

	// InnerAltitude is the map's reference sphere in solar radii.
	// Zero means DefaultInnerAltitude.
	InnerAltitude float64

	// NominalSpeed is used with ConstantSpeed. Zero means DefaultSpeed.
	NominalSpeed float64

	// FallbackSpeed fills grid points outside the measured velocity
	// span. Zero means DefaultSpeed.
	FallbackSpeed float64
}

func (o PredictOptions) withDefaults() PredictOptions {
	if o.InnerAltitude == 0 {
		o.InnerAltitude = DefaultInnerAltitude
	}
	if o.NominalSpeed == 0 {
		o.NominalSpeed = DefaultSpeed
	}
	if o.FallbackSpeed == 0 {
		o.FallbackSpeed = DefaultSpeed
	}
	return o
}

// Prediction is the predicted series plus the radial speed used at each
// grid point (km/s).
type Prediction struct {
	Series   Series
	Velocity []float64
}

// save hands rec to sink without letting a failure reach the caller.
func save(ctx context.Context, sink Sink, logger *slog.Logger, rec SeriesRecord) {
	if sink == nil {
		return
	}
	if err := sink.Save(ctx, rec); err != nil {
		logger.Warn("series not saved",
			"body", rec.Body,
			"kind", rec.Kind,
			"reference", rec.Reference.Format(time.RFC3339),
			"err", err,
		)
	}
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// hourlyTelemetry fetches field for body, reduces it to hourly medians
// and applies the body's sign convention. No samples gives an empty
// series, which interpolates to all-missing downstream.
func hourlyTelemetry(ctx context.Context, src Telemetry, iv Interval, body Body, field Field) (Series, error) {
	samples, err := src.Fetch(ctx, iv, body, field)
	if err != nil {
		return Series{}, fmt.Errorf("fetch %s for %s: %w", field, body, err)
	}
	if len(samples) == 0 {
		return Series{}, nil
	}
	times := make([]time.Time, len(samples))
	values := make([]float64, len(samples))
	for i, s := range samples {
		times[i] = s.Time
		values[i] = s.Value
	}

	hourly, err := ReduceHourly(times, values)
	if err != nil {
		return Series{}, fmt.Errorf("reduce %s for %s: %w", field, body, err)
	}
	if ProfileFor(body).InvertRadial {
		for i := range hourly.Values {
			hourly.Values[i] = -hourly.Values[i]
		}
	}
	return hourly, nil
}

// =============================================================================
// Observed
// =============================================================================

// ObservedBuilder builds the measured polarity series.
type ObservedBuilder struct {
	Ephemeris Ephemeris
	Telemetry Telemetry
	Sink      Sink
	Logger    *slog.Logger
}

// Build resolves the rotation around ref and builds the observed series
// over it.
func (b *ObservedBuilder) Build(ctx context.Context, ref time.Time, body Body, opts BuildOptions) (Series, Interval, error) {
	iv, err := ResolveInterval(ctx, b.Ephemeris, ref, body)
	if err != nil {
		return Series{}, Interval{}, err
	}
	s, err := b.BuildFor(ctx, iv, ref, body, opts)
	return s, iv, err
}

// BuildFor builds the observed series on HourlyGrid(iv). Hours without
// data, or outside the span of the hourly medians, are NaN.
func (b *ObservedBuilder) BuildFor(ctx context.Context, iv Interval, ref time.Time, body Body, opts BuildOptions) (Series, error) {
	logger := orDefault(b.Logger)

	hourly, err := hourlyTelemetry(ctx, b.Telemetry, iv, body, FieldBr)
	if err != nil {
		return Series{}, err
	}

	grid := HourlyGrid(iv)
	values, err := Interpolate(hourly.Times, hourly.Values, grid, math.NaN())
	if err != nil {
		return Series{}, fmt.Errorf("interpolate observed %s: %w", body, err)
	}
	if !opts.Magnitude {
		values = Polarity(values)
	}

	out := Series{Times: grid, Values: values}
	logger.Debug("observed series built",
		"body", body,
		"interval", iv.String(),
		"hours", len(grid),
		"medians", hourly.Len(),
	)
	save(ctx, b.Sink, logger, SeriesRecord{Body: body, Kind: KindObserved, Reference: ref, Series: out})
	return out, nil
}

// =============================================================================
// Predicted
// =============================================================================

// PredictedBuilder builds the model polarity series along the
// ballistically projected trajectory.
type PredictedBuilder struct {
	Ephemeris Ephemeris
	Telemetry Telemetry // only used without ConstantSpeed
	Sink      Sink
	Logger    *slog.Logger
}

// Build resolves the rotation around ref and samples m over it.
func (b *PredictedBuilder) Build(ctx context.Context, ref time.Time, body Body, m NeutralLineMap, opts PredictOptions) (Prediction, Interval, error) {
	iv, err := ResolveInterval(ctx, b.Ephemeris, ref, body)
	if err != nil {
		return Prediction{}, Interval{}, err
	}
	p, err := b.BuildFor(ctx, iv, ref, body, m, opts)
	return p, iv, err
}

// BuildFor samples m along body's projected trajectory on HourlyGrid(iv).
func (b *PredictedBuilder) BuildFor(ctx context.Context, iv Interval, ref time.Time, body Body, m NeutralLineMap, opts PredictOptions) (Prediction, error) {
	logger := orDefault(b.Logger)
	opts = opts.withDefaults()
	grid := HourlyGrid(iv)

	var velocity []float64
	if !opts.ConstantSpeed {
		if b.Telemetry == nil {
			return Prediction{}, fmt.Errorf("%w: no velocity telemetry for %s", ErrProjection, body)
		}
		hourly, err := hourlyTelemetry(ctx, b.Telemetry, iv, body, FieldVr)
		if err != nil {
			return Prediction{}, err
		}
		velocity, err = VelocityOnGrid(hourly, grid, opts.FallbackSpeed)
		if err != nil {
			return Prediction{}, fmt.Errorf("velocity on grid for %s: %w", body, err)
		}
	}

	traj, err := b.Ephemeris.Position(ctx, grid, body)
	if err != nil {
		return Prediction{}, fmt.Errorf("trajectory of %s: %w", body, err)
	}
	if len(traj) != len(grid) {
		return Prediction{}, fmt.Errorf("%w: ephemeris returned %d positions for %d times", ErrShapeMismatch, len(traj), len(grid))
	}

	projected, err := Project(traj, ProjectOptions{
		InnerAltitude: opts.InnerAltitude,
		Velocity:      velocity,
		NominalSpeed:  opts.NominalSpeed,
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("project %s: %w", body, err)
	}

	values, err := m.Sample(projected.Coordinates())
	if err != nil {
		return Prediction{}, fmt.Errorf("sample map for %s: %w", body, err)
	}
	if len(values) != len(grid) {
		return Prediction{}, fmt.Errorf("%w: map returned %d values for %d points", ErrShapeMismatch, len(values), len(grid))
	}
	if !opts.Magnitude {
		values = Polarity(values)
	}

	if velocity == nil {
		velocity = make([]float64, len(grid))
		for i := range velocity {
			velocity[i] = opts.NominalSpeed
		}
	}

	out := Prediction{Series: Series{Times: grid, Values: values}, Velocity: velocity}
	logger.Debug("predicted series built",
		"body", body,
		"interval", iv.String(),
		"hours", len(grid),
		"constant_vr", opts.ConstantSpeed,
	)
	save(ctx, b.Sink, logger, SeriesRecord{Body: body, Kind: KindPredicted, Reference: ref, Series: out.Series})
	if !opts.ConstantSpeed {
		save(ctx, b.Sink, logger, SeriesRecord{Body: body, Kind: KindVelocity, Reference: ref, Series: Series{Times: grid, Values: velocity}})
	}
	return out, nil
}

// =============================================================================
// Pipeline
// =============================================================================

// Pipeline resolves the rotation once and scores both series on its grid.
type Pipeline struct {
	Ephemeris Ephemeris
	Telemetry Telemetry
	Sink      Sink
	Logger    *slog.Logger
}

// Run computes the NL metric of m for body around ref.
func (p *Pipeline) Run(ctx context.Context, ref time.Time, body Body, m NeutralLineMap, opts PredictOptions) (Result, error) {
	logger := orDefault(p.Logger)

	iv, err := ResolveInterval(ctx, p.Ephemeris, ref, body)
	if err != nil {
		return Result{}, err
	}
	logger.Info("rotation resolved",
		"body", body,
		"reference", ref.UTC().Format(time.RFC3339),
		"start", iv.Start.Format(time.RFC3339),
		"end", iv.End.Format(time.RFC3339),
		"days", iv.Duration().Hours()/24,
	)

	obs := &ObservedBuilder{Ephemeris: p.Ephemeris, Telemetry: p.Telemetry, Sink: p.Sink, Logger: logger}
	observed, err := obs.BuildFor(ctx, iv, ref, body, BuildOptions{Magnitude: opts.Magnitude})
	if err != nil {
		return Result{}, err
	}

	pred := &PredictedBuilder{Ephemeris: p.Ephemeris, Telemetry: p.Telemetry, Sink: p.Sink, Logger: logger}
	predicted, err := pred.BuildFor(ctx, iv, ref, body, m, opts)
	if err != nil {
		return Result{}, err
	}

	res, err := Score(predicted.Series, observed)
	if err != nil {
		return Result{}, fmt.Errorf("score %s around %s: %w", body, ref.UTC().Format(time.RFC3339), err)
	}
	res.Body = body
	res.Reference = ref.UTC()
	res.Interval = iv
	return res, nil
}
