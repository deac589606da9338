package nlmetric

import (
	"fmt"
	"math"
	"time"
)

const (
	// SolarRadiusKm is the nominal solar radius.
	SolarRadiusKm = 695700.0

	// CarringtonPeriod is the sidereal rotation period defining the
	// Carrington frame: 25.38 days.
	CarringtonPeriod = 609*time.Hour + 7*time.Minute + 12*time.Second

	// DefaultInnerAltitude is the usual PFSS source-surface height in
	// solar radii.
	DefaultInnerAltitude = 2.5

	// DefaultSpeed is the radial speed in km/s used when no velocity is
	// measured, and for grid points outside the measured span.
	DefaultSpeed = 360.0
)

// carringtonRate is the frame rotation rate in degrees per second.
var carringtonRate = 360 / CarringtonPeriod.Seconds()

// ProjectOptions configures Project.
type ProjectOptions struct {
	// InnerAltitude is the model reference sphere, in solar radii.
	InnerAltitude float64

	// Velocity holds one radial speed (km/s) per trajectory point. When
	// nil, NominalSpeed is used for every point.
	Velocity []float64

	// NominalSpeed is the constant radial speed (km/s) used without a
	// velocity series.
	NominalSpeed float64
}

// TransitTime is how long plasma moving radially at speed km/s takes to
// go from the inner altitude to radius (both in solar radii).
func TransitTime(radius, inner, speed float64) (time.Duration, error) {
	secs, err := transitSeconds(radius, inner, speed)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func transitSeconds(radius, inner, speed float64) (float64, error) {
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed <= 0 {
		return 0, fmt.Errorf("%w: radial speed %v km/s", ErrProjection, speed)
	}
	secs := (radius - inner) * SolarRadiusKm / speed
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("%w: transit time from %v to %v Rs at %v km/s", ErrProjection, inner, radius, speed)
	}
	return secs, nil
}

// Project maps each trajectory point down to the inner reference sphere
// along a radial streamline.
//
// Plasma seen at radius r at time T left the inner sphere Δt earlier,
// with Δt = (r - inner) / v. The frame corotates with the Sun, so in
// that time the footpoint rotated Ω·Δt ahead of where the plasma now
// sits: the projected longitude is lon + Ω·Δt. Latitude is kept and the
// radius becomes the inner altitude. Times are unchanged.
func Project(traj Trajectory, opts ProjectOptions) (Trajectory, error) {
	if opts.Velocity != nil && len(opts.Velocity) != len(traj) {
		return nil, fmt.Errorf("%w: %d velocities for %d positions", ErrShapeMismatch, len(opts.Velocity), len(traj))
	}

	out := make(Trajectory, len(traj))
	for i, p := range traj {
		speed := opts.NominalSpeed
		if opts.Velocity != nil {
			speed = opts.Velocity[i]
		}
		lag, err := transitSeconds(p.Radius, opts.InnerAltitude, speed)
		if err != nil {
			return nil, fmt.Errorf("point %d (%s): %w", i, p.Time.Format(time.RFC3339), err)
		}
		out[i] = Position{
			Time:   p.Time,
			Lon:    Wrap360(p.Lon + carringtonRate*lag),
			Lat:    p.Lat,
			Radius: opts.InnerAltitude,
		}
	}
	return out, nil
}

// VelocityOnGrid resamples an hourly radial-speed series onto grid.
// Missing medians are dropped first; grid points outside the remaining
// span take fallback.
func VelocityOnGrid(vr Series, grid []time.Time, fallback float64) ([]float64, error) {
	if err := vr.Validate(); err != nil {
		return nil, err
	}
	times := make([]time.Time, 0, vr.Len())
	vals := make([]float64, 0, vr.Len())
	for i, v := range vr.Values {
		if math.IsNaN(v) {
			continue
		}
		times = append(times, vr.Times[i])
		vals = append(vals, v)
	}
	return Interpolate(times, vals, grid, fallback)
}
