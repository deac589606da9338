// Package ephemeris provides Carrington-frame positions for observers.
//
// Circular is an analytic model good to a degree or two for observers
// near 1 AU. Table serves precomputed positions (e.g. exported from SPICE
// kernels) stored as Parquet.
package ephemeris

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/KI7MT/ki7mt-nlmetric/internal/nlmetric"
)

// ErrUnknownBody is returned for a body without a profile or table rows.
var ErrUnknownBody = errors.New("unknown body")

const (
	// AURadii is one astronomical unit in solar radii.
	AURadii = 149597870.7 / nlmetric.SolarRadiusKm

	// carringtonEpochJD is the start of Carrington rotation 1.
	carringtonEpochJD = 2398140.2270

	// carringtonSynodicDays is the mean synodic rotation seen from Earth.
	carringtonSynodicDays = 27.2752316

	j2000JD     = 2451545.0
	unixEpochJD = 2440587.5

	earthYearDays = 365.256363
	solarTiltDeg  = 7.25
)

// Profile describes an observer on a circular, ecliptic-plane orbit.
type Profile struct {
	Radius    float64       // solar radii
	Period    time.Duration // sidereal orbital period
	Epoch     time.Time     // when the observer was OffsetDeg ahead of Earth
	OffsetDeg float64       // heliocentric longitude lead over Earth at Epoch
}

var stereoEpoch = time.Date(2007, 1, 21, 0, 0, 0, 0, time.UTC)

// DefaultProfiles covers the bodies the pipeline knows conventions for.
var DefaultProfiles = map[nlmetric.Body]Profile{
	nlmetric.BodyEarth:   {Radius: AURadii, Period: days(earthYearDays)},
	nlmetric.BodyL1:      {Radius: AURadii - 1.5e6/nlmetric.SolarRadiusKm, Period: days(earthYearDays)},
	nlmetric.BodyStereoA: {Radius: 0.96 * AURadii, Period: days(346), Epoch: stereoEpoch},
	nlmetric.BodyStereoB: {Radius: 1.04 * AURadii, Period: days(388), Epoch: stereoEpoch},
}

func days(d float64) time.Duration {
	return time.Duration(d * 24 * float64(time.Hour))
}

// Circular is an analytic ephemeris over a set of profiles.
type Circular struct {
	Profiles map[nlmetric.Body]Profile
}

// NewCircular returns a Circular ephemeris over DefaultProfiles.
func NewCircular() *Circular {
	return &Circular{Profiles: DefaultProfiles}
}

// Position implements nlmetric.Ephemeris.
func (c *Circular) Position(_ context.Context, times []time.Time, body nlmetric.Body) (nlmetric.Trajectory, error) {
	p, ok := c.Profiles[body]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBody, body)
	}

	out := make(nlmetric.Trajectory, len(times))
	for i, t := range times {
		lead := p.lead(t)
		out[i] = nlmetric.Position{
			Time:   t,
			Lon:    nlmetric.Wrap360(EarthCarringtonLon(t) + lead),
			Lat:    heliographicLat(t, lead),
			Radius: p.Radius,
		}
	}
	return out, nil
}

// lead is the observer's heliocentric longitude ahead of Earth at t.
func (p Profile) lead(t time.Time) float64 {
	if p.Period == 0 || p.Epoch.IsZero() {
		return p.OffsetDeg
	}
	dt := t.Sub(p.Epoch).Hours() / 24
	rate := 360/(p.Period.Hours()/24) - 360/earthYearDays
	return p.OffsetDeg + rate*dt
}

func julianDay(t time.Time) float64 {
	return unixEpochJD + float64(t.UnixNano())/1e9/86400
}

// EarthCarringtonLon is the Carrington longitude of the sub-Earth point,
// from the mean synodic rotation (eccentricity ignored).
func EarthCarringtonLon(t time.Time) float64 {
	rot := (julianDay(t) - carringtonEpochJD) / carringtonSynodicDays
	_, frac := math.Modf(rot)
	return nlmetric.Wrap360(360 * (1 - frac))
}

// heliographicLat approximates the solar B0 angle for an observer lead
// degrees ahead of Earth.
func heliographicLat(t time.Time, lead float64) float64 {
	jd := julianDay(t)
	d := jd - j2000JD
	sunLon := 280.460 + 0.9856474*d + lead
	node := 73.6667 + 0.013958*(jd-2396758)/365.25
	rad := math.Pi / 180
	return math.Asin(math.Sin((sunLon-node)*rad)*math.Sin(solarTiltDeg*rad)) / rad
}
