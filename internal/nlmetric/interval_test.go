package nlmetric

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveInterval_Fixture(t *testing.T) {
	iv, err := ResolveInterval(context.Background(), earthLike(), fixtureRef, BodyEarth)
	require.NoError(t, err)

	// Crossings at ref ± 325.5h; the interval edges are the first
	// 6-hourly samples past each crossing.
	assert.Equal(t, fixtureRef.Add(-324*time.Hour), iv.Start)
	assert.Equal(t, fixtureRef.Add(330*time.Hour), iv.End)
	assert.True(t, iv.Start.Before(iv.End))
	assert.InDelta(t, 27.125, iv.Duration().Hours()/24, 0.25)
}

func TestResolveInterval_Prograde(t *testing.T) {
	eph := earthLike()
	eph.Period = -eph.Period

	iv, err := ResolveInterval(context.Background(), eph, fixtureRef, BodyEarth)
	require.NoError(t, err)
	assert.True(t, iv.Contains(fixtureRef))
	assert.InDelta(t, eph.Period.Hours(), iv.Duration().Hours(), SearchCadence.Hours())
}

func TestResolveInterval_ReferenceNormalizedToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	local := fixtureRef.In(loc)

	iv, err := ResolveInterval(context.Background(), earthLike(), local, BodyEarth)
	require.NoError(t, err)
	assert.Equal(t, fixtureRef.Add(-324*time.Hour), iv.Start)
	assert.Equal(t, time.UTC, iv.Start.Location())
}

func TestResolveInterval_NotFound(t *testing.T) {
	tests := []struct {
		name   string
		period time.Duration
	}{
		{"stationary", 0},
		{"slow drift", -200 * 24 * time.Hour},
		{"half period beyond window", -70 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eph := earthLike()
			eph.Period = tt.period

			_, err := ResolveInterval(context.Background(), eph, fixtureRef, BodyEarth)
			require.ErrorIs(t, err, ErrIntervalNotFound)
		})
	}
}

func TestResolveInterval_EphemerisError(t *testing.T) {
	eph := earthLike()
	eph.Err = errBoom

	_, err := ResolveInterval(context.Background(), eph, fixtureRef, BodyEarth)
	require.ErrorIs(t, err, errBoom)
}

func TestAntipodeCrossings(t *testing.T) {
	traj := Trajectory{{Lon: 10}, {Lon: 5}, {Lon: 359}, {Lon: 350}, {Lon: 1}}
	assert.Equal(t, []int{2, 4}, antipodeCrossings(traj, 0))
}

func TestCircularHelpers(t *testing.T) {
	assert.Equal(t, 0.0, Wrap360(360))
	assert.Equal(t, 350.0, Wrap360(-10))
	assert.Equal(t, 10.0, Wrap360(730))
	assert.Equal(t, 20.0, CircularDelta(350, 10))
	assert.Equal(t, -20.0, CircularDelta(10, 350))
	assert.Equal(t, 180.0, CircularDelta(0, 180))
}

func TestTimeGrid(t *testing.T) {
	start := fixtureRef
	grid := TimeGrid(start, start.Add(3*time.Hour), time.Hour)
	require.Len(t, grid, 3)
	assert.Equal(t, start.Add(2*time.Hour), grid[2])

	assert.Len(t, TimeGrid(start, start.Add(90*time.Minute), time.Hour), 2)
	assert.Empty(t, TimeGrid(start, start, time.Hour))

	iv := Interval{Start: start, End: start.Add(27 * 24 * time.Hour)}
	assert.Len(t, HourlyGrid(iv), 27*24)
}
