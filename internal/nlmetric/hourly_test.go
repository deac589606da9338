package nlmetric

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceHourly_NaNExcluded(t *testing.T) {
	t0 := fixtureRef
	times := []time.Time{t0, t0.Add(10 * time.Minute), t0.Add(70 * time.Minute)}

	got, err := ReduceHourly(times, []float64{1.0, nan, 3.0})
	require.NoError(t, err)

	require.Equal(t, 2, got.Len())
	assert.Equal(t, []float64{1.0, 3.0}, got.Values)
	assert.Equal(t, t0.Add(30*time.Minute), got.Times[0])
	assert.Equal(t, t0.Add(90*time.Minute), got.Times[1])
}

func TestReduceHourly_Median(t *testing.T) {
	t0 := fixtureRef
	times := []time.Time{
		t0, t0.Add(5 * time.Minute), t0.Add(20 * time.Minute), t0.Add(50 * time.Minute),
		t0.Add(60 * time.Minute), t0.Add(65 * time.Minute), t0.Add(100 * time.Minute),
	}
	values := []float64{4, -100, 2, 3, 7, nan, 9}

	got, err := ReduceHourly(times, values)
	require.NoError(t, err)
	// [4 -100 2 3] -> 2.5 ; sample at exactly t0+1h opens the second bin.
	assert.Equal(t, []float64{2.5, 8}, got.Values)
}

func TestReduceHourly_EmptyAndNaNBins(t *testing.T) {
	t0 := fixtureRef
	times := []time.Time{
		t0,
		t0.Add(70 * time.Minute), t0.Add(80 * time.Minute), // all NaN
		// hour 2 has no samples
		t0.Add(3*time.Hour + 15*time.Minute),
	}

	got, err := ReduceHourly(times, []float64{1, nan, nan, -2})
	require.NoError(t, err)
	require.Equal(t, 4, got.Len())
	if diff := cmp.Diff([]float64{1, nan, nan, -2}, got.Values, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("hourly values mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, got.Validate())
}

func TestReduceHourly_Rebinning(t *testing.T) {
	t0 := fixtureRef.Add(17 * time.Minute)
	var times []time.Time
	var values []float64
	for i := 0; i < 6*12; i++ {
		ts := t0.Add(time.Duration(i) * 5 * time.Minute)
		v := math.Sin(float64(i)/7) * 10
		if ts.Sub(t0) >= 2*time.Hour && ts.Sub(t0) < 3*time.Hour {
			v = nan
		}
		times = append(times, ts)
		values = append(values, v)
	}

	first, err := ReduceHourly(times, values)
	require.NoError(t, err)
	require.Equal(t, 6, first.Len())

	second, err := ReduceHourly(first.Times, first.Values)
	require.NoError(t, err)
	require.Equal(t, first.Len(), second.Len())

	for k := range first.Values {
		if math.IsNaN(first.Values[k]) {
			assert.True(t, math.IsNaN(second.Values[k]), "bin %d", k)
			continue
		}
		assert.InDelta(t, first.Values[k], second.Values[k], 1e-12, "bin %d", k)
	}
}

func TestReduceHourly_BoundarySampleOpensNextBin(t *testing.T) {
	t0 := fixtureRef
	times := []time.Time{t0, t0.Add(time.Hour), t0.Add(90 * time.Minute)}

	got, err := ReduceHourly(times, []float64{1, 5, 9})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 7}, got.Values)
	assert.Equal(t, []time.Time{t0.Add(30 * time.Minute), t0.Add(90 * time.Minute)}, got.Times)
}

func TestReduceHourly_InfinityIsAValue(t *testing.T) {
	t0 := fixtureRef
	times := []time.Time{t0, t0.Add(10 * time.Minute), t0.Add(20 * time.Minute), t0.Add(30 * time.Minute)}

	got, err := ReduceHourly(times, []float64{math.Inf(1), 2, nan, 4})
	require.NoError(t, err)
	assert.Equal(t, []float64{4}, got.Values)

	got, err = ReduceHourly(times[:2], []float64{math.Inf(-1), math.Inf(-1)})
	require.NoError(t, err)
	assert.True(t, math.IsInf(got.Values[0], -1))
}

func TestReduceHourly_UniformCenters(t *testing.T) {
	t0 := fixtureRef
	times := []time.Time{t0, t0.Add(4*time.Hour + time.Minute)}

	got, err := ReduceHourly(times, []float64{1, 2})
	require.NoError(t, err)
	require.Equal(t, 5, got.Len())
	for i := 1; i < got.Len(); i++ {
		assert.Equal(t, time.Hour, got.Times[i].Sub(got.Times[i-1]))
	}
}

func TestReduceHourly_SingleSample(t *testing.T) {
	got, err := ReduceHourly([]time.Time{fixtureRef}, []float64{nan})
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.True(t, math.IsNaN(got.Values[0]))
}

func TestReduceHourly_Preconditions(t *testing.T) {
	t0 := fixtureRef

	_, err := ReduceHourly([]time.Time{t0}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = ReduceHourly(nil, nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = ReduceHourly([]time.Time{t0.Add(time.Hour), t0}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrUnsorted)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestReduceHourly_DoesNotMutateInput(t *testing.T) {
	t0 := fixtureRef
	times := []time.Time{t0, t0.Add(time.Minute), t0.Add(2 * time.Minute)}
	values := []float64{3, 1, 2}

	_, err := ReduceHourly(times, values)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, values)
}
