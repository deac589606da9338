package nlmetric

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_Scenario(t *testing.T) {
	model := hourly(fixtureRef, 1, -1, 1, -1)
	obs := hourly(fixtureRef, 1, 1, 1, -1)

	got, err := Score(model, obs)
	require.NoError(t, err)
	assert.Equal(t, 0.75, got.Score)
	assert.Equal(t, 4, got.Compared)
	assert.Equal(t, 3, got.Agreed)
}

func TestScore_IdenticalAndAntiCorrelated(t *testing.T) {
	a := hourly(fixtureRef, 3.2, -0.1, 7, -12, 0.4)
	anti := hourly(fixtureRef, -1, 5, -2, 8, -0.01)

	got, err := Score(a, a)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Score)

	got, err = Score(a, anti)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Score)
}

func TestScore_Symmetric(t *testing.T) {
	a := hourly(fixtureRef, 1, -2, nan, 4, -5, 0, 7)
	b := hourly(fixtureRef, 3, 2, 1, nan, -1, 1, -9)

	ab, err := Score(a, b)
	require.NoError(t, err)
	ba, err := Score(b, a)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestScore_OneSidedNaN(t *testing.T) {
	// A NaN in either operand must leave the denominator.
	model := hourly(fixtureRef, 1, 1, nan, 1)
	obs := hourly(fixtureRef, 1, nan, 1, -1)

	got, err := Score(model, obs)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Compared)
	assert.Equal(t, 1, got.Agreed)
	assert.Equal(t, 0.5, got.Score)
}

func TestScore_ExactZeroIsComparedNotAgreed(t *testing.T) {
	got, err := Score(hourly(fixtureRef, 0, 1), hourly(fixtureRef, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Compared)
	assert.Equal(t, 1, got.Agreed)
}

func TestScore_Undefined(t *testing.T) {
	_, err := Score(hourly(fixtureRef, nan, 1), hourly(fixtureRef, 1, nan))
	assert.ErrorIs(t, err, ErrScoreUndefined)

	_, err = Score(Series{}, Series{})
	assert.ErrorIs(t, err, ErrScoreUndefined)
}

func TestScore_AlignsObservedRawValues(t *testing.T) {
	model := hourly(fixtureRef, 1, 1, -1)
	// Two hours apart: the raw midpoint is +1, a signed midpoint would be 0.
	obs := Series{
		Times:  []time.Time{fixtureRef, fixtureRef.Add(2 * time.Hour)},
		Values: []float64{3, -1},
	}

	got, err := Score(model, obs)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Compared)
	assert.Equal(t, 1.0, got.Score)
}

func TestScore_AlignsShiftedGrid(t *testing.T) {
	model := hourly(fixtureRef, 1, 1, -1, -1)
	obs := hourly(fixtureRef.Add(-time.Hour), 5, 4, 3, -3, -4, -5)

	got, err := Score(model, obs)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Compared)
	assert.Equal(t, 1.0, got.Score)
}

func TestScore_ObservedOutsideModelSpanIsMissing(t *testing.T) {
	model := hourly(fixtureRef, 1, 1, 1, 1)
	obs := hourly(fixtureRef.Add(2*time.Hour), 1, 1, 1)

	got, err := Score(model, obs)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Compared)
}

func TestScore_InvalidSeries(t *testing.T) {
	bad := Series{Times: []time.Time{fixtureRef}, Values: []float64{1, 2}}
	_, err := Score(bad, hourly(fixtureRef, 1))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	dup := Series{Times: []time.Time{fixtureRef, fixtureRef}, Values: []float64{1, 2}}
	_, err = Score(hourly(fixtureRef, 1, 1), dup)
	assert.ErrorIs(t, err, ErrUnsorted)
}

func TestSign(t *testing.T) {
	assert.Equal(t, 1.0, Sign(0.001))
	assert.Equal(t, -1.0, Sign(-42))
	assert.Equal(t, 0.0, Sign(0))
	assert.True(t, math.IsNaN(Sign(nan)))
	assert.Equal(t, []float64{1, -1, 0}, Polarity([]float64{2, -2, 0}))
}
