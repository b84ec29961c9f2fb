package covertree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCoverTreeParametersDefaults(t *testing.T) {
	p, err := NewCoverTreeParameters()
	require.NoError(t, err)
	assert.Equal(t, float32(1.3), p.ScaleBase)
	assert.Equal(t, 1, p.LeafCutoff)
	assert.Equal(t, int32(-10), p.MinResIndex)
	assert.True(t, p.UseSingletons)
	assert.Equal(t, PartitionFirst, p.PartitionType)
	assert.NotNil(t, p.Logger, "a discard logger is installed when none is given")
}

func TestWithScaleBaseValidation(t *testing.T) {
	_, err := NewCoverTreeParameters(WithScaleBase(1.0))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewCoverTreeParameters(WithScaleBase(2.1))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	p, err := NewCoverTreeParameters(WithScaleBase(1.5))
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), p.ScaleBase)
}

func TestWithLeafCutoffValidation(t *testing.T) {
	_, err := NewCoverTreeParameters(WithLeafCutoff(0))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	p, err := NewCoverTreeParameters(WithLeafCutoff(5))
	require.NoError(t, err)
	assert.Equal(t, 5, p.LeafCutoff)
}

func TestWithMinResIndexValidation(t *testing.T) {
	_, err := NewCoverTreeParameters(WithMinResIndex(MinScaleIndex - 1))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	p, err := NewCoverTreeParameters(WithMinResIndex(-20))
	require.NoError(t, err)
	assert.Equal(t, int32(-20), p.MinResIndex)
}

func TestOptionsAppliedInOrder(t *testing.T) {
	p, err := NewCoverTreeParameters(
		WithSingletons(false),
		WithPartitionType(PartitionNearest),
		WithVerbosity(2),
		WithRngSeed(42),
	)
	require.NoError(t, err)
	assert.False(t, p.UseSingletons)
	assert.Equal(t, PartitionNearest, p.PartitionType)
	assert.Equal(t, 2, p.Verbosity)
	require.NotNil(t, p.RngSeed)
	assert.Equal(t, uint64(42), *p.RngSeed)
}

func TestPartitionTypeString(t *testing.T) {
	assert.Equal(t, "first", PartitionFirst.String())
	assert.Equal(t, "nearest", PartitionNearest.String())
}

func TestFirstInvalidOptionStopsApplication(t *testing.T) {
	_, err := NewCoverTreeParameters(WithLeafCutoff(5), WithScaleBase(9))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
