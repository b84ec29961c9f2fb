package covertree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkInterfaceKnownPathMatchesPerPointKnownPath(t *testing.T) {
	cloud := newSliceCloud(grid1D(35)...)
	r := buildTestTree(t, cloud, WithRngSeed(6))

	bi, err := NewBulkInterface(r)
	require.NoError(t, err)
	assert.Equal(t, 35, bi.Len())

	for i := uint64(0); i < 35; i++ {
		want, err := KnownPath(r, i)
		require.NoError(t, err)
		got, err := bi.KnownPath(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestBulkInterfaceOwner(t *testing.T) {
	cloud := newSliceCloud(grid1D(10)...)
	r := buildTestTree(t, cloud)
	bi, err := NewBulkInterface(r)
	require.NoError(t, err)

	for i := uint64(0); i < 10; i++ {
		want, ok := r.Owner(i)
		require.True(t, ok)
		got, ok := bi.Owner(i)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := bi.Owner(9999)
	assert.False(t, ok)
}

func TestBulkInterfaceKnownPathUnknownPoint(t *testing.T) {
	cloud := newSliceCloud(grid1D(5)...)
	r := buildTestTree(t, cloud)
	bi, err := NewBulkInterface(r)
	require.NoError(t, err)

	_, err = bi.KnownPath(9999)
	assert.ErrorIs(t, err, ErrNameUnknown)
}

func TestBulkInterfaceApplyVisitsEveryPoint(t *testing.T) {
	cloud := newSliceCloud(grid1D(15)...)
	r := buildTestTree(t, cloud)
	bi, err := NewBulkInterface(r)
	require.NoError(t, err)

	visited := make(map[uint64]bool)
	bi.Apply(func(pointIndex uint64, path []NodeAddress) {
		visited[pointIndex] = true
		assert.NotEmpty(t, path)
		assert.Equal(t, r.RootAddress(), path[0])
	})
	assert.Len(t, visited, 15)
}
