package covertree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaussianPluginLeafMoments(t *testing.T) {
	cloud := newSliceCloud(Point{0}, Point{2}, Point{4})
	plugin := NewGaussianPlugin(cloud, 0, 0)

	node := &CoverNode{CenterIndex: 0, ScaleIndex: 0, Singletons: []uint64{1, 2}}
	moments, err := plugin.Compute(context.Background(), nil, node, nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), moments.Count)
	assert.InDelta(t, 2.0, moments.Mean[0], 1e-9)
	// variance of {0,2,4} about mean 2 is (4+0+4)/3 = 8/3
	assert.InDelta(t, 8.0/3.0, moments.Variance[0], 1e-9)
}

func TestCombineGaussianMatchesDirectComputation(t *testing.T) {
	cloud := newSliceCloud(Point{0}, Point{2}, Point{4}, Point{6})
	plugin := NewGaussianPlugin(cloud, 0, 0)

	left, err := plugin.fromPoints(context.Background(), []uint64{0, 1})
	require.NoError(t, err)
	right, err := plugin.fromPoints(context.Background(), []uint64{2, 3})
	require.NoError(t, err)
	combined := combineGaussian(left, right)

	whole, err := plugin.fromPoints(context.Background(), []uint64{0, 1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, whole.Count, combined.Count)
	assert.InDelta(t, whole.Mean[0], combined.Mean[0], 1e-9)
	assert.InDelta(t, whole.Variance[0], combined.Variance[0], 1e-9)
}

func TestGaussianPluginRoutingNodeCombinesChildren(t *testing.T) {
	cloud := newSliceCloud(grid1D(10)...)
	plugin := NewGaussianPlugin(cloud, 0, 0)

	leftMoments, err := plugin.fromPoints(context.Background(), []uint64{0, 1, 2})
	require.NoError(t, err)
	rightMoments, err := plugin.fromPoints(context.Background(), []uint64{3, 4, 5})
	require.NoError(t, err)

	routingNode := &CoverNode{
		CenterIndex: 0, ScaleIndex: 1,
		Children: &CoverNodeChildren{ScaleIndex: 0, Addresses: []NodeAddress{
			UncheckedNodeAddress(0, 0), UncheckedNodeAddress(0, 3),
		}},
	}

	combined, err := plugin.Compute(context.Background(), nil, routingNode, []*GaussianMoments{leftMoments, rightMoments})
	require.NoError(t, err)
	assert.Equal(t, uint64(6), combined.Count)
}

func TestGaussianPluginSVDThreshold(t *testing.T) {
	points := make([]Point, 0, 20)
	for i := 0; i < 20; i++ {
		points = append(points, Point{float32(i), float32(2 * i)})
	}
	cloud := newSliceCloud(points...)
	r := buildTestTree(t, cloud, WithRngSeed(14))

	plugin := NewGaussianPlugin(cloud, 5, 2)
	w, err := NewCoverTreeBuilder(cloud, r.params).Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, InstallPlugin[GaussianMoments](context.Background(), w, plugin))

	reader := w.Reader()
	rootMoments, ok := GetNodePluginAnd[GaussianMoments](reader, reader.RootAddress(), func(m *GaussianMoments) *GaussianMoments { return m })
	require.True(t, ok)
	if rootMoments.Count >= 5 {
		assert.NotEmpty(t, rootMoments.Singular, "a node covering >= threshold points must carry singular values")
	}
}
