package covertree

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// GaussianMoments is the per-node Gaussian moment summary: a running mean and
// diagonal variance over every point the node covers. Nodes covering at least
// svdThreshold points additionally carry the dominant singular values of
// their covered points' centered coordinates.
type GaussianMoments struct {
	Mean     []float64
	Variance []float64
	Count    uint64
	Singular []float64
}

// GaussianPlugin computes GaussianMoments bottom-up: a leaf's moments come
// directly from its own center and singletons; a routing node's moments are
// the count-weighted combination of its children's moments plus any of its
// own singletons (a routing node's Singletons holds residuals that were
// folded in rather than given their own child, per builder.go).
type GaussianPlugin struct {
	cloud         PointCloud
	svdThreshold  int
	svdComponents int
}

// NewGaussianPlugin returns a plugin that computes the SVD of any node
// covering at least svdThreshold points, keeping its top svdComponents
// singular values.
func NewGaussianPlugin(cloud PointCloud, svdThreshold, svdComponents int) *GaussianPlugin {
	return &GaussianPlugin{cloud: cloud, svdThreshold: svdThreshold, svdComponents: svdComponents}
}

func (p *GaussianPlugin) Compute(ctx context.Context, r *CoverTreeReader, node *CoverNode, children []*GaussianMoments) (*GaussianMoments, error) {
	if node.IsLeaf() {
		leaf, err := p.fromPoints(ctx, append([]uint64{node.CenterIndex}, node.Singletons...))
		if err != nil || p.svdThreshold <= 0 || leaf.Count < uint64(p.svdThreshold) {
			return leaf, err
		}
		sv, err := p.dominantSingularValues(ctx, r, node)
		if err != nil {
			return nil, err
		}
		leaf.Singular = sv
		return leaf, nil
	}

	var combined *GaussianMoments
	for _, c := range children {
		if c == nil {
			continue
		}
		if combined == nil {
			cp := *c
			combined = &cp
			continue
		}
		combined = combineGaussian(combined, c)
	}
	if len(node.Singletons) > 0 {
		own, err := p.fromPoints(ctx, node.Singletons)
		if err != nil {
			return nil, err
		}
		if combined == nil {
			combined = own
		} else {
			combined = combineGaussian(combined, own)
		}
	}
	if combined == nil {
		return p.fromPoints(ctx, []uint64{node.CenterIndex})
	}

	if p.svdThreshold > 0 && combined.Count >= uint64(p.svdThreshold) {
		sv, err := p.dominantSingularValues(ctx, r, node)
		if err != nil {
			return nil, err
		}
		combined.Singular = sv
	}
	return combined, nil
}

func (p *GaussianPlugin) fromPoints(ctx context.Context, indexes []uint64) (*GaussianMoments, error) {
	dim := p.cloud.Dim()
	mean := make([]float64, dim)
	for _, idx := range indexes {
		pt, err := p.cloud.Point(ctx, idx)
		if err != nil {
			return nil, &PointCloudError{Index: idx, Err: err}
		}
		for i, v := range pt {
			mean[i] += float64(v)
		}
	}
	n := float64(len(indexes))
	for i := range mean {
		mean[i] /= n
	}

	variance := make([]float64, dim)
	for _, idx := range indexes {
		pt, err := p.cloud.Point(ctx, idx)
		if err != nil {
			return nil, &PointCloudError{Index: idx, Err: err}
		}
		for i, v := range pt {
			d := float64(v) - mean[i]
			variance[i] += d * d
		}
	}
	for i := range variance {
		variance[i] /= n
	}

	return &GaussianMoments{Mean: mean, Variance: variance, Count: uint64(len(indexes))}, nil
}

// combineGaussian merges two independently computed moment summaries into
// the moments of their union, via the parallel-variance combination formula.
func combineGaussian(a, b *GaussianMoments) *GaussianMoments {
	na, nb := float64(a.Count), float64(b.Count)
	n := na + nb
	if n == 0 {
		return &GaussianMoments{Mean: append([]float64(nil), a.Mean...), Variance: append([]float64(nil), a.Variance...)}
	}
	dim := len(a.Mean)
	mean := make([]float64, dim)
	variance := make([]float64, dim)
	for i := 0; i < dim; i++ {
		delta := b.Mean[i] - a.Mean[i]
		mean[i] = a.Mean[i] + delta*nb/n
		variance[i] = (na*a.Variance[i] + nb*b.Variance[i] + delta*delta*na*nb/n) / n
	}
	return &GaussianMoments{Mean: mean, Variance: variance, Count: uint64(n)}
}

func (p *GaussianPlugin) collectPoints(r *CoverTreeReader, addr NodeAddress) []uint64 {
	node, ok := GetNodeAnd(r, addr, func(n *CoverNode) CoverNode { return *n })
	if !ok {
		return nil
	}
	points := append([]uint64{node.CenterIndex}, node.Singletons...)
	if !node.IsLeaf() {
		for _, child := range node.Children.Addresses {
			points = append(points, p.collectPoints(r, child)...)
		}
	}
	return points
}

func (p *GaussianPlugin) dominantSingularValues(ctx context.Context, r *CoverTreeReader, node *CoverNode) ([]float64, error) {
	points := p.collectPoints(r, node.Address())
	dim := p.cloud.Dim()
	data := make([]float64, 0, len(points)*dim)
	for _, idx := range points {
		pt, err := p.cloud.Point(ctx, idx)
		if err != nil {
			return nil, &PointCloudError{Index: idx, Err: err}
		}
		for _, v := range pt {
			data = append(data, float64(v))
		}
	}
	n := len(points)
	for j := 0; j < dim; j++ {
		var mean float64
		for i := 0; i < n; i++ {
			mean += data[i*dim+j]
		}
		mean /= float64(n)
		for i := 0; i < n; i++ {
			data[i*dim+j] -= mean
		}
	}
	m := mat.NewDense(n, dim, data)
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		return nil, fmt.Errorf("covertree: svd factorization failed at %s", node.Address())
	}
	values := svd.Values(nil)
	k := p.svdComponents
	if k > len(values) {
		k = len(values)
	}
	return append([]float64(nil), values[:k]...), nil
}
