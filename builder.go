// Copyright 2022 Sylvain Müller. All rights reserved.
// Mount of this source code is governed by a Apache-2.0 license that can be found
// at https://github.com/tigerwill90/fox/blob/master/LICENSE.txt.

package covertree

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/arborway/covertree/internal/evmap"
)

// CoverTreeBuilder constructs a CoverTree from a PointCloud in one pass. It
// holds no state across calls to Build and may be reused or shared.
type CoverTreeBuilder struct {
	params CoverTreeParameters
	cloud  PointCloud
}

// NewCoverTreeBuilder returns a builder that will construct a tree over cloud
// under params.
func NewCoverTreeBuilder(cloud PointCloud, params CoverTreeParameters) *CoverTreeBuilder {
	return &CoverTreeBuilder{params: params, cloud: cloud}
}

// Build runs the recursive top-down construction described in spec §4.3:
// the root's scale is derived from the farthest point in the cloud, every
// node below it is partitioned by the configured PartitionType, and every
// layer is refreshed exactly once at the end. Construction is total: on
// error, the returned writer is nil and partially built layers are discarded.
func (b *CoverTreeBuilder) Build(ctx context.Context) (*CoverTreeWriter, error) {
	indexes := b.cloud.ReferenceIndexes()
	if len(indexes) == 0 {
		return nil, fmt.Errorf("covertree: cannot build over an empty point cloud")
	}

	root := indexes[0]
	rest := make([]uint64, 0, len(indexes)-1)
	for _, idx := range indexes[1:] {
		rest = append(rest, idx)
	}

	rootScale, err := b.rootScale(ctx, root, rest)
	if err != nil {
		return nil, err
	}

	w := &CoverTreeWriter{
		layers: make(map[int32]*CoverLayerWriter),
		owners: evmap.New[uint64, NodeAddress](),
	}

	if b.params.Verbosity > 0 {
		b.params.Logger.Info("building cover tree",
			"points", len(indexes), "root", root, "root_scale", rootScale,
			"scale_base", b.params.ScaleBase, "partition", b.params.PartitionType.String())
	}

	var mu sync.Mutex
	_, err = b.buildNode(ctx, w, &mu, nil, rootScale, root, rest)
	if err != nil {
		return nil, err
	}

	w.rootAddress = UncheckedNodeAddress(rootScale, root)
	w.params = b.params
	w.cloud = b.cloud
	w.RefreshAll()

	return w, nil
}

// rootScale picks the smallest scale index whose ball, centered at root,
// covers every other point, clamped to the configured floor.
func (b *CoverTreeBuilder) rootScale(ctx context.Context, root uint64, rest []uint64) (int32, error) {
	var maxDist float32
	for _, p := range rest {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		d, err := b.dist(ctx, root, p)
		if err != nil {
			return 0, err
		}
		if d > maxDist {
			maxDist = d
		}
	}
	if maxDist <= 0 {
		return b.params.MinResIndex, nil
	}
	scale := int32(math.Ceil(math.Log(float64(maxDist)) / math.Log(float64(b.params.ScaleBase))))
	if scale < b.params.MinResIndex {
		scale = b.params.MinResIndex
	}
	if scale > MaxScaleIndex {
		scale = MaxScaleIndex
	}
	return scale, nil
}

// buildNode recursively constructs the node centered at (scaleIndex, center)
// over candidates (which never includes center itself), inserts it into its
// layer, and returns the total number of points it covers (itself included).
func (b *CoverTreeBuilder) buildNode(
	ctx context.Context,
	w *CoverTreeWriter,
	mu *sync.Mutex,
	parent *NodeAddress,
	scaleIndex int32,
	center uint64,
	candidates []uint64,
) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	address := UncheckedNodeAddress(scaleIndex, center)
	childScale := scaleIndex - 1

	// Forced-leaf when the node covers at most LeafCutoff points (its center
	// included), or when the next level down would fall below the configured
	// scale floor: min_res_index bounds how deep the tree goes, not which
	// scales may host a node.
	if len(candidates)+1 <= b.params.LeafCutoff || childScale < b.params.MinResIndex {
		node := CoverNode{
			CenterIndex:   center,
			ScaleIndex:    scaleIndex,
			ParentAddress: parent,
			Singletons:    candidates,
			CoverageCount: uint64(len(candidates)) + 1,
		}
		mu.Lock()
		w.layerWriter(scaleIndex).Insert(center, node)
		w.recordOwner(center, address)
		for _, p := range candidates {
			w.recordOwner(p, address)
		}
		mu.Unlock()
		logNode(b.params.Logger, b.params.Verbosity, address, len(candidates)+1, 0, true)
		return node.CoverageCount, nil
	}

	order := b.candidateOrder(center, candidates)
	childRadius := scaleRadius(b.params.ScaleBase, childScale)

	var nested, outer []uint64
	for _, p := range order {
		d, err := b.dist(ctx, center, p)
		if err != nil {
			return 0, err
		}
		if d <= childRadius {
			nested = append(nested, p)
		} else {
			outer = append(outer, p)
		}
	}

	seeds, members, err := b.partition(ctx, outer, childRadius)
	if err != nil {
		return 0, err
	}

	// Seeds whose bucket ends up empty are singleton-worthy: with
	// UseSingletons they fold directly into this node's singleton list
	// instead of paying for a trivial one-point child.
	var singletons []uint64
	var realSeeds []uint64
	for _, s := range seeds {
		if b.params.UseSingletons && len(members[s]) == 0 {
			singletons = append(singletons, s)
			continue
		}
		realSeeds = append(realSeeds, s)
	}

	type childResult struct {
		address  NodeAddress
		coverage uint64
	}
	results := make([]childResult, 1+len(realSeeds))
	results[0] = childResult{address: UncheckedNodeAddress(childScale, center)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBuildWorkers)

	g.Go(func() error {
		cc, err := b.buildNode(gctx, w, mu, &address, childScale, center, nested)
		if err != nil {
			return err
		}
		results[0].coverage = cc
		return nil
	})
	for i, s := range realSeeds {
		i, s := i, s
		g.Go(func() error {
			cc, err := b.buildNode(gctx, w, mu, &address, childScale, s, members[s])
			if err != nil {
				return err
			}
			results[i+1] = childResult{address: UncheckedNodeAddress(childScale, s), coverage: cc}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	addresses := make([]NodeAddress, len(results))
	var coverage uint64
	for i, r := range results {
		addresses[i] = r.address
		coverage += r.coverage
	}
	coverage += uint64(len(singletons))

	// The center is covered, and owned, by the nested child's chain (which
	// ends in a leaf centered on it), so it is neither counted nor recorded
	// as owned again here.
	node := CoverNode{
		CenterIndex:   center,
		ScaleIndex:    scaleIndex,
		ParentAddress: parent,
		Children:      &CoverNodeChildren{ScaleIndex: childScale, Addresses: addresses},
		Singletons:    singletons,
		CoverageCount: coverage,
	}
	mu.Lock()
	w.layerWriter(scaleIndex).Insert(center, node)
	for _, p := range singletons {
		w.recordOwner(p, address)
	}
	mu.Unlock()
	logNode(b.params.Logger, b.params.Verbosity, address, int(node.CoverageCount), len(addresses), false)
	return node.CoverageCount, nil
}

// partition splits points into child seeds and their assigned members
// according to the configured PartitionType.
func (b *CoverTreeBuilder) partition(ctx context.Context, points []uint64, childRadius float32) (seeds []uint64, members map[uint64][]uint64, err error) {
	switch b.params.PartitionType {
	case PartitionNearest:
		return b.partitionNearest(ctx, points, childRadius)
	default:
		return b.partitionFirst(ctx, points, childRadius)
	}
}

func (b *CoverTreeBuilder) partitionFirst(ctx context.Context, points []uint64, childRadius float32) ([]uint64, map[uint64][]uint64, error) {
	var seeds []uint64
	members := make(map[uint64][]uint64)
	for _, p := range points {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		covered := false
		for _, s := range seeds {
			d, err := b.dist(ctx, s, p)
			if err != nil {
				return nil, nil, err
			}
			if d <= childRadius {
				members[s] = append(members[s], p)
				covered = true
				break
			}
		}
		if !covered {
			seeds = append(seeds, p)
		}
	}
	return seeds, members, nil
}

func (b *CoverTreeBuilder) partitionNearest(ctx context.Context, points []uint64, childRadius float32) ([]uint64, map[uint64][]uint64, error) {
	var seeds []uint64
	seedSet := make(map[uint64]bool)
	for _, p := range points {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		covered := false
		for _, s := range seeds {
			d, err := b.dist(ctx, s, p)
			if err != nil {
				return nil, nil, err
			}
			if d <= childRadius {
				covered = true
				break
			}
		}
		if !covered {
			seeds = append(seeds, p)
			seedSet[p] = true
		}
	}

	members := make(map[uint64][]uint64)
	for _, p := range points {
		if seedSet[p] {
			continue
		}
		best := uint64(0)
		bestDist := float32(math.Inf(1))
		found := false
		for _, s := range seeds {
			d, err := b.dist(ctx, s, p)
			if err != nil {
				return nil, nil, err
			}
			if d <= childRadius && d < bestDist {
				bestDist, best, found = d, s, true
			}
		}
		if found {
			members[best] = append(members[best], p)
		}
	}
	return seeds, members, nil
}

// candidateOrder returns candidates in the order the greedy partition should
// scan them. With an RngSeed configured, it's a reproducible pseudo-random
// order derived independently per point (no shared RNG state, so sibling
// subtrees can compute their order without coordinating); otherwise input
// order is preserved.
func (b *CoverTreeBuilder) candidateOrder(center uint64, candidates []uint64) []uint64 {
	if b.params.RngSeed == nil {
		return candidates
	}
	seed := *b.params.RngSeed ^ center
	out := append([]uint64(nil), candidates...)
	keys := make(map[uint64]uint64, len(out))
	for _, p := range out {
		keys[p] = splitmix64(seed ^ p)
	}
	sort.Slice(out, func(i, j int) bool { return keys[out[i]] < keys[out[j]] })
	return out
}

func (b *CoverTreeBuilder) dist(ctx context.Context, i, j uint64) (float32, error) {
	pi, err := b.cloud.Point(ctx, i)
	if err != nil {
		return 0, &PointCloudError{Index: i, Err: err}
	}
	pj, err := b.cloud.Point(ctx, j)
	if err != nil {
		return 0, &PointCloudError{Index: j, Err: err}
	}
	return b.cloud.Metric().Dist(pi, pj), nil
}

// scaleRadius returns scale_base^scaleIndex, the ball radius a node at
// scaleIndex must cover every descendant within.
func scaleRadius(scaleBase float32, scaleIndex int32) float32 {
	return float32(math.Pow(float64(scaleBase), float64(scaleIndex)))
}

// splitmix64 is a small-state, fixed-output-size hash used only to derive a
// deterministic scan order from RngSeed; it is not a general-purpose RNG.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// maxBuildWorkers bounds how many child subtrees of one node build
// concurrently. Every routing node runs its own group under this cap, so the
// total number of concurrent builds across the whole tree is not bounded by it.
const maxBuildWorkers = 8
