package covertree

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sort"
)

// KnnResult is one match returned by Knn: a point index and its distance to
// the query under the tree's metric.
type KnnResult struct {
	PointIndex uint64
	Dist       float32
}

// RoutingResult is one match returned by RoutingKnn: a node address and its
// center's distance to the query.
type RoutingResult struct {
	Address NodeAddress
	Dist    float32
}

// distToQuery computes the distance from an arbitrary query point to the
// cloud point at index i, without requiring query itself to be a cloud member.
func (r *CoverTreeReader) distToQuery(ctx context.Context, query Point, i uint64) (float32, error) {
	pi, err := r.cloud.Point(ctx, i)
	if err != nil {
		return 0, &PointCloudError{Index: i, Err: err}
	}
	return r.cloud.Metric().Dist(query, pi), nil
}

// Path greedily descends from the root to a leaf, at each routing node moving
// to whichever child (nested child included) has the closest center to query.
// It performs no backtracking and visits exactly one node per scale: the
// realized routing path a drift observation (BayesCovertree.Observe) consumes.
func Path(ctx context.Context, r *CoverTreeReader, query Point) ([]NodeAddress, error) {
	cur := r.RootAddress()
	path := []NodeAddress{cur}
	for {
		node, ok := GetNodeAnd(r, cur, func(n *CoverNode) CoverNode { return *n })
		if !ok {
			return nil, fmt.Errorf("covertree: address %s: %w", cur, ErrNameUnknown)
		}
		if node.IsLeaf() {
			return path, nil
		}
		best := node.Children.Addresses[0]
		bestDist := float32(math.Inf(1))
		for _, addr := range node.Children.Addresses {
			d, err := r.distToQuery(ctx, query, addr.PointIndex())
			if err != nil {
				return nil, err
			}
			if d < bestDist {
				bestDist = d
				best = addr
			}
		}
		cur = best
		path = append(path, cur)
	}
}

// KnownPath resolves the root-to-node path for an already-indexed point by
// following ParentAddress pointers, with no distance computation at all. It
// returns ErrNameUnknown if pointIndex was never indexed by this tree, or if
// the parent chain it records is broken (a corrupted tree).
func KnownPath(r *CoverTreeReader, pointIndex uint64) ([]NodeAddress, error) {
	addr, ok := r.Owner(pointIndex)
	if !ok {
		return nil, fmt.Errorf("covertree: point %d: %w", pointIndex, ErrNameUnknown)
	}

	var path []NodeAddress
	cur := addr
	for {
		path = append(path, cur)
		parent, ok := GetNodeAnd(r, cur, func(n *CoverNode) *NodeAddress { return n.ParentAddress })
		if !ok {
			return nil, fmt.Errorf("covertree: address %s: %w", cur, ErrNameUnknown)
		}
		if parent == nil {
			break
		}
		cur = *parent
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// Knn runs a best-first search of the tree for the k points nearest query,
// pruning any node whose lower-bound distance cannot beat the current k-th
// best. Returns results in ascending distance order, plus the per-layer
// count of nodes the search pushed onto its frontier. k <= 0 returns
// (nil, nil, nil).
func Knn(ctx context.Context, r *CoverTreeReader, query Point, k int) ([]KnnResult, map[int32]int, error) {
	if k <= 0 {
		return nil, nil, nil
	}

	qh := newQueryHeaps(k)
	root := r.RootAddress()
	d0, err := r.distToQuery(ctx, query, root.PointIndex())
	if err != nil {
		return nil, nil, err
	}
	qh.pushAddress(root, d0, scaleRadius(r.params.ScaleBase, root.ScaleIndex()))

	for {
		cand, ok := qh.popAddress()
		if !ok {
			break
		}
		if cand.lowerBound > qh.worstBest() {
			break
		}

		node, ok := GetNodeAnd(r, cand.address, func(n *CoverNode) CoverNode { return *n })
		if !ok {
			return nil, nil, fmt.Errorf("covertree: address %s: %w", cand.address, ErrNameUnknown)
		}

		// A routing node's center is also the center of its nested child, and
		// so of the leaf that chain ends in; offering it only there keeps each
		// point from being offered more than once.
		if node.IsLeaf() {
			qh.offerSingleton(node.CenterIndex, cand.dist)
		}
		for _, p := range node.Singletons {
			d, err := r.distToQuery(ctx, query, p)
			if err != nil {
				return nil, nil, err
			}
			qh.offerSingleton(p, d)
		}

		if !node.IsLeaf() {
			childScale := node.Children.ScaleIndex
			radius := scaleRadius(r.params.ScaleBase, childScale)
			for _, childAddr := range node.Children.Addresses {
				d, err := r.distToQuery(ctx, query, childAddr.PointIndex())
				if err != nil {
					return nil, nil, err
				}
				qh.pushAddress(childAddr, d, radius)
			}
		}
	}

	results := qh.results()
	out := make([]KnnResult, len(results))
	for i, c := range results {
		out[i] = KnnResult{PointIndex: c.pointIndex, Dist: c.dist}
	}
	return out, qh.LayerCounts(), nil
}

// RoutingKnn runs the same best-first search as Knn, but collects the k
// closest node addresses (routing nodes included) instead of the k closest
// raw points. Returns results in ascending distance order, plus the
// per-layer count of nodes the search pushed onto its frontier.
func RoutingKnn(ctx context.Context, r *CoverTreeReader, query Point, k int) ([]RoutingResult, map[int32]int, error) {
	if k <= 0 {
		return nil, nil, nil
	}

	qh := newQueryHeaps(0) // singleton heap unused here; addresses tracked in best below
	best := &addressResultHeap{}

	root := r.RootAddress()
	d0, err := r.distToQuery(ctx, query, root.PointIndex())
	if err != nil {
		return nil, nil, err
	}
	qh.pushAddress(root, d0, scaleRadius(r.params.ScaleBase, root.ScaleIndex()))

	worst := func() float32 {
		if len(*best) < k {
			return float32(math.Inf(1))
		}
		return (*best)[0].dist
	}

	for {
		cand, ok := qh.popAddress()
		if !ok {
			break
		}
		if cand.lowerBound > worst() {
			break
		}

		if len(*best) < k {
			heap.Push(best, cand)
		} else if cand.dist < (*best)[0].dist {
			heap.Pop(best)
			heap.Push(best, cand)
		}

		node, ok := GetNodeAnd(r, cand.address, func(n *CoverNode) CoverNode { return *n })
		if !ok {
			return nil, nil, fmt.Errorf("covertree: address %s: %w", cand.address, ErrNameUnknown)
		}
		if node.IsLeaf() {
			continue
		}

		childScale := node.Children.ScaleIndex
		radius := scaleRadius(r.params.ScaleBase, childScale)
		for _, childAddr := range node.Children.Addresses {
			d, err := r.distToQuery(ctx, query, childAddr.PointIndex())
			if err != nil {
				return nil, nil, err
			}
			qh.pushAddress(childAddr, d, radius)
		}
	}

	tmp := append(addressResultHeap(nil), *best...)
	sort.Slice(tmp, func(i, j int) bool {
		if tmp[i].dist != tmp[j].dist {
			return tmp[i].dist < tmp[j].dist
		}
		return tmp[i].address < tmp[j].address
	})
	out := make([]RoutingResult, len(tmp))
	for i, c := range tmp {
		out[i] = RoutingResult{Address: c.address, Dist: c.dist}
	}
	return out, qh.LayerCounts(), nil
}
