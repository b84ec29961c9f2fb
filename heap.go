package covertree

import (
	"container/heap"
	"math"
	"sort"
)

// addressCandidate is an entry in the shared best-first search frontier: a
// node address and its lower-bound distance to the query, the largest
// distance any descendant of this node could possibly be closer than.
type addressCandidate struct {
	address    NodeAddress
	dist       float32
	lowerBound float32
}

// addressFrontier is a min-heap of addressCandidate ordered by lowerBound,
// tie-broken by higher scale first (coarser nodes resolve first) and then by
// actual distance to center, then by point index for full determinism.
type addressFrontier []addressCandidate

func (h addressFrontier) Len() int { return len(h) }

func (h addressFrontier) Less(i, j int) bool {
	if h[i].lowerBound != h[j].lowerBound {
		return h[i].lowerBound < h[j].lowerBound
	}
	si, sj := h[i].address.ScaleIndex(), h[j].address.ScaleIndex()
	if si != sj {
		return si > sj
	}
	if h[i].dist != h[j].dist {
		return h[i].dist < h[j].dist
	}
	return h[i].address.PointIndex() < h[j].address.PointIndex()
}

func (h addressFrontier) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *addressFrontier) Push(x any) { *h = append(*h, x.(addressCandidate)) }

func (h *addressFrontier) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// singletonCandidate is a leaf point index under consideration as one of the
// k best matches found so far.
type singletonCandidate struct {
	pointIndex uint64
	dist       float32
}

// singletonHeap is a bounded max-heap: its root is always the worst of the
// best-so-far candidates, so query.go can test new candidates against it in
// O(log k) and evict in the same step. Ties break by point index, descending,
// so the heap's eviction order is fully deterministic.
type singletonHeap []singletonCandidate

func (h singletonHeap) Len() int { return len(h) }

func (h singletonHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist > h[j].dist
	}
	return h[i].pointIndex > h[j].pointIndex
}

func (h singletonHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *singletonHeap) Push(x any) { *h = append(*h, x.(singletonCandidate)) }

func (h *singletonHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// addressResultHeap is a bounded max-heap of addressCandidate keyed by dist,
// used by RoutingKnn to collect the k closest node addresses the same way
// singletonHeap collects the k closest points.
type addressResultHeap []addressCandidate

func (h addressResultHeap) Len() int { return len(h) }

func (h addressResultHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist > h[j].dist
	}
	return h[i].address > h[j].address
}

func (h addressResultHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *addressResultHeap) Push(x any) { *h = append(*h, x.(addressCandidate)) }

func (h *addressResultHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// queryHeaps bundles the components a best-first cover tree search shares
// across Knn and RoutingKnn: a min-heap frontier of addresses still to
// expand, a bounded max-heap of the k best singletons found so far, and a
// per-layer count of how many nodes at each scale were pushed onto the
// frontier, for callers that need multiscale k-NN statistics.
type queryHeaps struct {
	frontier    addressFrontier
	best        singletonHeap
	k           int
	layerCounts map[int32]int
}

// newQueryHeaps returns an empty search state targeting the k best results.
// k <= 0 means "track no singleton results", useful for RoutingKnn.
func newQueryHeaps(k int) *queryHeaps {
	return &queryHeaps{k: k, layerCounts: make(map[int32]int)}
}

// pushAddress adds a node address to the frontier given its distance to the
// query and the radius of the ball it covers, and bumps that address's
// layer's running count.
func (q *queryHeaps) pushAddress(addr NodeAddress, dist, radius float32) {
	lb := dist - radius
	if lb < 0 {
		lb = 0
	}
	heap.Push(&q.frontier, addressCandidate{address: addr, dist: dist, lowerBound: lb})
	q.layerCounts[addr.ScaleIndex()]++
}

// LayerCounts returns, per scale index, how many node addresses this search
// pushed onto the frontier — a per-layer multiscale k-NN statistic.
func (q *queryHeaps) LayerCounts() map[int32]int { return q.layerCounts }

// popAddress removes and returns the frontier's closest candidate.
func (q *queryHeaps) popAddress() (addressCandidate, bool) {
	if q.frontier.Len() == 0 {
		return addressCandidate{}, false
	}
	return heap.Pop(&q.frontier).(addressCandidate), true
}

// frontierEmpty reports whether the address frontier has been exhausted.
func (q *queryHeaps) frontierEmpty() bool { return q.frontier.Len() == 0 }

// worstBest returns the current k-th best distance seen, or +Inf if fewer
// than k singletons have been offered yet. A frontier entry whose
// lowerBound exceeds this can never improve the result and is safe to prune.
func (q *queryHeaps) worstBest() float32 {
	if q.k <= 0 || len(q.best) < q.k {
		return float32(math.Inf(1))
	}
	return q.best[0].dist
}

// offerSingleton considers a leaf point as a k-nearest-neighbor candidate.
func (q *queryHeaps) offerSingleton(pointIndex uint64, dist float32) {
	if q.k <= 0 {
		return
	}
	if len(q.best) < q.k {
		heap.Push(&q.best, singletonCandidate{pointIndex: pointIndex, dist: dist})
		return
	}
	if dist < q.best[0].dist {
		heap.Pop(&q.best)
		heap.Push(&q.best, singletonCandidate{pointIndex: pointIndex, dist: dist})
	}
}

// results drains the best-so-far singletons in ascending distance order.
func (q *queryHeaps) results() []singletonCandidate {
	out := append([]singletonCandidate(nil), q.best...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].dist != out[j].dist {
			return out[i].dist < out[j].dist
		}
		return out[i].pointIndex < out[j].pointIndex
	})
	return out
}
