package covertree

import (
	"context"
	"sort"

	"github.com/arborway/covertree/internal/evmap"
)

// CoverTreeWriter owns the mutable, under-construction state of a cover tree:
// one CoverLayerWriter per scale index, the root address, the shared
// PointCloud handle, and the tree-level plugin bag. It is produced by
// CoverTreeBuilder.Build and is not safe for concurrent use; callers obtain
// read-only, concurrency-safe CoverTreeReader snapshots via Reader.
type CoverTreeWriter struct {
	params      CoverTreeParameters
	cloud       PointCloud
	layers      map[int32]*CoverLayerWriter
	scales      []int32 // sorted descending: root first
	rootAddress NodeAddress
	plugins     pluginBag
	owners      *evmap.Map[uint64, NodeAddress]
}

// recordOwner stages the address of the node that owns pointIndex (as its
// center, or as one of its singletons), so KnownPath can later resolve it
// by a pure parent-pointer walk instead of a distance-driven search.
func (w *CoverTreeWriter) recordOwner(pointIndex uint64, address NodeAddress) {
	w.owners.Insert(pointIndex, address)
}

// Parameters returns the parameters this tree was built with.
func (w *CoverTreeWriter) Parameters() CoverTreeParameters { return w.params }

// RootAddress returns the address of the tree's root node.
func (w *CoverTreeWriter) RootAddress() NodeAddress { return w.rootAddress }

// Reader mints a CoverTreeReader snapshot of every layer's current state.
// Safe to call repeatedly (e.g. after installing plugins and refreshing).
func (w *CoverTreeWriter) Reader() *CoverTreeReader {
	readers := make(map[int32]CoverLayerReader, len(w.layers))
	for si, lw := range w.layers {
		readers[si] = lw.Reader()
	}
	r := &CoverTreeReader{
		params:      w.params,
		cloud:       w.cloud,
		layers:      readers,
		scales:      append([]int32(nil), w.scales...),
		rootAddress: w.rootAddress,
		plugins:     w.plugins,
	}
	r.owners = w.owners.Factory().Handle()
	return r
}

// RefreshAll commits every layer's pending writes, making them visible to
// future CoverTreeReader snapshots. The builder calls this once after
// construction; plugin installation calls it once after computing every
// node's component bottom-up.
func (w *CoverTreeWriter) RefreshAll() {
	for _, l := range w.layers {
		l.Refresh()
	}
	w.owners.Refresh()
}

func (w *CoverTreeWriter) layerWriter(scaleIndex int32) *CoverLayerWriter {
	l, ok := w.layers[scaleIndex]
	if !ok {
		l = newCoverLayerWriter(scaleIndex)
		w.layers[scaleIndex] = l
		w.scales = append(w.scales, scaleIndex)
		sort.Sort(sort.Reverse(int32Slice(w.scales)))
	}
	return l
}

type int32Slice []int32

func (s int32Slice) Len() int           { return len(s) }
func (s int32Slice) Less(i, j int) bool { return s[i] < s[j] }
func (s int32Slice) Swap(i, j int)       { s[i], s[j] = s[j], s[i] }

// CoverTreeReader is a lock-free, point-in-time read-only view of an entire
// cover tree: every layer's snapshot, the shared PointCloud handle, and the
// tree-level plugin bag at the moment the reader was minted. Safe for
// concurrent use by any number of goroutines; never blocks the writer and is
// never blocked by it (spec §5).
type CoverTreeReader struct {
	params      CoverTreeParameters
	cloud       PointCloud
	layers      map[int32]CoverLayerReader
	scales      []int32
	rootAddress NodeAddress
	plugins     pluginBag
	owners      evmap.Reader[uint64, NodeAddress]
}

// Owner returns the address of the node that owns pointIndex, either as its
// center or as one of its singletons. Used by KnownPath.
func (r *CoverTreeReader) Owner(pointIndex uint64) (NodeAddress, bool) {
	return r.owners.Get(pointIndex)
}

// Parameters returns the parameters this tree was built with.
func (r *CoverTreeReader) Parameters() CoverTreeParameters { return r.params }

// RootAddress returns the address of the tree's root node.
func (r *CoverTreeReader) RootAddress() NodeAddress { return r.rootAddress }

// PointCloud returns the shared, immutable point cloud this tree was built over.
func (r *CoverTreeReader) PointCloud() PointCloud { return r.cloud }

// NumLayers returns how many distinct scales have at least one node.
func (r *CoverTreeReader) NumLayers() int { return len(r.scales) }

// ScaleIndexes returns every populated scale index, sorted descending
// (root's scale first).
func (r *CoverTreeReader) ScaleIndexes() []int32 {
	return append([]int32(nil), r.scales...)
}

// InternalIndex maps a scale index to its position in ScaleIndexes.
// Returns -1 if the scale index has no layer.
func (r *CoverTreeReader) InternalIndex(scaleIndex int32) int {
	for i, si := range r.scales {
		if si == scaleIndex {
			return i
		}
	}
	return -1
}

// Layer returns the reader for a given scale index, if populated.
func (r *CoverTreeReader) Layer(scaleIndex int32) (CoverLayerReader, bool) {
	l, ok := r.layers[scaleIndex]
	return l, ok
}

// GetNodeAnd reads the node at address and maps it with fn. The second
// return is false if no node lives at that address.
func GetNodeAnd[T any](r *CoverTreeReader, address NodeAddress, fn func(*CoverNode) T) (T, bool) {
	var zero T
	l, ok := r.layers[address.ScaleIndex()]
	if !ok {
		return zero, false
	}
	return evmap.GetAnd(l.reader, address.PointIndex(), func(n CoverNode) T { return fn(&n) })
}

// GetNodePluginAnd reads the T-tagged plugin installed on the node at
// address and maps it with fn. The second return is false if there is no
// node at address, or the node has no such plugin installed.
func GetNodePluginAnd[T any, R any](r *CoverTreeReader, address NodeAddress, fn func(*T) R) (R, bool) {
	var zero R
	node, ok := GetNodeAnd(r, address, func(n *CoverNode) CoverNode { return *n })
	if !ok {
		return zero, false
	}
	return pluginAnd[T](&node, fn)
}

// Resync returns a fresh CoverTreeReader synced to the writer's most recent
// RefreshAll, without re-deriving scale metadata.
func (r *CoverTreeReader) Resync() *CoverTreeReader {
	next := &CoverTreeReader{
		params:      r.params,
		cloud:       r.cloud,
		layers:      make(map[int32]CoverLayerReader, len(r.layers)),
		scales:      r.scales,
		rootAddress: r.rootAddress,
		plugins:     r.plugins,
		owners:      r.owners.Resync(),
	}
	for si, l := range r.layers {
		next.layers[si] = l.Resync()
	}
	return next
}

// dist computes the metric distance between two point indexes, fetching both
// through the shared PointCloud.
func (r *CoverTreeReader) dist(ctx context.Context, i, j uint64) (float32, error) {
	pi, err := r.cloud.Point(ctx, i)
	if err != nil {
		return 0, &PointCloudError{Index: i, Err: err}
	}
	pj, err := r.cloud.Point(ctx, j)
	if err != nil {
		return 0, &PointCloudError{Index: j, Err: err}
	}
	return r.cloud.Metric().Dist(pi, pj), nil
}
