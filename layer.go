package covertree

import (
	"iter"

	"github.com/arborway/covertree/internal/evmap"
)

// CoverLayerWriter accumulates pending node insertions and updates for a
// single scale index. It is exclusively owned by the CoverTreeBuilder; none
// of its methods are safe for concurrent use by multiple writers (spec §4.2).
type CoverLayerWriter struct {
	scaleIndex int32
	nodes      *evmap.Map[uint64, CoverNode]
}

func newCoverLayerWriter(scaleIndex int32) *CoverLayerWriter {
	return &CoverLayerWriter{scaleIndex: scaleIndex, nodes: evmap.New[uint64, CoverNode]()}
}

// Insert stages a node under its center index. Invisible to readers until Refresh.
func (w *CoverLayerWriter) Insert(centerIndex uint64, node CoverNode) {
	w.nodes.Insert(centerIndex, node)
}

// Update applies fn to the node at centerIndex in the working copy, if present.
func (w *CoverLayerWriter) Update(centerIndex uint64, fn func(CoverNode) CoverNode) {
	w.nodes.Update(centerIndex, fn)
}

// Refresh makes every pending change visible to future CoverLayerReader
// handles. Existing readers are unaffected until they resynchronize.
func (w *CoverLayerWriter) Refresh() {
	w.nodes.Refresh()
}

// Reader mints a CoverLayerReader synced to this writer's latest Refresh.
func (w *CoverLayerWriter) Reader() CoverLayerReader {
	return CoverLayerReader{scaleIndex: w.scaleIndex, reader: w.nodes.Factory().Handle()}
}

// Len returns the number of nodes in the writer's working copy.
func (w *CoverLayerWriter) Len() int { return w.nodes.Len() }

// CoverLayerReader is a lock-free, point-in-time read-only view of one scale's
// nodes. Multiple readers may exist concurrently, on any goroutine, without
// coordination; none of them block the writer, and none are blocked by it.
type CoverLayerReader struct {
	scaleIndex int32
	reader     evmap.Reader[uint64, CoverNode]
}

// ScaleIndex returns the scale this layer holds nodes at.
func (r CoverLayerReader) ScaleIndex() int32 { return r.scaleIndex }

// Len returns the number of nodes in this reader's snapshot.
func (r CoverLayerReader) Len() int { return r.reader.Len() }

// IsEmpty reports whether this reader's snapshot has no nodes.
func (r CoverLayerReader) IsEmpty() bool { return r.reader.IsEmpty() }

// GetLayerNodeAnd reads the node centered at centerIndex and maps it with fn.
// The second return is false if no node has that center on this layer.
func GetLayerNodeAnd[T any](r CoverLayerReader, centerIndex uint64, fn func(*CoverNode) T) (T, bool) {
	return evmap.GetAnd(r.reader, centerIndex, func(n CoverNode) T { return fn(&n) })
}

// ForEach calls fn once per node in this reader's snapshot.
func (r CoverLayerReader) ForEach(fn func(centerIndex uint64, node *CoverNode)) {
	for k, v := range r.reader.All() {
		n := v
		fn(k, &n)
	}
}

// All returns a range-over-func iterator over this reader's snapshot.
func (r CoverLayerReader) All() iter.Seq2[uint64, CoverNode] {
	return r.reader.All()
}

// NodeCenterIndexes collects every center index present in this reader's snapshot.
func (r CoverLayerReader) NodeCenterIndexes() []uint64 {
	out := make([]uint64, 0, r.reader.Len())
	for k := range r.reader.Keys() {
		out = append(out, k)
	}
	return out
}

// Resync returns a fresh reader synced to the writer's latest Refresh.
func (r CoverLayerReader) Resync() CoverLayerReader {
	return CoverLayerReader{scaleIndex: r.scaleIndex, reader: r.reader.Resync()}
}
