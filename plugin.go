package covertree

import (
	"context"
	"reflect"
	"sort"
)

// NodePlugin computes a per-node payload of type T from a node's own data and
// the already-computed T payloads of its children. InstallPlugin guarantees
// Compute is never called for a node before every one of its children's
// Compute calls has returned (spec §4.7: plugins are always bottom-up).
type NodePlugin[T any] interface {
	Compute(ctx context.Context, r *CoverTreeReader, node *CoverNode, children []*T) (*T, error)
}

// InstallPlugin runs plugin over every node of w, strictly bottom-up (lowest
// scale index — the deepest nodes — first, root last, since every child's
// scale index is exactly its parent's minus one), and tags each node's result
// into its plugin bag under T's type. It refreshes every layer once at the end.
func InstallPlugin[T any](ctx context.Context, w *CoverTreeWriter, plugin NodePlugin[T]) error {
	tag := reflect.TypeOf((*T)(nil))
	computed := make(map[NodeAddress]*T)

	scales := append([]int32(nil), w.scales...)
	sort.Sort(int32Slice(scales))

	for _, scaleIndex := range scales {
		lw, ok := w.layers[scaleIndex]
		if !ok {
			continue
		}
		reader := lw.Reader()
		r := w.Reader()
		for centerIndex, node := range reader.All() {
			n := node
			var children []*T
			if !n.IsLeaf() {
				children = make([]*T, len(n.Children.Addresses))
				for i, addr := range n.Children.Addresses {
					children[i] = computed[addr]
				}
			}
			val, err := plugin.Compute(ctx, r, &n, children)
			if err != nil {
				return err
			}
			addr := UncheckedNodeAddress(scaleIndex, centerIndex)
			computed[addr] = val
			lw.Update(centerIndex, func(cur CoverNode) CoverNode {
				cur.plugins = cur.plugins.with(tag, val)
				return cur
			})
		}
	}

	w.RefreshAll()
	return nil
}
