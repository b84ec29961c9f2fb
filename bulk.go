package covertree

import "fmt"

// BulkInterface precomputes, in one breadth-first pass over the tree, the
// root-to-node path of every address and the owning address of every point,
// so that KnownPath and Apply over many points cost O(1) amortized each
// instead of paying a parent-pointer walk per call. Grounded on the original
// implementation's BFS-based bulk query interface: build once, answer many.
type BulkInterface struct {
	reader *CoverTreeReader
	paths  map[NodeAddress][]NodeAddress
	owner  map[uint64]NodeAddress
}

// NewBulkInterface runs the BFS and returns a ready-to-query interface.
func NewBulkInterface(r *CoverTreeReader) (*BulkInterface, error) {
	paths := make(map[NodeAddress][]NodeAddress)
	owner := make(map[uint64]NodeAddress)

	root := r.RootAddress()
	paths[root] = []NodeAddress{root}

	queue := []NodeAddress{root}
	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]

		node, ok := GetNodeAnd(r, addr, func(n *CoverNode) CoverNode { return *n })
		if !ok {
			return nil, fmt.Errorf("covertree: address %s: %w", addr, ErrNameUnknown)
		}

		owner[node.CenterIndex] = addr
		for _, p := range node.Singletons {
			owner[p] = addr
		}
		if node.IsLeaf() {
			continue
		}

		parentPath := paths[addr]
		for _, child := range node.Children.Addresses {
			childPath := make([]NodeAddress, len(parentPath)+1)
			copy(childPath, parentPath)
			childPath[len(parentPath)] = child
			paths[child] = childPath
			queue = append(queue, child)
		}
	}

	return &BulkInterface{reader: r, paths: paths, owner: owner}, nil
}

// KnownPath returns the precomputed root-to-node path for pointIndex.
func (b *BulkInterface) KnownPath(pointIndex uint64) ([]NodeAddress, error) {
	addr, ok := b.owner[pointIndex]
	if !ok {
		return nil, fmt.Errorf("covertree: point %d: %w", pointIndex, ErrNameUnknown)
	}
	return b.paths[addr], nil
}

// Owner returns the address that owns pointIndex, without its path.
func (b *BulkInterface) Owner(pointIndex uint64) (NodeAddress, bool) {
	addr, ok := b.owner[pointIndex]
	return addr, ok
}

// Len returns how many points this interface has a precomputed owner for.
func (b *BulkInterface) Len() int { return len(b.owner) }

// Apply calls fn once per point this interface knows about, with that
// point's precomputed root-to-node path. Iteration order is unspecified:
// callers whose fn has cross-point ordering requirements (e.g. a sliding
// window tracker) must impose their own order over the points they pass in.
func (b *BulkInterface) Apply(fn func(pointIndex uint64, path []NodeAddress)) {
	for p, addr := range b.owner {
		fn(p, b.paths[addr])
	}
}
