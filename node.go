package covertree

import "reflect"

// CoverNodeChildren describes the expanding frontier of a routing node: the
// scale index every child address lives at (exactly one scale below the
// node's own; the builder never skips a scale), plus the ordered
// list of children. The first entry is always the nested child, the node
// with the same center one scale lower (spec §3 invariant 2).
type CoverNodeChildren struct {
	ScaleIndex int32
	Addresses  []NodeAddress
}

// CoverNode is a single ball in the cover tree: a center point, the scale at
// which it covers, and either a further subdivision (Children) or a flat list
// of Singletons it covers directly. Exactly one of the two is meaningful per
// spec §3 invariant 2 (a leaf has no Children; a routing node's Children is
// always present and includes a nested child).
type CoverNode struct {
	CenterIndex   uint64
	ScaleIndex    int32
	ParentAddress *NodeAddress
	Children      *CoverNodeChildren
	Singletons    []uint64
	CoverageCount uint64
	plugins       pluginBag
}

// IsLeaf reports whether this node has no children.
func (n *CoverNode) IsLeaf() bool { return n.Children == nil }

// Address returns the NodeAddress this node is stored under.
func (n *CoverNode) Address() NodeAddress {
	return UncheckedNodeAddress(n.ScaleIndex, n.CenterIndex)
}

// NestedChild returns the node's required same-center child one scale down,
// if this is a routing node.
func (n *CoverNode) NestedChild() (NodeAddress, bool) {
	if n.Children == nil || len(n.Children.Addresses) == 0 {
		return 0, false
	}
	return n.Children.Addresses[0], true
}

// SingletonsLen returns the number of points in the node's singleton list;
// its center is not counted.
func (n *CoverNode) SingletonsLen() int { return len(n.Singletons) }

// clone returns a shallow copy of n, safe to hand to evmap.Map.Update: slices
// and the plugin bag are replaced wholesale rather than mutated in place, so
// a reader holding the pre-update node never observes the mutation.
func (n *CoverNode) clone() CoverNode {
	cp := *n
	return cp
}

// pluginBag is a heterogeneous, type-keyed, copy-on-write payload container.
// Installing a plugin never mutates an existing bag: it allocates a new map
// with the old entries plus the new one, so a bag handed to one reader is
// never changed out from under it (spec §4.7, §5 "Plugin bags: writer-mutated
// during plugin installation; readers observe only after refresh").
type pluginBag map[reflect.Type]any

func (b pluginBag) with(tag reflect.Type, val any) pluginBag {
	next := make(pluginBag, len(b)+1)
	for k, v := range b {
		next[k] = v
	}
	next[tag] = val
	return next
}

// pluginAnd reads the plugin tagged with T out of the node's bag and maps it
// with fn. The second return is false if no such plugin has been installed.
func pluginAnd[T any, R any](n *CoverNode, fn func(*T) R) (R, bool) {
	tag := reflect.TypeOf((*T)(nil))
	raw, ok := n.plugins[tag]
	if !ok {
		var zero R
		return zero, false
	}
	return fn(raw.(*T)), true
}
