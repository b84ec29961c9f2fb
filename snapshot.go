package covertree

import (
	"fmt"

	"github.com/arborway/covertree/internal/evmap"
)

// Snapshot is a flat, serialization-friendly representation of a CoverTree's
// structural state: every node across every layer, plus the parameters and
// root address needed to reconstruct a CoverTreeReader. It excludes plugin
// bags and the PointCloud itself: the caller passes the PointCloud to Restore
// and reinstalls plugins afterwards. The exact byte encoding (JSON, gob, protobuf, ...)
// is a caller concern; Snapshot only fixes which named fields round-trip.
type Snapshot struct {
	Params      CoverTreeParameters
	RootAddress NodeAddress
	Nodes       []SnapshotNode
}

// SnapshotNode is one CoverNode flattened for serialization.
type SnapshotNode struct {
	Address       NodeAddress
	CenterIndex   uint64
	ScaleIndex    int32
	ParentAddress *NodeAddress
	ChildScale    int32
	Children      []NodeAddress
	Singletons    []uint64
	CoverageCount uint64
}

// Snapshot flattens every layer of r into a Snapshot.
func (r *CoverTreeReader) Snapshot() Snapshot {
	snap := Snapshot{Params: r.params, RootAddress: r.rootAddress}
	for _, scaleIndex := range r.scales {
		layer, ok := r.layers[scaleIndex]
		if !ok {
			continue
		}
		layer.ForEach(func(centerIndex uint64, node *CoverNode) {
			sn := SnapshotNode{
				Address:       node.Address(),
				CenterIndex:   node.CenterIndex,
				ScaleIndex:    node.ScaleIndex,
				ParentAddress: node.ParentAddress,
				Singletons:    append([]uint64(nil), node.Singletons...),
				CoverageCount: node.CoverageCount,
			}
			if !node.IsLeaf() {
				sn.ChildScale = node.Children.ScaleIndex
				sn.Children = append([]NodeAddress(nil), node.Children.Addresses...)
			}
			snap.Nodes = append(snap.Nodes, sn)
		})
	}
	return snap
}

// Restore rebuilds a CoverTreeWriter from a Snapshot and the PointCloud it
// was originally built over. The caller must ensure cloud serves the same
// point indexes the snapshot's addresses reference; Restore only checks that
// the snapshot is internally consistent enough to contain its own root.
func Restore(snap Snapshot, cloud PointCloud) (*CoverTreeWriter, error) {
	foundRoot := false
	for _, sn := range snap.Nodes {
		if sn.Address == snap.RootAddress {
			foundRoot = true
			break
		}
	}
	if !foundRoot {
		return nil, fmt.Errorf("covertree: snapshot missing root node %s: %w", snap.RootAddress, ErrSerdeFailure)
	}

	w := &CoverTreeWriter{
		params:      snap.Params,
		cloud:       cloud,
		layers:      make(map[int32]*CoverLayerWriter),
		rootAddress: snap.RootAddress,
		owners:      evmap.New[uint64, NodeAddress](),
	}
	for _, sn := range snap.Nodes {
		node := CoverNode{
			CenterIndex:   sn.CenterIndex,
			ScaleIndex:    sn.ScaleIndex,
			ParentAddress: sn.ParentAddress,
			Singletons:    sn.Singletons,
			CoverageCount: sn.CoverageCount,
		}
		if sn.Children != nil {
			node.Children = &CoverNodeChildren{ScaleIndex: sn.ChildScale, Addresses: sn.Children}
		}
		w.layerWriter(sn.ScaleIndex).Insert(sn.CenterIndex, node)
		w.recordOwner(sn.CenterIndex, sn.Address)
		for _, p := range sn.Singletons {
			w.recordOwner(p, sn.Address)
		}
	}
	w.RefreshAll()
	return w, nil
}
