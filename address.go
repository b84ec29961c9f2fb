// Copyright 2022 Sylvain Müller. All rights reserved.
// Mount of this source code is governed by a Apache-2.0 license that can be found
// at https://github.com/tigerwill90/fox/blob/master/LICENSE.txt.

package covertree

import "fmt"

const (
	scaleBits      = 9
	scaleBias      = 64
	pointIndexBits = 64 - scaleBits

	// MinScaleIndex is the smallest scale index a NodeAddress can carry.
	MinScaleIndex int32 = -scaleBias
	// MaxScaleIndex is the largest scale index a NodeAddress can carry.
	MaxScaleIndex int32 = (1<<scaleBits - 1) - scaleBias

	// MaxPointIndex is the largest point index a NodeAddress can carry.
	MaxPointIndex uint64 = 1<<pointIndexBits - 1

	pointIndexMask uint64 = 1<<pointIndexBits - 1
)

// NodeAddress bit-packs a (scale index, point index) pair into a single 64-bit
// word: the top 9 bits hold the scale index biased by 64 (so it can represent
// [-64, 447]), and the low 55 bits hold the point index. Addresses are totally
// ordered on the packed word, which also orders them first by scale index and
// then by point index.
type NodeAddress uint64

// SingletonAddress is a reserved sentinel meaning "the remaining coverage is a
// list of leaf point indices on this node" rather than a real node. It is the
// all-bits-set word, which is why NewNodeAddress refuses to construct the one
// (scale, point) pair that would otherwise collide with it — see DESIGN.md.
const SingletonAddress NodeAddress = ^NodeAddress(0)

// NewNodeAddress builds a checked NodeAddress. It rejects scale indexes outside
// [MinScaleIndex, MaxScaleIndex], point indexes that don't fit in 55 bits, and
// the single (MaxScaleIndex, MaxPointIndex) pair reserved for SingletonAddress.
func NewNodeAddress(scaleIndex int32, pointIndex uint64) (NodeAddress, error) {
	if scaleIndex < MinScaleIndex || scaleIndex > MaxScaleIndex {
		return 0, fmt.Errorf("covertree: scale index %d out of range [%d, %d]", scaleIndex, MinScaleIndex, MaxScaleIndex)
	}
	if pointIndex > MaxPointIndex {
		return 0, fmt.Errorf("covertree: point index %d exceeds %d bits", pointIndex, pointIndexBits)
	}
	if scaleIndex == MaxScaleIndex && pointIndex == MaxPointIndex {
		return 0, fmt.Errorf("covertree: (%d, %d) is reserved for the singleton address", scaleIndex, pointIndex)
	}
	return UncheckedNodeAddress(scaleIndex, pointIndex), nil
}

// UncheckedNodeAddress bit-packs without validation, for hot paths that already
// know the inputs are in range (e.g. re-decoding an address this package produced).
func UncheckedNodeAddress(scaleIndex int32, pointIndex uint64) NodeAddress {
	biased := uint64(scaleIndex + scaleBias)
	return NodeAddress(biased<<pointIndexBits | (pointIndex & pointIndexMask))
}

// ScaleIndex returns the unbiased scale index.
func (a NodeAddress) ScaleIndex() int32 {
	return int32(uint64(a)>>pointIndexBits) - scaleBias
}

// PointIndex returns the point index.
func (a NodeAddress) PointIndex() uint64 {
	return uint64(a) & pointIndexMask
}

// IsSingleton reports whether a is the reserved singleton sentinel.
func (a NodeAddress) IsSingleton() bool {
	return a == SingletonAddress
}

// Less reports whether a sorts before b under the packed-word total order
// (scale index first, then point index).
func (a NodeAddress) Less(b NodeAddress) bool {
	return a < b
}

func (a NodeAddress) String() string {
	if a.IsSingleton() {
		return "singleton"
	}
	return fmt.Sprintf("(%d, %d)", a.ScaleIndex(), a.PointIndex())
}

// ScaleIndexes extracts the scale index of every address into a freshly
// allocated slice, without per-element heap traffic beyond the output slice.
func ScaleIndexes(addrs []NodeAddress) []int32 {
	out := make([]int32, len(addrs))
	for i, a := range addrs {
		out[i] = a.ScaleIndex()
	}
	return out
}

// PointIndexes extracts the point index of every address into a freshly
// allocated slice, without per-element heap traffic beyond the output slice.
func PointIndexes(addrs []NodeAddress) []uint64 {
	out := make([]uint64, len(addrs))
	for i, a := range addrs {
		out[i] = a.PointIndex()
	}
	return out
}
