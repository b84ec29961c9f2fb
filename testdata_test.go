package covertree

import (
	"context"
	"errors"
)

// sliceCloud is a minimal in-memory PointCloud used across the test suite: a
// fixed slice of dense points under Euclidean distance.
type sliceCloud struct {
	points []Point
}

func newSliceCloud(points ...Point) *sliceCloud {
	return &sliceCloud{points: points}
}

func (c *sliceCloud) Dim() int { return len(c.points[0]) }

func (c *sliceCloud) Len() int { return len(c.points) }

func (c *sliceCloud) Point(_ context.Context, i uint64) (Point, error) {
	if i >= uint64(len(c.points)) {
		return nil, errPointOutOfRange
	}
	return c.points[i], nil
}

func (c *sliceCloud) ReferenceIndexes() []uint64 {
	out := make([]uint64, len(c.points))
	for i := range c.points {
		out[i] = uint64(i)
	}
	return out
}

func (c *sliceCloud) Metric() Metric { return MetricFunc(euclidean) }

var errPointOutOfRange = errors.New("point index out of range")

func euclidean(a, b Point) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sqrt32(sum)
}

func sqrt32(x float32) float32 {
	// Newton's method is plenty for a test-only metric; avoids importing math
	// just to call Sqrt on a float32 cast.
	if x == 0 {
		return 0
	}
	z := x
	for i := 0; i < 30; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

// labeledSliceCloud extends sliceCloud with a label per point, for exercising
// the LabeledPointCloud contract.
type labeledSliceCloud struct {
	*sliceCloud
	labels []string
}

func newLabeledSliceCloud(labels []string, points ...Point) *labeledSliceCloud {
	return &labeledSliceCloud{sliceCloud: newSliceCloud(points...), labels: labels}
}

func (c *labeledSliceCloud) Label(_ context.Context, i uint64) (any, error) {
	if i >= uint64(len(c.labels)) {
		return nil, errPointOutOfRange
	}
	return c.labels[i], nil
}

func (c *labeledSliceCloud) LabelSummary(_ context.Context, indexes []uint64) (LabelSummary, error) {
	categories := make(map[any]int, len(indexes))
	for _, idx := range indexes {
		if idx >= uint64(len(c.labels)) {
			return LabelSummary{}, errPointOutOfRange
		}
		categories[c.labels[idx]]++
	}
	return LabelSummary{Categories: categories, Count: len(indexes)}, nil
}

// grid1D returns n points spaced 1 apart on the real line, embedded as
// single-dimension vectors: a simple cloud with a known, checkable geometry.
func grid1D(n int) []Point {
	pts := make([]Point, n)
	for i := 0; i < n; i++ {
		pts[i] = Point{float32(i)}
	}
	return pts
}
