package covertree

import "context"

// Point is a dense feature vector. The PointCloud and Metric interfaces are
// agnostic to anything beyond its length, so sparse backends can implement
// PointCloud by materializing a dense view per call.
type Point []float32

// Metric provides the distance oracle the tree builds and queries against. A
// conforming Metric satisfies the usual axioms (non-negativity, symmetry,
// triangle inequality); violating them only degrades tree quality, never
// memory safety, since the tree never trusts Dist beyond comparisons.
type Metric interface {
	// Dist returns the distance between two points under this metric.
	Dist(a, b Point) float32
}

// MetricFunc adapts a plain function to the Metric interface.
type MetricFunc func(a, b Point) float32

func (f MetricFunc) Dist(a, b Point) float32 { return f(a, b) }

// PointCloud is the abstract point storage and distance oracle the tree is
// built over. Implementations must be safe for concurrent read access: every
// method may be called from multiple goroutines once construction begins, and
// none may mutate state visible to other callers. Point-cloud file formats,
// metric kernel implementations, and label loaders are out of scope for this
// package — PointCloud only describes the contract the core consumes.
type PointCloud interface {
	// Dim returns the dimensionality of every point in the cloud.
	Dim() int
	// Len returns the total number of points.
	Len() int
	// Point returns the point at index i, or an error if i is out of range or
	// otherwise unavailable (e.g. backed by a file that failed to read).
	Point(ctx context.Context, i uint64) (Point, error)
	// ReferenceIndexes enumerates every point index the cloud can serve,
	// in the order construction should consider them.
	ReferenceIndexes() []uint64
	// Metric returns the distance oracle for this cloud.
	Metric() Metric
}

// LabeledPointCloud is implemented by PointClouds that additionally carry a
// label per point and can summarize a set of labels (e.g. a majority class
// plus its purity), used by the label-summary plugin.
type LabeledPointCloud interface {
	PointCloud
	// Label returns the label of the point at index i.
	Label(ctx context.Context, i uint64) (any, error)
	// LabelSummary summarizes the labels at the given indexes.
	LabelSummary(ctx context.Context, indexes []uint64) (LabelSummary, error)
}

// LabelSummary summarizes a set of labels as per-label counts. LabelPlugin
// merges summaries by adding their Categories and Count, and Majority reads
// them.
type LabelSummary struct {
	// Categories maps each observed label to its count within the summarized set.
	Categories map[any]int
	// Count is the total number of labels summarized.
	Count int
}
