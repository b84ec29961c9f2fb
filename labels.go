package covertree

import "context"

// LabelPlugin computes a LabelSummary bottom-up over a LabeledPointCloud: a
// leaf's summary comes directly from its own center and singletons; a
// routing node's summary is the union of its children's label counts plus
// any of its own singletons, mirroring GaussianPlugin's combination shape.
type LabelPlugin struct {
	cloud LabeledPointCloud
}

// NewLabelPlugin returns a plugin that summarizes labels bottom-up over cloud.
func NewLabelPlugin(cloud LabeledPointCloud) *LabelPlugin {
	return &LabelPlugin{cloud: cloud}
}

func (p *LabelPlugin) Compute(ctx context.Context, r *CoverTreeReader, node *CoverNode, children []*LabelSummary) (*LabelSummary, error) {
	if node.IsLeaf() {
		return p.fromIndexes(ctx, append([]uint64{node.CenterIndex}, node.Singletons...))
	}

	combined := &LabelSummary{Categories: make(map[any]int)}
	for _, c := range children {
		if c == nil {
			continue
		}
		mergeLabelSummary(combined, c)
	}
	if len(node.Singletons) > 0 {
		own, err := p.fromIndexes(ctx, node.Singletons)
		if err != nil {
			return nil, err
		}
		mergeLabelSummary(combined, own)
	}
	if combined.Count == 0 {
		return p.fromIndexes(ctx, []uint64{node.CenterIndex})
	}
	return combined, nil
}

func (p *LabelPlugin) fromIndexes(ctx context.Context, indexes []uint64) (*LabelSummary, error) {
	summary, err := p.cloud.LabelSummary(ctx, indexes)
	if err != nil {
		return nil, err
	}
	if summary.Categories == nil {
		summary.Categories = make(map[any]int)
	}
	return &summary, nil
}

func mergeLabelSummary(dst, src *LabelSummary) {
	for label, count := range src.Categories {
		dst.Categories[label] += count
	}
	dst.Count += src.Count
}

// Majority returns the most frequent label in the summary and its purity
// (its share of the total count). The second return is false for an empty
// summary.
func (s *LabelSummary) Majority() (label any, purity float64, ok bool) {
	if s.Count == 0 {
		return nil, 0, false
	}
	var best any
	bestCount := -1
	for l, c := range s.Categories {
		if c > bestCount {
			best, bestCount = l, c
		}
	}
	return best, float64(bestCount) / float64(s.Count), true
}
