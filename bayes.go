package covertree

import (
	"math"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// klDriftEpsilon is the threshold a tracker's KL divergence must clear to
// count as "drifted" rather than noise from incremental float arithmetic.
const klDriftEpsilon = 1e-10

// KLDivergenceStats aggregates every node's current KL divergence reading
// into tree-wide and per-layer summaries: the extremes, how many nodes have
// actually drifted (KL above klDriftEpsilon), the first and second moments
// over those, plain and weighted per-layer totals (each node's KL weighted by
// its tracker's posterior total concentration, DirichletTracker.Sum), the
// per-layer count of drifted nodes, and the overall KL across every node
// weighted by its mass.
type KLDivergenceStats struct {
	Max                 float64
	Min                 float64
	NzCount             int
	Moment1Nz           float64
	Moment2Nz           float64
	LayerTotals         map[int32]float64
	WeightedLayerTotals map[int32]float64
	NzLayerCounts       map[int32]int
	OverallKL           float64
}

// BayesCovertree attaches a DirichletTracker to every routing node of a
// CoverTreeReader: each tracker's reference distribution is seeded from its
// node's children's CoverageCount (the traffic split a stationary point
// distribution would imply), and Observe feeds it the routing decisions
// realized query paths actually made, so KLDivergence at a node measures how
// far its recent traffic has drifted from that reference. It implements
// prometheus.Collector so KL readings can be scraped directly.
type BayesCovertree struct {
	reader    *CoverTreeReader
	smoothing float64
	window    int

	mu       sync.Mutex
	trackers map[NodeAddress]*DirichletTracker

	klGauge *prometheus.GaugeVec
}

// NewBayesCovertree builds one tracker per routing node of r.
func NewBayesCovertree(r *CoverTreeReader, smoothing float64, window int) *BayesCovertree {
	b := &BayesCovertree{
		reader:    r,
		smoothing: smoothing,
		window:    window,
		trackers:  make(map[NodeAddress]*DirichletTracker),
		klGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "covertree",
			Subsystem: "bayes",
			Name:      "node_kl_divergence",
			Help:      "Posterior KL divergence between a node's observed child-routing distribution and its reference distribution.",
		}, []string{"address"}),
	}
	for _, scaleIndex := range r.ScaleIndexes() {
		layer, ok := r.Layer(scaleIndex)
		if !ok {
			continue
		}
		layer.ForEach(func(centerIndex uint64, node *CoverNode) {
			if node.IsLeaf() {
				return
			}
			b.trackers[node.Address()] = b.newTracker(node)
		})
	}
	return b
}

func (b *BayesCovertree) newTracker(node *CoverNode) *DirichletTracker {
	reference := NewDirichlet()
	categories := node.Children.Addresses
	for _, addr := range categories {
		weight, _ := GetNodeAnd(b.reader, addr, func(n *CoverNode) uint64 { return n.CoverageCount })
		reference.Add(addr, float64(weight)+b.smoothing)
	}
	return NewDirichletTracker(categories, reference, b.smoothing, b.window)
}

// Observe feeds a realized root-to-leaf path (as returned by Path or walked
// from a RoutingKnn result) to every node along it: for each address except
// the last, its tracker records that path's successor as the child visited.
func (b *BayesCovertree) Observe(path []NodeAddress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < len(path)-1; i++ {
		tracker, ok := b.trackers[path[i]]
		if !ok {
			continue
		}
		tracker.AddObservation(path[i+1])
		b.klGauge.WithLabelValues(path[i].String()).Set(tracker.KLDivergence())
	}
}

// Tracker returns the tracker installed at address, if any.
func (b *BayesCovertree) Tracker(address NodeAddress) (*DirichletTracker, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.trackers[address]
	return t, ok
}

// Stats aggregates every tracker's current KL divergence into tree-wide and
// per-layer summaries.
func (b *BayesCovertree) Stats() KLDivergenceStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := KLDivergenceStats{
		Min:                 math.Inf(1),
		LayerTotals:         make(map[int32]float64),
		WeightedLayerTotals: make(map[int32]float64),
		NzLayerCounts:       make(map[int32]int),
	}
	for addr, tr := range b.trackers {
		kl := tr.KLDivergence()
		if kl > stats.Max {
			stats.Max = kl
		}
		if kl < stats.Min {
			stats.Min = kl
		}
		scaleIndex := addr.ScaleIndex()
		if kl > klDriftEpsilon {
			stats.NzCount++
			stats.Moment1Nz += kl
			stats.Moment2Nz += kl * kl
			stats.NzLayerCounts[scaleIndex]++
		}
		weighted := kl * tr.Sum()
		stats.LayerTotals[scaleIndex] += kl
		stats.WeightedLayerTotals[scaleIndex] += weighted
		stats.OverallKL += weighted
	}
	if len(b.trackers) == 0 {
		stats.Min = 0
	}
	return stats
}

// Describe implements prometheus.Collector.
func (b *BayesCovertree) Describe(ch chan<- *prometheus.Desc) {
	b.klGauge.Describe(ch)
}

// Collect implements prometheus.Collector.
func (b *BayesCovertree) Collect(ch chan<- prometheus.Metric) {
	b.klGauge.Collect(ch)
}
