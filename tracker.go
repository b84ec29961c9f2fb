package covertree

import "gonum.org/v1/gonum/mathext"

// DirichletTracker maintains a running Dirichlet posterior over a fixed set
// of categories (typically one node's children addresses), updated against a
// sliding window of the most recent observations, and an incrementally
// maintained KL(reference || posterior) divergence — the prior is self in
// the spec's posterior_kl_divergence convention, the running posterior is
// the argument. Each AddObservation/RemoveObservation call costs O(1): since
// the reference never changes, its digamma terms are precomputed once at
// construction; only the posterior-dependent partial sums need updating, and
// only for the single category that changed.
type DirichletTracker struct {
	reference *Dirichlet
	smoothing float64
	windowCap int

	alpha  map[NodeAddress]float64
	sum    float64
	window []NodeAddress

	// coeff[addr] = digamma(reference.Alpha(addr)) - digamma(reference.Sum())
	// is fixed for the life of the tracker, since the reference never
	// changes; precomputed once so bump never calls Digamma on the reference.
	coeff map[NodeAddress]float64
	// refG and refWeighted are the reference-only halves of the closed form:
	// refG = sum_i lgamma(reference.Alpha(i)), refWeighted = sum_i
	// reference.Alpha(i) * coeff[i]. Both constant once the reference is set.
	refG        float64
	refWeighted float64

	// g and weighted are the running posterior-dependent partial sums:
	// g = sum_i lgamma(alpha_i), weighted = sum_i alpha_i * coeff[i]. Updated
	// by replacing only category j's term when alpha_j changes.
	g        float64
	weighted float64
	kl       float64
}

// NewDirichletTracker seeds a tracker over categories against reference, with
// smoothing pseudo-count given to every category before any observation and
// windowCap bounding how many recent observations are kept (0 means
// unbounded: AddObservation never evicts).
func NewDirichletTracker(categories []NodeAddress, reference *Dirichlet, smoothing float64, windowCap int) *DirichletTracker {
	t := &DirichletTracker{
		reference: reference,
		smoothing: smoothing,
		windowCap: windowCap,
		alpha:     make(map[NodeAddress]float64, len(categories)),
		coeff:     make(map[NodeAddress]float64, len(categories)),
	}
	refDigammaSum := mathext.Digamma(reference.Sum())
	for _, c := range categories {
		t.alpha[c] = smoothing
		t.sum += smoothing

		b := reference.Alpha(c)
		coeff := mathext.Digamma(b) - refDigammaSum
		t.coeff[c] = coeff
		t.refG += lgamma(b)
		t.refWeighted += b * coeff
	}
	for _, c := range categories {
		a := t.alpha[c]
		t.g += lgamma(a)
		t.weighted += a * t.coeff[c]
	}
	t.recomputeKL()
	return t
}

// bump applies delta to address's running concentration, updating g and
// weighted by subtracting address's old contribution and adding its new one
// — the O(1) step every other category's term is untouched by.
func (t *DirichletTracker) bump(address NodeAddress, delta float64) {
	a := t.alpha[address]
	c := t.coeff[address]
	t.g -= lgamma(a)
	t.weighted -= a * c

	a += delta
	t.alpha[address] = a
	t.sum += delta

	t.g += lgamma(a)
	t.weighted += a * c
}

// recomputeKL evaluates KL(reference || posterior) via the closed form
// KL(Dir(b) || Dir(a)) = lgamma(b0) - lgamma(a0) + sum_i[lgamma(a_i) -
// lgamma(b_i)] + sum_i (b_i - a_i) * (digamma(b_i) - digamma(b0)), with b the
// fixed reference concentration and a the running posterior concentration.
func (t *DirichletTracker) recomputeKL() {
	refSum := t.reference.Sum()
	t.kl = lgamma(refSum) - lgamma(t.sum) + (t.g - t.refG) + (t.refWeighted - t.weighted)
}

// AddObservation records a visit to address, evicting the oldest window
// entry if the tracker is at capacity.
func (t *DirichletTracker) AddObservation(address NodeAddress) {
	t.bump(address, 1)
	t.window = append(t.window, address)
	if t.windowCap > 0 && len(t.window) > t.windowCap {
		oldest := t.window[0]
		t.window = t.window[1:]
		t.bump(oldest, -1)
	}
	t.recomputeKL()
}

// RemoveObservation undoes one observation of address, for callers replaying
// a window backward. It is the caller's responsibility to only remove
// addresses actually in the window; removing more than was added drives that
// category's concentration below its smoothing floor.
func (t *DirichletTracker) RemoveObservation(address NodeAddress) {
	for i := len(t.window) - 1; i >= 0; i-- {
		if t.window[i] == address {
			t.window = append(t.window[:i], t.window[i+1:]...)
			break
		}
	}
	t.bump(address, -1)
	t.recomputeKL()
}

// KLDivergence returns the current posterior KL divergence against the fixed
// reference distribution.
func (t *DirichletTracker) KLDivergence() float64 { return t.kl }

// WindowLen returns the number of observations currently in the sliding window.
func (t *DirichletTracker) WindowLen() int { return len(t.window) }

// Concentration returns the running posterior's concentration at address.
func (t *DirichletTracker) Concentration(address NodeAddress) float64 { return t.alpha[address] }

// Sum returns the running posterior's total concentration.
func (t *DirichletTracker) Sum() float64 { return t.sum }
