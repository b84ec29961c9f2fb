package covertree

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

// Dirichlet is a Dirichlet distribution over the simplex of NodeAddress
// categories, parameterized by concentration pseudo-counts alpha. It is the
// conjugate prior this package uses for "which child does a query path visit
// next at this node", letting a DirichletTracker maintain a closed-form
// posterior KL divergence against it as evidence accumulates.
type Dirichlet struct {
	alpha map[NodeAddress]float64
	sum   float64
}

// NewDirichlet returns a Dirichlet with no concentration mass.
func NewDirichlet() *Dirichlet {
	return &Dirichlet{alpha: make(map[NodeAddress]float64)}
}

// FromCategorical builds a Dirichlet whose concentration parameters equal the
// given categorical's pseudo-counts over categories, plus a uniform smoothing
// term added to every one of the given categories so none carries zero mass.
func FromCategorical(c *Categorical, categories []NodeAddress, smoothing float64) *Dirichlet {
	d := NewDirichlet()
	for _, addr := range categories {
		d.Add(addr, c.Count(addr)+smoothing)
	}
	return d
}

// Add adds alpha concentration to address.
func (d *Dirichlet) Add(address NodeAddress, alpha float64) {
	d.alpha[address] += alpha
	d.sum += alpha
}

// Alpha returns the concentration parameter at address (0 if unset).
func (d *Dirichlet) Alpha(address NodeAddress) float64 { return d.alpha[address] }

// Sum returns the total concentration across every category.
func (d *Dirichlet) Sum() float64 { return d.sum }

// LnPdf evaluates the Dirichlet's log-density at x, a point on the simplex
// given as a map from category to probability. Categories with alpha == 1 and
// x == 0 contribute nothing (the density is finite there); any other
// combination of alpha != 1 and x == 0 makes the density 0 (log -Inf).
func (d *Dirichlet) LnPdf(x map[NodeAddress]float64) float64 {
	lnBeta := -lgamma(d.sum)
	var logTerm float64
	for addr, a := range d.alpha {
		lnBeta += lgamma(a)
		xi := x[addr]
		if xi <= 0 {
			if a == 1 {
				continue
			}
			return math.Inf(-1)
		}
		logTerm += (a - 1) * math.Log(xi)
	}
	return logTerm - lnBeta
}

// PosteriorKLDivergence computes KL(d || other) in closed form using the
// standard Dirichlet-Dirichlet divergence identity, requiring d and other to
// share the same category support. The sum runs over d's categories: one
// that other lacks is treated as alpha 0 in other, which drives the result
// to +Inf; a category only other has enters only through other's total
// concentration and does not make the result +Inf.
//
// Call this on the prior with the posterior as the argument —
// prior.PosteriorKLDivergence(posterior) — matching the convention that self
// is the prior and the argument is the posterior after evidence has been
// folded in; calling it the other way around computes the reverse divergence.
func (d *Dirichlet) PosteriorKLDivergence(other *Dirichlet) float64 {
	kl := lgamma(d.sum) - lgamma(other.sum)
	digammaSum := mathext.Digamma(d.sum)
	for addr, a := range d.alpha {
		b := other.alpha[addr]
		kl += lgamma(b) - lgamma(a)
		kl += (a - b) * (mathext.Digamma(a) - digammaSum)
	}
	return kl
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
