package covertree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mathext"
)

// klDirichletNaive independently recomputes the Dirichlet-Dirichlet closed
// form KL(Dir(alpha) || Dir(beta)) from the gamma/digamma functions directly,
// without going through Dirichlet.PosteriorKLDivergence, so it can pin down
// the production code's result and catch a reversed argument order.
func klDirichletNaive(alpha, beta map[NodeAddress]float64) float64 {
	var a0, b0 float64
	for _, v := range alpha {
		a0 += v
	}
	for _, v := range beta {
		b0 += v
	}
	kl := lgamma(a0) - lgamma(b0)
	for addr, av := range alpha {
		bv := beta[addr]
		kl += lgamma(bv) - lgamma(av)
		kl += (av - bv) * (mathext.Digamma(av) - mathext.Digamma(a0))
	}
	return kl
}

func TestDirichletAddAccumulatesSum(t *testing.T) {
	d := NewDirichlet()
	a := UncheckedNodeAddress(0, 1)
	b := UncheckedNodeAddress(0, 2)

	d.Add(a, 2)
	d.Add(b, 3)

	assert.Equal(t, float64(2), d.Alpha(a))
	assert.Equal(t, float64(3), d.Alpha(b))
	assert.Equal(t, float64(5), d.Sum())
}

func TestFromCategoricalAddsSmoothing(t *testing.T) {
	a := UncheckedNodeAddress(0, 1)
	b := UncheckedNodeAddress(0, 2)

	c := NewCategorical()
	c.Add(a, 4)
	// b has no observed count at all, but is still a valid category.

	d := FromCategorical(c, []NodeAddress{a, b}, 0.5)
	assert.Equal(t, 4.5, d.Alpha(a))
	assert.Equal(t, 0.5, d.Alpha(b))
}

func TestDirichletPosteriorKLDivergenceIdenticalIsZero(t *testing.T) {
	a := UncheckedNodeAddress(0, 1)
	b := UncheckedNodeAddress(0, 2)

	d1 := NewDirichlet()
	d1.Add(a, 3)
	d1.Add(b, 7)

	d2 := NewDirichlet()
	d2.Add(a, 3)
	d2.Add(b, 7)

	assert.InDelta(t, 0, d1.PosteriorKLDivergence(d2), 1e-9)
}

func TestDirichletPosteriorKLDivergencePositiveForDistinctDistributions(t *testing.T) {
	a := UncheckedNodeAddress(0, 1)
	b := UncheckedNodeAddress(0, 2)

	d1 := NewDirichlet()
	d1.Add(a, 8)
	d1.Add(b, 2)

	d2 := NewDirichlet()
	d2.Add(a, 2)
	d2.Add(b, 2)

	kl12 := d1.PosteriorKLDivergence(d2)
	kl21 := d2.PosteriorKLDivergence(d1)

	assert.Greater(t, kl12, 0.0)
	assert.Greater(t, kl21, 0.0)
}

func TestDirichletPosteriorKLDivergenceMissingCategoryIsInf(t *testing.T) {
	a := UncheckedNodeAddress(0, 1)
	b := UncheckedNodeAddress(0, 2)

	d1 := NewDirichlet()
	d1.Add(a, 1)
	d1.Add(b, 1)

	d2 := NewDirichlet()
	d2.Add(a, 1) // b entirely absent -> alpha 0 there

	kl := d1.PosteriorKLDivergence(d2)
	assert.True(t, math.IsInf(kl, 1), "a zero-alpha category should blow up the divergence")
}

func TestDirichletPosteriorKLDivergenceMatchesScenarioS3(t *testing.T) {
	a := UncheckedNodeAddress(0, 1)
	b := UncheckedNodeAddress(0, 2)

	prior := NewDirichlet()
	prior.Add(a, 6)
	prior.Add(b, 6)

	evidence := NewCategorical()
	evidence.Add(a, 4)
	evidence.Add(b, 8)

	posterior := NewDirichlet()
	posterior.Add(a, prior.Alpha(a)+evidence.Count(a))
	posterior.Add(b, prior.Alpha(b)+evidence.Count(b))
	assert.Equal(t, float64(10), posterior.Alpha(a))
	assert.Equal(t, float64(14), posterior.Alpha(b))

	got := prior.PosteriorKLDivergence(posterior)
	want := klDirichletNaive(
		map[NodeAddress]float64{a: 6, b: 6},
		map[NodeAddress]float64{a: 10, b: 14},
	)
	assert.InDelta(t, want, got, 1e-10)
}

func TestDirichletLnPdfUniform(t *testing.T) {
	a := UncheckedNodeAddress(0, 1)
	b := UncheckedNodeAddress(0, 2)

	d := NewDirichlet()
	d.Add(a, 1)
	d.Add(b, 1)

	// Dirichlet(1,1) is the uniform distribution on the 1-simplex: density 1 everywhere.
	lp := d.LnPdf(map[NodeAddress]float64{a: 0.5, b: 0.5})
	assert.InDelta(t, 0, lp, 1e-6)
}

func TestDirichletLnPdfZeroMassNonUnitAlphaIsNegInf(t *testing.T) {
	a := UncheckedNodeAddress(0, 1)
	b := UncheckedNodeAddress(0, 2)

	d := NewDirichlet()
	d.Add(a, 2)
	d.Add(b, 2)

	lp := d.LnPdf(map[NodeAddress]float64{a: 0, b: 1})
	assert.True(t, math.IsInf(lp, -1))
}
