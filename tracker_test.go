package covertree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(windowCap int) (*DirichletTracker, NodeAddress, NodeAddress) {
	a := UncheckedNodeAddress(0, 1)
	b := UncheckedNodeAddress(0, 2)
	reference := NewDirichlet()
	reference.Add(a, 5)
	reference.Add(b, 5)
	tr := NewDirichletTracker([]NodeAddress{a, b}, reference, 0.5, windowCap)
	return tr, a, b
}

func TestNewDirichletTrackerMatchesClosedForm(t *testing.T) {
	tr, a, b := newTestTracker(0)

	reference := NewDirichlet()
	reference.Add(a, 5)
	reference.Add(b, 5)

	posterior := NewDirichlet()
	posterior.Add(a, 0.5)
	posterior.Add(b, 0.5)

	assert.InDelta(t, reference.PosteriorKLDivergence(posterior), tr.KLDivergence(), 1e-9)
}

func TestDirichletTrackerAddObservationIncrementalMatchesClosedForm(t *testing.T) {
	tr, a, b := newTestTracker(0)

	reference := NewDirichlet()
	reference.Add(a, 5)
	reference.Add(b, 5)

	tr.AddObservation(a)
	tr.AddObservation(a)
	tr.AddObservation(b)

	posterior := NewDirichlet()
	posterior.Add(a, 2.5) // 0.5 smoothing + 2 observations
	posterior.Add(b, 1.5) // 0.5 smoothing + 1 observation

	assert.InDelta(t, reference.PosteriorKLDivergence(posterior), tr.KLDivergence(), 1e-9)
	assert.Equal(t, 2.5, tr.Concentration(a))
	assert.Equal(t, 1.5, tr.Concentration(b))
	assert.Equal(t, 4.0, tr.Sum())
}

func TestDirichletTrackerWindowEviction(t *testing.T) {
	tr, a, b := newTestTracker(2)

	tr.AddObservation(a)
	tr.AddObservation(a)
	assert.Equal(t, 2, tr.WindowLen())
	assert.Equal(t, 2.5, tr.Concentration(a))

	// Third observation evicts the oldest (a): a drops back to one
	// observation and b gains one.
	tr.AddObservation(b)
	assert.Equal(t, 2, tr.WindowLen(), "window stays at its cap")
	assert.Equal(t, 1.5, tr.Concentration(a))
	assert.Equal(t, 1.5, tr.Concentration(b))
}

func TestDirichletTrackerRemoveObservation(t *testing.T) {
	tr, a, b := newTestTracker(0)

	tr.AddObservation(a)
	tr.AddObservation(b)
	require.Equal(t, 2, tr.WindowLen())

	tr.RemoveObservation(a)
	assert.Equal(t, 1, tr.WindowLen())
	assert.Equal(t, 0.5, tr.Concentration(a))
	assert.Equal(t, 1.5, tr.Concentration(b))
}

func TestDirichletTrackerUnboundedWindowNeverEvicts(t *testing.T) {
	tr, a, _ := newTestTracker(0)
	for i := 0; i < 50; i++ {
		tr.AddObservation(a)
	}
	assert.Equal(t, 50, tr.WindowLen())
}
