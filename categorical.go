package covertree

import "math"

// Categorical is a probability distribution over NodeAddress categories,
// represented as unnormalized pseudo-counts plus their cached sum so
// normalization and incremental updates are both O(1).
type Categorical struct {
	counts map[NodeAddress]float64
	total  float64
}

// NewCategorical returns an empty distribution.
func NewCategorical() *Categorical {
	return &Categorical{counts: make(map[NodeAddress]float64)}
}

// Add adds weight pseudo-count to address.
func (c *Categorical) Add(address NodeAddress, weight float64) {
	c.counts[address] += weight
	c.total += weight
}

// Remove subtracts weight pseudo-count from address, dropping the entry
// entirely once its count reaches zero or below.
func (c *Categorical) Remove(address NodeAddress, weight float64) {
	c.counts[address] -= weight
	c.total -= weight
	if c.counts[address] <= 0 {
		delete(c.counts, address)
	}
}

// Merge adds every pseudo-count in other into c.
func (c *Categorical) Merge(other *Categorical) {
	for addr, w := range other.counts {
		c.Add(addr, w)
	}
}

// Prob returns the normalized probability of address, 0 if c has no mass at all.
func (c *Categorical) Prob(address NodeAddress) float64 {
	if c.total == 0 {
		return 0
	}
	return c.counts[address] / c.total
}

// Count returns the raw pseudo-count at address.
func (c *Categorical) Count(address NodeAddress) float64 { return c.counts[address] }

// Total returns the sum of every pseudo-count.
func (c *Categorical) Total() float64 { return c.total }

// Len returns the number of categories with nonzero pseudo-count.
func (c *Categorical) Len() int { return len(c.counts) }

// Support returns every address with nonzero pseudo-count.
func (c *Categorical) Support() []NodeAddress {
	out := make([]NodeAddress, 0, len(c.counts))
	for a := range c.counts {
		out = append(out, a)
	}
	return out
}

// KLDivergence computes KL(c || other). An address where c has positive
// probability but other has none drives the result to +Inf, the standard
// convention for distributions that aren't absolutely continuous.
func (c *Categorical) KLDivergence(other *Categorical) float64 {
	if c.total == 0 {
		return 0
	}
	var kl float64
	for addr, w := range c.counts {
		p := w / c.total
		q := other.Prob(addr)
		if q == 0 {
			return math.Inf(1)
		}
		kl += p * math.Log(p/q)
	}
	return kl
}

// SupportedKLDivergence computes KL(c || other) restricted to c's support,
// renormalizing other's mass over that support first. Use this when other's
// support is known to be a superset of c's and the plain +Inf convention of
// KLDivergence is too coarse a drift signal.
func (c *Categorical) SupportedKLDivergence(other *Categorical) float64 {
	if c.total == 0 {
		return 0
	}
	var otherMass float64
	for addr := range c.counts {
		otherMass += other.counts[addr]
	}
	if otherMass == 0 {
		return math.Inf(1)
	}
	var kl float64
	for addr, w := range c.counts {
		p := w / c.total
		q := other.counts[addr] / otherMass
		if q == 0 {
			return math.Inf(1)
		}
		kl += p * math.Log(p/q)
	}
	return kl
}
