// Copyright 2022 Sylvain Müller. All rights reserved.
// Mount of this source code is governed by a Apache-2.0 license that can be found
// at https://github.com/tigerwill90/fox/blob/master/LICENSE.txt.

package covertree

import (
	"fmt"
	"log/slog"
)

// PartitionType selects how the builder assigns candidate children at each
// scale when partitioning a node's points (spec §4.3).
type PartitionType uint8

const (
	// PartitionFirst takes candidates in input order and accepts one as a
	// new child whenever it is not yet covered by a previously accepted child.
	PartitionFirst PartitionType = iota
	// PartitionNearest seeds a new child for each uncovered point, then
	// reassigns every non-seed point to its nearest seed whose ball still
	// contains it.
	PartitionNearest
)

func (p PartitionType) String() string {
	if p == PartitionNearest {
		return "nearest"
	}
	return "first"
}

// CoverTreeParameters controls the shape of a constructed CoverTree. Build one
// with NewCoverTreeParameters and a set of CoverTreeOption values; the zero
// value is not meaningful on its own.
type CoverTreeParameters struct {
	ScaleBase     float32
	LeafCutoff    int
	MinResIndex   int32
	UseSingletons bool
	PartitionType PartitionType
	Verbosity     int
	RngSeed       *uint64
	Logger        *slog.Logger
}

// CoverTreeOption configures a CoverTreeParameters value.
type CoverTreeOption interface {
	apply(*CoverTreeParameters) error
}

type optionFunc func(*CoverTreeParameters) error

func (o optionFunc) apply(p *CoverTreeParameters) error { return o(p) }

// NewCoverTreeParameters builds parameters from defaults (ScaleBase 1.3,
// LeafCutoff 1, MinResIndex -10, UseSingletons true, PartitionFirst) plus the
// given options, applied in order.
func NewCoverTreeParameters(opts ...CoverTreeOption) (CoverTreeParameters, error) {
	p := CoverTreeParameters{
		ScaleBase:     1.3,
		LeafCutoff:    1,
		MinResIndex:   -10,
		UseSingletons: true,
		PartitionType: PartitionFirst,
	}
	for _, opt := range opts {
		if err := opt.apply(&p); err != nil {
			return CoverTreeParameters{}, err
		}
	}
	if p.Logger == nil {
		p.Logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	return p, nil
}

// WithScaleBase sets the radius base scale_base^s. Must be in (1.0, 2.0].
func WithScaleBase(scaleBase float32) CoverTreeOption {
	return optionFunc(func(p *CoverTreeParameters) error {
		if scaleBase <= 1.0 || scaleBase > 2.0 {
			return fmt.Errorf("%w: scale base %v must be in (1.0, 2.0]", ErrInvalidConfig, scaleBase)
		}
		p.ScaleBase = scaleBase
		return nil
	})
}

// WithLeafCutoff sets the leaf threshold: a node covering at most cutoff
// points (its center included) becomes a leaf.
func WithLeafCutoff(cutoff int) CoverTreeOption {
	return optionFunc(func(p *CoverTreeParameters) error {
		if cutoff < 1 {
			return fmt.Errorf("%w: leaf cutoff %d must be >= 1", ErrInvalidConfig, cutoff)
		}
		p.LeafCutoff = cutoff
		return nil
	})
}

// WithMinResIndex sets the scale index floor: no node is created below it.
func WithMinResIndex(minResIndex int32) CoverTreeOption {
	return optionFunc(func(p *CoverTreeParameters) error {
		if minResIndex < MinScaleIndex {
			return fmt.Errorf("%w: min res index %d below %d", ErrInvalidConfig, minResIndex, MinScaleIndex)
		}
		p.MinResIndex = minResIndex
		return nil
	})
}

// WithSingletons toggles whether unpartitionable residuals collapse into the
// parent's singleton list (true) or become their own leaf children (false).
func WithSingletons(useSingletons bool) CoverTreeOption {
	return optionFunc(func(p *CoverTreeParameters) error {
		p.UseSingletons = useSingletons
		return nil
	})
}

// WithPartitionType selects the child-assignment policy.
func WithPartitionType(t PartitionType) CoverTreeOption {
	return optionFunc(func(p *CoverTreeParameters) error {
		p.PartitionType = t
		return nil
	})
}

// WithVerbosity sets the construction-time log verbosity (0 = silent).
func WithVerbosity(v int) CoverTreeOption {
	return optionFunc(func(p *CoverTreeParameters) error {
		p.Verbosity = v
		return nil
	})
}

// WithRngSeed makes construction deterministic: the order of candidate
// selection is derived by XOR-ing the seed with each candidate's point index.
func WithRngSeed(seed uint64) CoverTreeOption {
	return optionFunc(func(p *CoverTreeParameters) error {
		p.RngSeed = &seed
		return nil
	})
}

// WithLogger sets the slog.Logger used for construction-time logging.
func WithLogger(logger *slog.Logger) CoverTreeOption {
	return optionFunc(func(p *CoverTreeParameters) error {
		if logger != nil {
			p.Logger = logger
		}
		return nil
	})
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
