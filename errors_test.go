package covertree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointCloudErrorUnwrap(t *testing.T) {
	inner := errors.New("disk read failed")
	err := &PointCloudError{Index: 5, Err: inner}

	assert.ErrorIs(t, err, ErrPointUnavailable)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "point 5")
}

func TestStructuralViolationErrorUnwrap(t *testing.T) {
	addr := UncheckedNodeAddress(2, 9)
	err := &StructuralViolationError{Address: addr, Reason: ErrDoubleNest}

	assert.ErrorIs(t, err, ErrStructuralViolation)
	assert.ErrorIs(t, err, ErrDoubleNest)
	assert.Contains(t, err.Error(), addr.String())
}

func TestDerivedSentinelsWrapStructuralViolation(t *testing.T) {
	assert.ErrorIs(t, ErrDoubleNest, ErrStructuralViolation)
	assert.ErrorIs(t, ErrInsertBeforeNest, ErrStructuralViolation)
}
