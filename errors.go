// Copyright 2022 Sylvain Müller. All rights reserved.
// Mount of this source code is governed by a Apache-2.0 license that can be found
// at https://github.com/tigerwill90/fox/blob/master/LICENSE.txt.

package covertree

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPointUnavailable is returned when the PointCloud cannot supply a
	// requested index.
	ErrPointUnavailable = errors.New("point unavailable")
	// ErrNameUnknown is returned when a symbolic name, or a point index that
	// does not appear anywhere in the tree, fails to resolve.
	ErrNameUnknown = errors.New("name unknown")
	// ErrStructuralViolation is returned when the builder attempts an invalid
	// layer mutation (see StructuralViolationError for the offending detail).
	ErrStructuralViolation = errors.New("structural violation")
	// ErrDoubleNest is a StructuralViolation: a node already has a nested child.
	ErrDoubleNest = fmt.Errorf("%w: node already has a nested child", ErrStructuralViolation)
	// ErrInsertBeforeNest is a StructuralViolation: a non-nested child was
	// inserted before the nested child that must anchor it.
	ErrInsertBeforeNest = fmt.Errorf("%w: child inserted before nested child exists", ErrStructuralViolation)
	// ErrInvalidConfig is returned by CoverTreeOption validation.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrSerdeFailure is returned at the persistence boundary (Snapshot/Restore).
	ErrSerdeFailure = errors.New("serialization failure")
)

// PointCloudError wraps a failure surfaced by the PointCloud interface while
// the tree was resolving a point index.
type PointCloudError struct {
	Index uint64
	Err   error
}

func (e *PointCloudError) Error() string {
	return fmt.Sprintf("covertree: point %d unavailable: %v", e.Index, e.Err)
}

func (e *PointCloudError) Unwrap() error {
	return errors.Join(ErrPointUnavailable, e.Err)
}

// StructuralViolationError describes a builder invariant that broke: an
// attempt to nest a node twice, or to insert a non-nested child before the
// node's nested child exists.
type StructuralViolationError struct {
	// Address is the node address the violation was raised against.
	Address NodeAddress
	// Reason is one of ErrDoubleNest or ErrInsertBeforeNest.
	Reason error
}

func (e *StructuralViolationError) Error() string {
	sb := new(strings.Builder)
	sb.WriteString("structural violation at ")
	sb.WriteString(e.Address.String())
	sb.WriteString(": ")
	sb.WriteString(e.Reason.Error())
	return sb.String()
}

func (e *StructuralViolationError) Unwrap() error {
	return e.Reason
}
