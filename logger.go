// Copyright 2022 Sylvain Müller. All rights reserved.
// Mount of this source code is governed by a Apache-2.0 license that can be found
// at https://github.com/tigerwill90/fox/blob/master/LICENSE.txt.

package covertree

import (
	"context"
	"log/slog"
)

// Keys for construction-time diagnostic attributes.
const (
	// LoggerAddressKey is the key used for a node's NodeAddress. The
	// associated [slog.Value] is a string.
	LoggerAddressKey = "address"
	// LoggerPointsKey is the key used for how many points a node covers: its
	// center plus singletons for a leaf, its CoverageCount for a routing node.
	// The associated [slog.Value] is an int.
	LoggerPointsKey = "points"
	// LoggerChildrenKey is the key used for a routing node's child count.
	// The associated [slog.Value] is an int.
	LoggerChildrenKey = "children"
)

// verbosityLevel maps a CoverTreeParameters.Verbosity setting to the slog
// level construction-time diagnostics are logged at: 0 is silent, 1 logs
// routing nodes at Info, 2 and above logs routing nodes and leaves, all at
// Debug.
func verbosityLevel(verbosity int) slog.Level {
	if verbosity >= 2 {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// logNode emits a construction-time diagnostic for one freshly built node.
// Silent at verbosity 0; leaves only appear at verbosity 2 and above, since a
// cloud with little structure can produce far more leaves than routing nodes.
func logNode(logger *slog.Logger, verbosity int, address NodeAddress, points int, children int, leaf bool) {
	if verbosity <= 0 {
		return
	}
	if leaf && verbosity < 2 {
		return
	}
	attrs := []slog.Attr{
		slog.String(LoggerAddressKey, address.String()),
		slog.Int(LoggerPointsKey, points),
	}
	if !leaf {
		attrs = append(attrs, slog.Int(LoggerChildrenKey, children))
	}
	logger.LogAttrs(context.Background(), verbosityLevel(verbosity), "node built", attrs...)
}
