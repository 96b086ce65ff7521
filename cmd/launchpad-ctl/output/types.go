// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package output provides filtering and formatting of captured task output
// for launchpad-ctl.
package output

import (
	"time"
)

// FilterOptions selects which output lines to show.
type FilterOptions struct {
	Since       time.Time // Only lines after this time
	Until       time.Time // Only lines before this time
	Stream      string    // "stdout", "stderr" or empty for both
	GrepPattern string    // Regex pattern to match in the line
	Invert      bool      // Show lines that do not match GrepPattern
	Before      int       // Lines to show before each match (-B)
	After       int       // Lines to show after each match (-A)
}

// Format specifies how lines are printed.
type Format int

const (
	FormatPlain Format = iota
	FormatJSON
	FormatJSONL
	FormatCSV
	FormatRaw
	FormatTemplate
)

// Options configures a Formatter.
type Options struct {
	Format   Format
	Template string // Go template for FormatTemplate
	Prefix   bool   // Prefix plain lines with the task name
}
