// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"fmt"
	"regexp"

	"github.com/wingedpig/launchpad/pkg/client"
)

// Filter matches output lines against FilterOptions.
type Filter struct {
	opts FilterOptions
	grep *regexp.Regexp
}

// NewFilter compiles opts.
func NewFilter(opts FilterOptions) (*Filter, error) {
	f := &Filter{opts: opts}
	if opts.GrepPattern != "" {
		re, err := regexp.Compile(opts.GrepPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid grep pattern: %w", err)
		}
		f.grep = re
	}
	switch opts.Stream {
	case "", "stdout", "stderr":
	default:
		return nil, fmt.Errorf("invalid stream %q (use stdout or stderr)", opts.Stream)
	}
	return f, nil
}

// Match reports whether line passes every filter.
func (f *Filter) Match(line *client.OutputLine) bool {
	return f.matchBase(line) && f.matchGrep(line)
}

func (f *Filter) matchBase(line *client.OutputLine) bool {
	if !f.opts.Since.IsZero() && line.Time.Before(f.opts.Since) {
		return false
	}
	if !f.opts.Until.IsZero() && line.Time.After(f.opts.Until) {
		return false
	}
	if f.opts.Stream != "" && line.Stream != f.opts.Stream {
		return false
	}
	return true
}

func (f *Filter) matchGrep(line *client.OutputLine) bool {
	if f.grep == nil {
		return true
	}
	return f.grep.MatchString(line.Line) != f.opts.Invert
}

// FilterLines filters lines, keeping order. With Before or After set, the
// lines around each grep match are kept too.
func FilterLines(lines []client.OutputLine, opts FilterOptions) ([]client.OutputLine, error) {
	f, err := NewFilter(opts)
	if err != nil {
		return nil, err
	}

	if f.grep == nil || (opts.Before == 0 && opts.After == 0) {
		var out []client.OutputLine
		for i := range lines {
			if f.Match(&lines[i]) {
				out = append(out, lines[i])
			}
		}
		return out, nil
	}

	var base []client.OutputLine
	for i := range lines {
		if f.matchBase(&lines[i]) {
			base = append(base, lines[i])
		}
	}

	include := make([]bool, len(base))
	for i := range base {
		if !f.matchGrep(&base[i]) {
			continue
		}
		start := i - opts.Before
		if start < 0 {
			start = 0
		}
		end := i + opts.After
		if end >= len(base) {
			end = len(base) - 1
		}
		for j := start; j <= end; j++ {
			include[j] = true
		}
	}

	var out []client.OutputLine
	for i, ok := range include {
		if ok {
			out = append(out, base[i])
		}
	}
	return out, nil
}
