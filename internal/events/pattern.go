// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"errors"
	"strings"
)

// PatternMatcher matches event types against subscription patterns.
//
// A pattern is one or more comma separated alternatives. Each alternative is
// "*" (any type), "prefix.*", "*.suffix" or an exact type name.
type PatternMatcher struct{}

// NewPatternMatcher creates a new pattern matcher.
func NewPatternMatcher() *PatternMatcher {
	return &PatternMatcher{}
}

// Match reports whether eventType matches pattern. Empty input never matches.
func (pm *PatternMatcher) Match(eventType, pattern string) bool {
	if eventType == "" {
		return false
	}
	return matchAny(parseAlternatives(pattern), eventType)
}

// Compile parses pattern once so repeated matches skip the string splitting.
func (pm *PatternMatcher) Compile(pattern string) (CompiledPattern, error) {
	alts := parseAlternatives(pattern)
	if len(alts) == 0 {
		return nil, errors.New("empty pattern")
	}
	return &compiledPattern{source: pattern, alts: alts}, nil
}

// CompiledPattern is a parsed pattern.
type CompiledPattern interface {
	Match(eventType string) bool
}

type altKind int

const (
	altAny altKind = iota
	altExact
	altPrefix
	altSuffix
)

type alternative struct {
	kind altKind
	text string
}

func (a alternative) match(eventType string) bool {
	switch a.kind {
	case altAny:
		return true
	case altPrefix:
		return strings.HasPrefix(eventType, a.text)
	case altSuffix:
		return strings.HasSuffix(eventType, a.text)
	default:
		return eventType == a.text
	}
}

// parseAlternatives splits pattern on commas. Prefix and suffix texts keep
// their dot so "process.*" does not match "processes.output".
func parseAlternatives(pattern string) []alternative {
	var alts []alternative
	for _, p := range strings.Split(pattern, ",") {
		p = strings.TrimSpace(p)
		switch {
		case p == "":
		case p == "*":
			alts = append(alts, alternative{kind: altAny})
		case strings.HasSuffix(p, ".*"):
			alts = append(alts, alternative{kind: altPrefix, text: strings.TrimSuffix(p, "*")})
		case strings.HasPrefix(p, "*."):
			alts = append(alts, alternative{kind: altSuffix, text: strings.TrimPrefix(p, "*")})
		default:
			alts = append(alts, alternative{kind: altExact, text: p})
		}
	}
	return alts
}

func matchAny(alts []alternative, eventType string) bool {
	for _, a := range alts {
		if a.match(eventType) {
			return true
		}
	}
	return false
}

type compiledPattern struct {
	source string
	alts   []alternative
}

func (cp *compiledPattern) Match(eventType string) bool {
	return eventType != "" && matchAny(cp.alts, eventType)
}

func (cp *compiledPattern) String() string {
	return cp.source
}
