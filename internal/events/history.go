// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"sort"
	"sync"
	"time"
)

// EventHistoryConfig configures event history.
type EventHistoryConfig struct {
	MaxEvents int
	MaxAge    time.Duration
	// Exclude lists patterns whose events are never recorded.
	Exclude []string
}

// EventHistory keeps a bounded, time-limited record of published events for
// the /events API.
type EventHistory struct {
	mu        sync.RWMutex
	events    []Event
	maxEvents int
	maxAge    time.Duration
	exclude   []CompiledPattern
	matcher   *PatternMatcher
}

// NewEventHistory creates a new event history. Invalid exclude patterns are
// ignored.
func NewEventHistory(cfg EventHistoryConfig) *EventHistory {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = 10000
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}

	h := &EventHistory{
		maxEvents: cfg.MaxEvents,
		maxAge:    cfg.MaxAge,
		matcher:   NewPatternMatcher(),
	}
	for _, p := range cfg.Exclude {
		if cp, err := h.matcher.Compile(p); err == nil {
			h.exclude = append(h.exclude, cp)
		}
	}
	return h
}

// Add records event unless its type is excluded. It reports whether the
// event was stored.
func (h *EventHistory) Add(event Event) bool {
	for _, cp := range h.exclude {
		if cp.Match(event.Type) {
			return false
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, event)
	if over := len(h.events) - h.maxEvents; over > 0 {
		// Shift rather than reslice so the backing array does not grow forever.
		n := copy(h.events, h.events[over:])
		clear(h.events[n:])
		h.events = h.events[:n]
	}
	return true
}

// Len returns the number of recorded events.
func (h *EventHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}

// Query returns recorded events matching filter, oldest first. A positive
// Limit keeps the newest Limit matches.
func (h *EventHistory) Query(filter EventFilter) ([]Event, error) {
	var types []CompiledPattern
	for _, p := range filter.Types {
		if cp, err := h.matcher.Compile(p); err == nil {
			types = append(types, cp)
		}
	}
	// Every pattern was empty: nothing can match.
	if len(filter.Types) > 0 && len(types) == 0 {
		return []Event{}, nil
	}

	h.mu.RLock()
	result := make([]Event, 0)
	for _, event := range h.events {
		if keep(event, filter, types) {
			result = append(result, event)
		}
	}
	h.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[len(result)-filter.Limit:]
	}
	return result, nil
}

func keep(event Event, filter EventFilter, types []CompiledPattern) bool {
	if filter.Project != "" && event.Project != filter.Project {
		return false
	}
	if !filter.Since.IsZero() && event.Timestamp.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && event.Timestamp.After(filter.Until) {
		return false
	}
	if len(types) == 0 {
		return true
	}
	for _, cp := range types {
		if cp.Match(event.Type) {
			return true
		}
	}
	return false
}

// Prune drops events older than the max age and returns how many were
// removed.
func (h *EventHistory) Prune() int {
	cutoff := time.Now().Add(-h.maxAge)

	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.events[:0]
	for _, event := range h.events {
		if event.Timestamp.After(cutoff) {
			kept = append(kept, event)
		}
	}
	removed := len(h.events) - len(kept)
	clear(h.events[len(kept):])
	h.events = kept
	return removed
}

// Close drops all recorded events.
func (h *EventHistory) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = nil
}
