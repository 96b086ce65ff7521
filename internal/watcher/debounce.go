// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"sync"
	"time"
)

const defaultDebounce = 250 * time.Millisecond

type pending struct {
	timer *time.Timer
	gen   uint64
}

// Debouncer runs the last function scheduled for a key once the key has
// been quiet for the debounce duration.
type Debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	pending  map[string]*pending
	gen      uint64
}

// NewDebouncer creates a debouncer. Non-positive durations use 250ms.
func NewDebouncer(duration time.Duration) *Debouncer {
	if duration <= 0 {
		duration = defaultDebounce
	}
	return &Debouncer{
		duration: duration,
		pending:  make(map[string]*pending),
	}
}

// Debounce (re)schedules fn for key, replacing any function still waiting.
func (d *Debouncer) Debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending[key] = &pending{
		gen: gen,
		timer: time.AfterFunc(d.duration, func() {
			d.mu.Lock()
			p, ok := d.pending[key]
			// A timer that fired while being replaced must not run
			if !ok || p.gen != gen {
				d.mu.Unlock()
				return
			}
			delete(d.pending, key)
			d.mu.Unlock()
			fn()
		}),
	}
}

// Cancel drops the function waiting for key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

// Pending returns how many keys have a function waiting.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop drops every waiting function.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
}
