// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"sync"
	"time"
)

const defaultOutputLines = 500

// OutputLine is one captured line of task output.
type OutputLine struct {
	Sequence int64     `json:"seq"`
	Stream   string    `json:"stream"`
	Line     string    `json:"line"`
	Time     time.Time `json:"time"`
}

// OutputBuffer is a thread-safe ring buffer of recent output lines. One
// buffer is kept per (project, task) and survives restarts so the tail of a
// crashed run can still be inspected.
type OutputBuffer struct {
	mu       sync.RWMutex
	lines    []OutputLine
	capacity int
	size     int
	head     int // next write position
	sequence int64
}

// NewOutputBuffer creates a buffer holding at most capacity lines.
func NewOutputBuffer(capacity int) *OutputBuffer {
	if capacity <= 0 {
		capacity = defaultOutputLines
	}
	return &OutputBuffer{
		lines:    make([]OutputLine, capacity),
		capacity: capacity,
	}
}

// Write appends a line.
func (b *OutputBuffer) Write(stream, line string) OutputLine {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sequence++
	entry := OutputLine{Sequence: b.sequence, Stream: stream, Line: line, Time: time.Now()}
	b.lines[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
	return entry
}

// Lines returns the last n lines, oldest first.
func (b *OutputBuffer) Lines(n int) []OutputLine {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || b.size == 0 {
		return []OutputLine{}
	}
	if n > b.size {
		n = b.size
	}

	result := make([]OutputLine, n)
	start := (b.head - n + b.capacity) % b.capacity
	for i := 0; i < n; i++ {
		result[i] = b.lines[(start+i)%b.capacity]
	}
	return result
}

// Text returns the last n lines as plain strings.
func (b *OutputBuffer) Text(n int) []string {
	lines := b.Lines(n)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Line
	}
	return out
}

// Size returns the number of buffered lines.
func (b *OutputBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear removes all lines. The sequence keeps counting.
func (b *OutputBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.size = 0
	b.head = 0
	for i := range b.lines {
		b.lines[i] = OutputLine{}
	}
}
