// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package perf

// ring is a fixed-capacity FIFO of samples. The oldest sample is evicted
// when a new one arrives at capacity.
type ring struct {
	buf   []Sample
	head  int // Index of the oldest sample
	count int
}

func newRing(size int) *ring {
	if size <= 0 {
		size = 1
	}
	return &ring{buf: make([]Sample, size)}
}

func (r *ring) push(s Sample) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = s
		r.count++
		return
	}
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
}

// items returns the samples oldest first.
func (r *ring) items() []Sample {
	out := make([]Sample, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

func (r *ring) len() int {
	return r.count
}
