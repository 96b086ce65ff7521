// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package perf

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// UsageInspector reports usage for a set of root PIDs and their descendants.
// PIDs that cannot be inspected are left out of the result.
type UsageInspector interface {
	Inspect(ctx context.Context, pids []int) []ProcessSample
}

// inspectorTTL is how long a process may go unseen before its cached
// instance is dropped. It must exceed the sampling interval of every caller.
const inspectorTTL = time.Minute

// SystemInspector inspects processes through gopsutil. CPU percentages are
// measured between consecutive samples of the same process, so the first
// sample of a new process reports 0. One inspector may serve several
// projects: a process stays cached until no caller has seen it for
// inspectorTTL.
type SystemInspector struct {
	mu    sync.Mutex
	procs map[int32]*tracked
	ttl   time.Duration
}

type tracked struct {
	proc     *process.Process
	lastSeen time.Time
}

// NewSystemInspector creates a gopsutil-backed inspector.
func NewSystemInspector() *SystemInspector {
	return &SystemInspector{procs: make(map[int32]*tracked), ttl: inspectorTTL}
}

// Inspect samples every root PID and all of its descendants.
func (s *SystemInspector) Inspect(ctx context.Context, pids []int) []ProcessSample {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int32]bool)
	var out []ProcessSample
	now := time.Now()

	var walk func(p *process.Process)
	walk = func(p *process.Process) {
		if seen[p.Pid] {
			return
		}
		seen[p.Pid] = true
		s.procs[p.Pid].lastSeen = now

		if sample, ok := s.sample(ctx, p, now); ok {
			out = append(out, sample)
		}
		children, err := p.ChildrenWithContext(ctx)
		if err != nil {
			return
		}
		for _, child := range children {
			walk(s.cached(child, now))
		}
	}

	for _, pid := range pids {
		p, ok := s.lookup(ctx, int32(pid), now)
		if !ok {
			continue
		}
		walk(p)
	}

	s.expire(now)
	return out
}

// expire drops processes nobody has inspected for the TTL. Processes owned
// by other callers survive because they were seen recently.
func (s *SystemInspector) expire(now time.Time) {
	for pid, t := range s.procs {
		if now.Sub(t.lastSeen) > s.ttl {
			delete(s.procs, pid)
		}
	}
}

func (s *SystemInspector) lookup(ctx context.Context, pid int32, now time.Time) (*process.Process, bool) {
	if t, ok := s.procs[pid]; ok {
		return t.proc, true
	}
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, false
	}
	s.procs[pid] = &tracked{proc: p, lastSeen: now}
	return p, true
}

// cached returns the tracked instance for p so CPU deltas carry over.
func (s *SystemInspector) cached(p *process.Process, now time.Time) *process.Process {
	if t, ok := s.procs[p.Pid]; ok {
		return t.proc
	}
	s.procs[p.Pid] = &tracked{proc: p, lastSeen: now}
	return p
}

func (s *SystemInspector) sample(ctx context.Context, p *process.Process, now time.Time) (ProcessSample, bool) {
	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return ProcessSample{}, false
	}
	cpu, err := p.PercentWithContext(ctx, 0)
	if err != nil {
		cpu = 0
	}
	var elapsed float64
	if created, err := p.CreateTimeWithContext(ctx); err == nil {
		elapsed = now.Sub(time.UnixMilli(created)).Seconds()
	}
	return ProcessSample{
		PID:     int(p.Pid),
		CPU:     cpu,
		Memory:  mem.RSS,
		Elapsed: elapsed,
	}, true
}
