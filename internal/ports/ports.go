// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ports finds the TCP ports a task will bind, detects which of them
// are already owned by another process, and terminates those owners.
package ports

import (
	"context"
	"log"
	"regexp"
	"sort"
	"strconv"

	ps "github.com/mitchellh/go-ps"
	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/launchpad/internal/config"
)

// Candidate is a port a task is expected to listen on.
type Candidate struct {
	Port     int    `json:"port"`
	TaskName string `json:"task"`
	Command  string `json:"command"`
}

// Conflict is a candidate port already bound by another process.
type Conflict struct {
	Port        int    `json:"port"`
	PID         int    `json:"pid"`
	ProcessName string `json:"processName,omitempty"`
	TaskName    string `json:"task"`
	Command     string `json:"command"`
}

// Port patterns recognised in command text.
var (
	flagPortPattern  = regexp.MustCompile(`(?:^|\s)(?:-p|--port)(?:=|\s+)(\d{1,5})\b`)
	envPortPattern   = regexp.MustCompile(`(?:^|[^A-Za-z0-9_])PORT=(\d{1,5})\b`)
	colonPortPattern = regexp.MustCompile(`:(\d{4,5})\b`)
)

const (
	minColonPort      = 1000
	maxPort           = 65535
	maxParallelChecks = 8
)

// ExtractPorts returns the ports mentioned in command in first-seen order,
// without duplicates. Bare ":N" matches only count for 4-5 digit numbers in
// [1000, 65535] so version strings and timestamps are ignored.
func ExtractPorts(command string) []int {
	type hit struct {
		pos  int
		port int
	}
	var hits []hit

	collect := func(re *regexp.Regexp, min int) {
		for _, m := range re.FindAllStringSubmatchIndex(command, -1) {
			port, err := strconv.Atoi(command[m[2]:m[3]])
			if err != nil || port < min || port > maxPort {
				continue
			}
			hits = append(hits, hit{pos: m[2], port: port})
		}
	}
	collect(flagPortPattern, 1)
	collect(envPortPattern, 1)
	collect(colonPortPattern, minColonPort)

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := make(map[int]bool)
	var ports []int
	for _, h := range hits {
		if seen[h.port] {
			continue
		}
		seen[h.port] = true
		ports = append(ports, h.port)
	}
	return ports
}

// CandidatesFor returns the ports each task is expected to bind. A declared
// port wins over anything found in the command text.
func CandidatesFor(tasks []config.Task) []Candidate {
	var out []Candidate
	for _, t := range tasks {
		if t.Port > 0 {
			out = append(out, Candidate{Port: t.Port, TaskName: t.Name, Command: t.Command})
			continue
		}
		for _, port := range ExtractPorts(t.Command) {
			out = append(out, Candidate{Port: port, TaskName: t.Name, Command: t.Command})
		}
	}
	return out
}

// Resolver answers port ownership questions through a Platform.
type Resolver struct {
	platform Platform
}

// NewResolver creates a resolver. A nil platform selects the host platform.
func NewResolver(platform Platform) *Resolver {
	if platform == nil {
		platform = NewHostPlatform()
	}
	return &Resolver{platform: platform}
}

// Platform returns the platform operations in use.
func (r *Resolver) Platform() Platform {
	return r.platform
}

// IsPortInUse returns the PID listening on port. Inspection errors are
// logged and reported as a free port.
func (r *Resolver) IsPortInUse(ctx context.Context, port int) (int, bool) {
	pid, err := r.platform.ListenerPID(ctx, port)
	if err != nil {
		log.Printf("Port check for %d failed: %v", port, err)
		return 0, false
	}
	return pid, pid > 0
}

// KillByPID forcefully terminates pid and reports whether it succeeded.
func (r *Resolver) KillByPID(ctx context.Context, pid int) bool {
	if pid <= 0 {
		return false
	}
	if err := r.platform.Kill(ctx, pid); err != nil {
		log.Printf("Kill PID %d failed: %v", pid, err)
		return false
	}
	return true
}

// Conflicts checks every candidate in parallel and returns those whose port
// is bound, in candidate order. Each port is inspected once.
func (r *Resolver) Conflicts(ctx context.Context, candidates []Candidate) []Conflict {
	ports := make([]int, 0, len(candidates))
	index := make(map[int]int)
	for _, c := range candidates {
		if _, ok := index[c.Port]; !ok {
			index[c.Port] = len(ports)
			ports = append(ports, c.Port)
		}
	}

	owners := make([]int, len(ports))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelChecks)
	for i, port := range ports {
		i, port := i, port
		g.Go(func() error {
			if pid, inUse := r.IsPortInUse(gctx, port); inUse {
				owners[i] = pid
			}
			return nil
		})
	}
	_ = g.Wait()

	var conflicts []Conflict
	reported := make(map[int]bool)
	for _, c := range candidates {
		pid := owners[index[c.Port]]
		if pid == 0 || reported[c.Port] {
			continue
		}
		reported[c.Port] = true
		conflicts = append(conflicts, Conflict{
			Port:        c.Port,
			PID:         pid,
			ProcessName: ProcessName(pid),
			TaskName:    c.TaskName,
			Command:     c.Command,
		})
	}
	return conflicts
}

// LaunchExternal hands tasks to the platform's terminal launcher.
func (r *Resolver) LaunchExternal(ctx context.Context, tasks []ExternalTask) error {
	if len(tasks) == 0 {
		return nil
	}
	return r.platform.LaunchExternal(ctx, tasks)
}

// ProcessName returns the executable name of pid, or "" if unknown.
func ProcessName(pid int) string {
	p, err := ps.FindProcess(pid)
	if err != nil || p == nil {
		return ""
	}
	return p.Executable()
}
