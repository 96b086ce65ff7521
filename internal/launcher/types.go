// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package launcher coordinates project launches: it filters tasks by
// environment, resolves port conflicts, spawns the tasks and wires the
// health, performance and tunnel monitors around them.
package launcher

import (
	"errors"
	"time"

	"github.com/wingedpig/launchpad/internal/config"
	"github.com/wingedpig/launchpad/internal/health"
	"github.com/wingedpig/launchpad/internal/ports"
	"github.com/wingedpig/launchpad/internal/tunnel"
)

// Errors returned by the coordinator.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrTaskNotFound    = errors.New("task not found")
	ErrAlreadyRunning  = errors.New("project already running")
	ErrNotRunning      = errors.New("project not running")
)

// State is the lifecycle state of a project.
type State string

const (
	StateStopped   State = "stopped"
	StateLaunching State = "launching"
	StateRunning   State = "running"
	StateStopping  State = "stopping"
)

// Restart triggers reported in task.restarted events.
const (
	TriggerManual = "manual"
	TriggerHealth = "health"
)

// Options holds the coordinator's fixed delays and restart budget.
type Options struct {
	SettleDelay     time.Duration
	PerfDelay       time.Duration
	HealthDelay     time.Duration
	StopGrace       time.Duration
	MaxAutoRestarts int
	RestartWindow   time.Duration
}

// DefaultOptions returns the stock delays.
func DefaultOptions() Options {
	return Options{
		SettleDelay:     time.Second,
		PerfDelay:       3 * time.Second,
		HealthDelay:     5 * time.Second,
		StopGrace:       2 * time.Second,
		MaxAutoRestarts: 5,
		RestartWindow:   5 * time.Minute,
	}
}

// OptionsFrom converts the launch config section.
func OptionsFrom(cfg config.LaunchConfig) Options {
	opts := DefaultOptions()
	opts.SettleDelay = config.ParseDuration(cfg.SettleDelay, opts.SettleDelay)
	opts.PerfDelay = config.ParseDuration(cfg.PerfDelay, opts.PerfDelay)
	opts.HealthDelay = config.ParseDuration(cfg.HealthDelay, opts.HealthDelay)
	opts.StopGrace = config.ParseDuration(cfg.StopGrace, opts.StopGrace)
	opts.RestartWindow = config.ParseDuration(cfg.RestartWindow, opts.RestartWindow)
	if cfg.MaxAutoRestarts > 0 {
		opts.MaxAutoRestarts = cfg.MaxAutoRestarts
	}
	return opts
}

// TaskError is a per-task launch failure.
type TaskError struct {
	Task  string `json:"task"`
	Error string `json:"error"`
}

// LaunchResult reports the outcome of a launch. When Conflicts is non-empty
// nothing was spawned and the caller must confirm or cancel.
type LaunchResult struct {
	Project     string           `json:"project"`
	Environment string           `json:"environment"`
	Success     bool             `json:"success"`
	Conflicts   []ports.Conflict `json:"conflicts,omitempty"`
	Started     []string         `json:"started,omitempty"`
	External    []string         `json:"external,omitempty"`
	Errors      []TaskError      `json:"errors,omitempty"`
}

// TaskStatus is the runtime view of one task.
type TaskStatus struct {
	Name      string               `json:"name"`
	Mode      config.ExecutionMode `json:"mode"`
	Running   bool                 `json:"running"`
	PID       int                  `json:"pid,omitempty"`
	StartedAt *time.Time           `json:"startedAt,omitempty"`
	Ports     []int                `json:"ports,omitempty"`
	Health    health.Status        `json:"health,omitempty"`
}

// ProjectStatus is the runtime view of a project.
type ProjectStatus struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	State       State            `json:"state"`
	Environment string           `json:"environment,omitempty"`
	LaunchedAt  *time.Time       `json:"launchedAt,omitempty"`
	Tasks       []TaskStatus     `json:"tasks"`
	Conflicts   []ports.Conflict `json:"conflicts,omitempty"` // Awaiting confirmation
	Performance bool             `json:"performance"`
	Tunnels     []tunnel.Capture `json:"tunnels,omitempty"`
}
