// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "time"

// Project states.
const (
	StateStopped   = "stopped"
	StateLaunching = "launching"
	StateRunning   = "running"
	StateStopping  = "stopping"
)

// Project is the runtime view of a configured project.
type Project struct {
	// ID is the stable project identifier used in API paths.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// State is one of stopped, launching, running or stopping.
	State string `json:"state"`

	// Environment is the environment of the current run, if any.
	Environment string `json:"environment,omitempty"`

	// LaunchedAt is when the current run was launched.
	LaunchedAt *time.Time `json:"launchedAt,omitempty"`

	// Tasks lists every configured task in order.
	Tasks []Task `json:"tasks"`

	// Conflicts are port conflicts from the last launch attempt that still
	// await confirmation.
	Conflicts []Conflict `json:"conflicts,omitempty"`

	// Performance is true while CPU and memory are being sampled.
	Performance bool `json:"performance"`

	// Tunnels are the public URLs captured for this project's tasks.
	Tunnels []TunnelCapture `json:"tunnels,omitempty"`
}

// Task is the runtime view of one task.
type Task struct {
	Name      string     `json:"name"`
	Mode      string     `json:"mode"` // internal or external
	Running   bool       `json:"running"`
	PID       int        `json:"pid,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	Ports     []int      `json:"ports,omitempty"`
	Health    string     `json:"health,omitempty"`
}

// Conflict is a port needed by a task that another process listens on.
type Conflict struct {
	Port        int    `json:"port"`
	PID         int    `json:"pid"`
	ProcessName string `json:"processName,omitempty"`
	Task        string `json:"task"`
	Command     string `json:"command"`
}

// TaskError is a per-task launch failure.
type TaskError struct {
	Task  string `json:"task"`
	Error string `json:"error"`
}

// LaunchResult is the outcome of a launch. When Conflicts is non-empty
// nothing was started.
type LaunchResult struct {
	Project     string      `json:"project"`
	Environment string      `json:"environment"`
	Success     bool        `json:"success"`
	Conflicts   []Conflict  `json:"conflicts,omitempty"`
	Started     []string    `json:"started,omitempty"`
	External    []string    `json:"external,omitempty"`
	Errors      []TaskError `json:"errors,omitempty"`
}

// TunnelCapture is a public URL captured from a tunnel agent.
type TunnelCapture struct {
	Project  string    `json:"project"`
	Task     string    `json:"task"`
	RawURL   string    `json:"rawUrl"`
	URL      string    `json:"url"`
	EnvVar   string    `json:"envVar,omitempty"`
	EnvFile  string    `json:"envFile,omitempty"`
	Captured time.Time `json:"captured"`
}

// OutputLine is one captured line of task output.
type OutputLine struct {
	Sequence int64     `json:"seq"`
	Stream   string    `json:"stream"` // stdout or stderr
	Line     string    `json:"line"`
	Time     time.Time `json:"time"`
}

// TaskOutput is the recent output of a task.
type TaskOutput struct {
	Project string       `json:"project"`
	Task    string       `json:"task"`
	Lines   []OutputLine `json:"lines"`
}

// HealthState is the current health of a monitored task.
type HealthState struct {
	Project        string    `json:"project"`
	Task           string    `json:"task"`
	URL            string    `json:"url"`
	Status         string    `json:"status"` // healthy, degraded or unhealthy
	Failures       int       `json:"failures"`
	LastCheck      time.Time `json:"lastCheck,omitempty"`
	ResponseTimeMS int64     `json:"responseTimeMs"`
	LastError      string    `json:"lastError,omitempty"`
}

// HealthEvent is a recorded health transition.
type HealthEvent struct {
	Time           time.Time `json:"time"`
	Project        string    `json:"project"`
	Task           string    `json:"task"`
	Type           string    `json:"type"` // failed, recovered or restart_required
	Message        string    `json:"message"`
	ResponseTimeMS int64     `json:"responseTimeMs,omitempty"`
}

// ProcessSample is the usage of one process.
type ProcessSample struct {
	PID     int     `json:"pid"`
	CPU     float64 `json:"cpu"`
	Memory  uint64  `json:"memory"`  // Resident bytes
	Elapsed float64 `json:"elapsed"` // Seconds since the process started
}

// Sample is the aggregate usage of a project at one instant.
type Sample struct {
	ProjectID string          `json:"projectId"`
	Timestamp time.Time       `json:"timestamp"`
	Uptime    float64         `json:"uptime"`
	CPU       float64         `json:"cpu"`
	Memory    uint64          `json:"memory"`
	Processes []ProcessSample `json:"processes"`
}

// Performance is the in-memory sample history of a project.
type Performance struct {
	Project    string   `json:"project"`
	Monitoring bool     `json:"monitoring"`
	Samples    []Sample `json:"samples"`
}

// Period is a month with persisted samples.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// MonitoringConfig is a suggested tunnel monitoring config.
type MonitoringConfig struct {
	Enabled     bool   `json:"enabled"`
	Type        string `json:"type"`
	APIURL      string `json:"api_url"`
	Interval    string `json:"interval,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
	EnvVar      string `json:"env_var,omitempty"`
	URLTemplate string `json:"url_template,omitempty"`
}

// DetectResult reports whether a command runs a known tunnel agent.
type DetectResult struct {
	Detected   bool              `json:"detected"`
	Monitoring *MonitoringConfig `json:"monitoring,omitempty"`
}

// Event is a record from the server's event bus.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type identifies the kind of event (e.g., "project.launched",
	// "health.failed").
	Type string `json:"type"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Project is the project the event concerns, if any.
	Project string `json:"project,omitempty"`

	// Payload carries event-specific data.
	Payload map[string]interface{} `json:"payload"`
}

// Notification levels.
const (
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// Notification is a desktop notification request.
type Notification struct {
	Project string `json:"project,omitempty"`
	Title   string `json:"title"`
	Body    string `json:"body,omitempty"`
	Level   string `json:"level,omitempty"`
}
