// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON/YAML configuration loading, defaults and the
// project/task model consumed by the supervision engines.
package config

import (
	"time"
)

// Config is the root configuration structure for Launchpad.
type Config struct {
	Version       string              `json:"version"`
	Server        ServerConfig        `json:"server"`
	DataDir       string              `json:"data_dir"` // App-data directory for persisted state
	Events        EventsConfig        `json:"events"`
	Launch        LaunchConfig        `json:"launch"`
	Performance   PerformanceConfig   `json:"performance"`
	Notifications NotificationsConfig `json:"notifications"`
	Watch         WatchConfig         `json:"watch"`
	Projects      []Project           `json:"projects"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port    int    `json:"port"`
	Host    string `json:"host"`
	TLSCert string `json:"tls_cert"` // Both set serves HTTPS
	TLSKey  string `json:"tls_key"`
}

// EventsConfig configures the event bus.
type EventsConfig struct {
	History EventsHistoryConfig `json:"history"`
}

// EventsHistoryConfig configures event history retention.
type EventsHistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// LaunchConfig holds the fixed delays used by the launch coordinator.
type LaunchConfig struct {
	SettleDelay     string `json:"settle_delay"` // Wait after killing conflicts or before a respawn
	PerfDelay       string `json:"perf_delay"`   // Delay before performance sampling starts
	HealthDelay     string `json:"health_delay"` // Delay before health monitors start
	StopGrace       string `json:"stop_grace"`   // How long the "stopping" mark outlives a stop
	MaxAutoRestarts int    `json:"max_auto_restarts"`
	RestartWindow   string `json:"restart_window"`
}

// PerformanceConfig configures the performance sampler.
type PerformanceConfig struct {
	Interval         string  `json:"interval"`
	HistorySize      int     `json:"history_size"`  // In-memory samples per project
	MaxPersisted     int     `json:"max_persisted"` // Entries kept per monthly file
	AlertCooldown    string  `json:"alert_cooldown"`
	CPUWarning       float64 `json:"cpu_warning"`
	CPUCritical      float64 `json:"cpu_critical"`
	MemoryWarningMB  float64 `json:"memory_warning_mb"`
	MemoryCriticalMB float64 `json:"memory_critical_mb"`
	Persist          *bool   `json:"persist"`
}

// NotificationsConfig configures desktop notifications.
type NotificationsConfig struct {
	Desktop *bool `json:"desktop"` // Also run the OS notifier (notify-send / osascript)
}

// WatchConfig configures config-file hot reload.
type WatchConfig struct {
	Enabled  *bool  `json:"enabled"`
	Debounce string `json:"debounce"`
}

// ExecutionMode selects where a task's output goes.
type ExecutionMode string

const (
	// ModeInternal captures output and streams it as process events.
	ModeInternal ExecutionMode = "internal"
	// ModeExternal runs the task in a separate OS terminal.
	ModeExternal ExecutionMode = "external"
)

// Project is an ordered set of tasks launched and stopped together.
type Project struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Tasks []Task `json:"tasks"`
}

// Task is one runnable unit within a project.
type Task struct {
	Name         string                       `json:"name"`
	Command      string                       `json:"command"`
	WorkDir      string                       `json:"work_dir"`
	Mode         ExecutionMode                `json:"mode"`
	Environments []string                     `json:"environments"` // Empty means all environments
	EnvFile      string                       `json:"env_file"`
	Env          map[string]map[string]string `json:"env"` // environment -> KEY -> VALUE
	Port         int                          `json:"port"`
	PTY          bool                         `json:"pty"`
	HealthCheck  *HealthCheckConfig           `json:"health_check"`
	Monitoring   *MonitoringConfig            `json:"monitoring"`
}

// HealthCheckConfig configures periodic HTTP probing of a task.
type HealthCheckConfig struct {
	Enabled     bool   `json:"enabled"`
	URL         string `json:"url"`
	Interval    string `json:"interval"`
	IntervalMS  int    `json:"interval_ms"`
	Timeout     string `json:"timeout"`
	TimeoutMS   int    `json:"timeout_ms"`
	Retries     int    `json:"retries"`
	AutoRestart bool   `json:"auto_restart"`
}

// MonitoringConfig configures tunnel URL capture for a task.
type MonitoringConfig struct {
	Enabled     bool   `json:"enabled"`
	Type        string `json:"type"` // ngrok, cloudflared, custom
	APIURL      string `json:"api_url"`
	Interval    string `json:"interval"`
	IntervalMS  int    `json:"interval_ms"`
	MaxAttempts int    `json:"max_attempts"`
	EnvVar      string `json:"env_var"`
	URLTemplate string `json:"url_template"`
}

// Health check defaults.
const (
	DefaultHealthInterval = 30 * time.Second
	DefaultHealthTimeout  = 5 * time.Second
	DefaultHealthRetries  = 3
)

// Tunnel monitoring defaults.
const (
	DefaultMonitorInterval    = 2 * time.Second
	DefaultMonitorMaxAttempts = 30
	URLPlaceholder            = "{url}"
)

// ParseDuration parses a duration string, returning defaultVal on error.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// durationOrMillis prefers a duration string, then a millisecond count.
func durationOrMillis(s string, ms int, defaultVal time.Duration) time.Duration {
	if s != "" {
		return ParseDuration(s, defaultVal)
	}
	if ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}

// GetInterval returns the probe interval.
func (h *HealthCheckConfig) GetInterval() time.Duration {
	return durationOrMillis(h.Interval, h.IntervalMS, DefaultHealthInterval)
}

// GetTimeout returns the per-probe timeout.
func (h *HealthCheckConfig) GetTimeout() time.Duration {
	return durationOrMillis(h.Timeout, h.TimeoutMS, DefaultHealthTimeout)
}

// GetRetries returns the consecutive failures needed to become unhealthy.
func (h *HealthCheckConfig) GetRetries() int {
	if h.Retries <= 0 {
		return DefaultHealthRetries
	}
	return h.Retries
}

// GetInterval returns the poll spacing.
func (m *MonitoringConfig) GetInterval() time.Duration {
	return durationOrMillis(m.Interval, m.IntervalMS, DefaultMonitorInterval)
}

// GetMaxAttempts returns how many polls are made before giving up.
func (m *MonitoringConfig) GetMaxAttempts() int {
	if m.MaxAttempts <= 0 {
		return DefaultMonitorMaxAttempts
	}
	return m.MaxAttempts
}

// GetURLTemplate returns the template applied to a captured URL.
func (m *MonitoringConfig) GetURLTemplate() string {
	if m.URLTemplate == "" {
		return URLPlaceholder
	}
	return m.URLTemplate
}

// RunsIn reports whether the task participates in the given environment.
func (t *Task) RunsIn(environment string) bool {
	if len(t.Environments) == 0 {
		return true
	}
	for _, env := range t.Environments {
		if env == environment {
			return true
		}
	}
	return false
}

// IsExternal reports whether the task runs in an external terminal.
func (t *Task) IsExternal() bool {
	return t.Mode == ModeExternal
}

// HealthEnabled reports whether the task has an active health check.
func (t *Task) HealthEnabled() bool {
	return t.HealthCheck != nil && t.HealthCheck.Enabled && t.HealthCheck.URL != ""
}

// MonitoringEnabled reports whether the task has tunnel monitoring.
func (t *Task) MonitoringEnabled() bool {
	return t.Monitoring != nil && t.Monitoring.Enabled
}

// EnvFor returns the declared variables for an environment.
func (t *Task) EnvFor(environment string) map[string]string {
	if t.Env == nil {
		return nil
	}
	return t.Env[environment]
}

// Task returns the named task.
func (p *Project) Task(name string) (*Task, bool) {
	for i := range p.Tasks {
		if p.Tasks[i].Name == name {
			return &p.Tasks[i], true
		}
	}
	return nil, false
}

// TasksFor returns the tasks that run in environment, preserving order.
func (p *Project) TasksFor(environment string) []Task {
	var tasks []Task
	for _, t := range p.Tasks {
		if t.RunsIn(environment) {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// Project returns the project with the given ID.
func (c *Config) Project(id string) (*Project, bool) {
	for i := range c.Projects {
		if c.Projects[i].ID == id {
			return &c.Projects[i], true
		}
	}
	return nil, false
}

// IsEnabled returns whether persisted history is written. Defaults to true.
func (p *PerformanceConfig) IsEnabled() bool {
	if p.Persist == nil {
		return true
	}
	return *p.Persist
}

// IsEnabled returns whether the OS notifier runs. Defaults to false.
func (n *NotificationsConfig) IsEnabled() bool {
	return n.Desktop != nil && *n.Desktop
}

// IsEnabled returns whether the config file is watched. Defaults to true.
func (w *WatchConfig) IsEnabled() bool {
	if w.Enabled == nil {
		return true
	}
	return *w.Enabled
}
