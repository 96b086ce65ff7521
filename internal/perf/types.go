// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package perf samples CPU and memory usage of a project's processes, keeps
// a bounded in-memory history, raises threshold alerts and persists samples
// to monthly JSON files.
package perf

import (
	"time"

	"github.com/wingedpig/launchpad/internal/config"
)

// ProcessSample is the usage of a single process at sample time.
type ProcessSample struct {
	PID     int     `json:"pid"`
	CPU     float64 `json:"cpu"`
	Memory  uint64  `json:"memory"`
	Elapsed float64 `json:"elapsed"` // Seconds since the process started
}

// Sample aggregates the usage of every process of a project.
type Sample struct {
	ProjectID string          `json:"projectId"`
	Timestamp time.Time       `json:"timestamp"`
	Uptime    float64         `json:"uptime"` // Seconds since sampling started
	CPU       float64         `json:"cpu"`
	Memory    uint64          `json:"memory"`
	Processes []ProcessSample `json:"processes"`
}

// Alert types and levels.
const (
	AlertCPU    = "cpu"
	AlertMemory = "memory"

	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// Alert is raised when a sample crosses a threshold.
type Alert struct {
	ProjectID string    `json:"projectId"`
	Type      string    `json:"type"`
	Level     string    `json:"level"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Period is a month with persisted samples.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Options tunes the sampler.
type Options struct {
	Interval         time.Duration
	HistorySize      int
	AlertCooldown    time.Duration
	CPUWarning       float64
	CPUCritical      float64
	MemoryWarningMB  float64
	MemoryCriticalMB float64
}

// DefaultOptions returns the stock sampling settings.
func DefaultOptions() Options {
	return Options{
		Interval:         2 * time.Second,
		HistorySize:      60,
		AlertCooldown:    5 * time.Minute,
		CPUWarning:       80,
		CPUCritical:      95,
		MemoryWarningMB:  500,
		MemoryCriticalMB: 1024,
	}
}

// OptionsFrom converts the performance config section, falling back to the
// defaults for unset fields.
func OptionsFrom(cfg config.PerformanceConfig) Options {
	opts := DefaultOptions()
	opts.Interval = config.ParseDuration(cfg.Interval, opts.Interval)
	opts.AlertCooldown = config.ParseDuration(cfg.AlertCooldown, opts.AlertCooldown)
	if cfg.HistorySize > 0 {
		opts.HistorySize = cfg.HistorySize
	}
	if cfg.CPUWarning > 0 {
		opts.CPUWarning = cfg.CPUWarning
	}
	if cfg.CPUCritical > 0 {
		opts.CPUCritical = cfg.CPUCritical
	}
	if cfg.MemoryWarningMB > 0 {
		opts.MemoryWarningMB = cfg.MemoryWarningMB
	}
	if cfg.MemoryCriticalMB > 0 {
		opts.MemoryCriticalMB = cfg.MemoryCriticalMB
	}
	return opts
}
