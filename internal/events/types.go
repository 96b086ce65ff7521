// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the event bus that carries process output, monitor
// results and notifications from the supervision core to its clients.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Project   string                 `json:"project,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types   []string  // Event types to match (supports wildcards)
	Project string    // Filter by project ID
	Since   time.Time // Events after this time
	Until   time.Time // Events before this time
	Limit   int       // Maximum events to return
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Process events
const (
	EventProcessOutput  = "process.output"
	EventProcessClosed  = "process.closed"
	EventProcessCrashed = "process.crashed"
	EventProcessError   = "process.error"
)

// Project events
const (
	EventProjectLaunching = "project.launching"
	EventProjectLaunched  = "project.launched"
	EventProjectConflicts = "project.conflicts"
	EventProjectStopping  = "project.stopping"
	EventProjectStopped   = "project.stopped"
	EventTaskRestarted    = "task.restarted"
)

// Health check events
const (
	EventHealthStatus            = "health.status"
	EventHealthFailed            = "health.failed"
	EventHealthRecovered         = "health.recovered"
	EventHealthRestartRequired   = "health.restart_required"
	EventHealthRestartSuppressed = "health.restart_suppressed"
)

// Performance events
const (
	EventPerfSample = "perf.sample"
	EventPerfAlert  = "perf.alert"
)

// Tunnel events
const (
	EventTunnelURLCaptured = "tunnel.url_captured"
	EventTunnelGaveUp      = "tunnel.gave_up"
)

// Notification and configuration events
const (
	EventNotifyDesktop  = "notify.desktop"
	EventConfigReloaded = "config.reloaded"
)

// Stream kinds carried in process.output payloads.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)
