// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package health runs periodic HTTP probes against running tasks and tracks
// each task through healthy, degraded and unhealthy states.
package health

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/wingedpig/launchpad/internal/config"
	"github.com/wingedpig/launchpad/internal/events"
	"github.com/wingedpig/launchpad/internal/notify"
)

// Status is the health state of a monitored task.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// HistoryLimit is the number of history entries kept per project.
const HistoryLimit = 100

// Target is what to probe for one task.
type Target struct {
	Task        string
	URL         string
	Interval    time.Duration
	Timeout     time.Duration
	Retries     int
	AutoRestart bool
}

// TargetFor builds a Target from a task's health check config.
func TargetFor(task config.Task) (Target, bool) {
	if !task.HealthEnabled() {
		return Target{}, false
	}
	hc := task.HealthCheck
	return Target{
		Task:        task.Name,
		URL:         hc.URL,
		Interval:    hc.GetInterval(),
		Timeout:     hc.GetTimeout(),
		Retries:     hc.GetRetries(),
		AutoRestart: hc.AutoRestart,
	}, true
}

// State is the current health of one monitored task.
type State struct {
	Project        string    `json:"project"`
	Task           string    `json:"task"`
	URL            string    `json:"url"`
	Status         Status    `json:"status"`
	Failures       int       `json:"failures"`
	LastCheck      time.Time `json:"lastCheck,omitempty"`
	ResponseTimeMS int64     `json:"responseTimeMs"`
	LastError      string    `json:"lastError,omitempty"`
}

// HistoryEntry records a notable health transition.
type HistoryEntry struct {
	Time           time.Time `json:"time"`
	Project        string    `json:"project"`
	Task           string    `json:"task"`
	Type           string    `json:"type"` // failed, recovered, restart_required
	Message        string    `json:"message"`
	ResponseTimeMS int64     `json:"responseTimeMs,omitempty"`
}

type monitor struct {
	projectID   string
	projectName string
	target      Target
	ctx         context.Context
	cancel      context.CancelFunc
	state       State
}

// Engine owns every health monitor, keyed by (project, task).
type Engine struct {
	bus      events.EventBus
	notifier notify.Notifier
	prober   Prober

	mu       sync.Mutex
	monitors map[string]*monitor
	history  map[string][]HistoryEntry
	wg       sync.WaitGroup
}

// NewEngine creates a health engine. A nil prober uses HTTP GET.
func NewEngine(bus events.EventBus, notifier notify.Notifier, prober Prober) *Engine {
	if prober == nil {
		prober = NewHTTPProber()
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Engine{
		bus:      bus,
		notifier: notifier,
		prober:   prober,
		monitors: make(map[string]*monitor),
		history:  make(map[string][]HistoryEntry),
	}
}

func monitorKey(projectID, task string) string {
	return projectID + "/" + task
}

// Start begins monitoring target. Any existing monitor for the same task is
// stopped first. One probe runs immediately, then every target.Interval.
func (e *Engine) Start(projectID, projectName string, target Target) {
	if target.Interval <= 0 {
		target.Interval = config.DefaultHealthInterval
	}
	if target.Timeout <= 0 {
		target.Timeout = config.DefaultHealthTimeout
	}
	if target.Retries <= 0 {
		target.Retries = config.DefaultHealthRetries
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &monitor{
		projectID:   projectID,
		projectName: projectName,
		target:      target,
		ctx:         ctx,
		cancel:      cancel,
		state: State{
			Project: projectID,
			Task:    target.Task,
			URL:     target.URL,
			Status:  StatusHealthy,
		},
	}

	key := monitorKey(projectID, target.Task)
	e.mu.Lock()
	if old, ok := e.monitors[key]; ok {
		old.cancel()
	}
	e.monitors[key] = m
	e.mu.Unlock()

	log.Printf("Health monitor started for %s/%s (%s every %s)", projectID, target.Task, target.URL, target.Interval)

	e.wg.Add(1)
	go e.run(m)
}

func (e *Engine) run(m *monitor) {
	defer e.wg.Done()

	e.check(m)

	ticker := time.NewTicker(m.target.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			e.check(m)
		}
	}
}

// check runs one probe and applies the state machine.
func (e *Engine) check(m *monitor) {
	res := e.prober.Probe(m.ctx, m.target.URL, m.target.Timeout)

	e.mu.Lock()
	if m.ctx.Err() != nil || e.monitors[monitorKey(m.projectID, m.target.Task)] != m {
		e.mu.Unlock()
		return
	}

	now := time.Now()
	st := &m.state
	st.LastCheck = now
	st.ResponseTimeMS = res.ResponseTime.Milliseconds()
	st.LastError = ""
	if res.Err != nil {
		st.LastError = res.Err.Error()
	}

	var recovered, failed, restart bool
	if res.OK {
		recovered = st.Failures > 0 || st.Status != StatusHealthy
		st.Failures = 0
		st.Status = StatusHealthy
	} else {
		st.Failures++
		if st.Failures < m.target.Retries {
			st.Status = StatusDegraded
		} else {
			// Notify once per streak, on entering unhealthy
			failed = st.Status != StatusUnhealthy || st.Failures == m.target.Retries
			st.Status = StatusUnhealthy
			if failed && m.target.AutoRestart {
				restart = true
				st.Failures = 0
			}
		}
	}
	snapshot := *st
	failures := st.Failures
	if restart {
		failures = m.target.Retries
	}

	if recovered {
		e.addHistoryLocked(HistoryEntry{
			Time:           now,
			Project:        m.projectID,
			Task:           m.target.Task,
			Type:           "recovered",
			Message:        fmt.Sprintf("%s is healthy again", m.target.Task),
			ResponseTimeMS: snapshot.ResponseTimeMS,
		})
	}
	if failed {
		e.addHistoryLocked(HistoryEntry{
			Time:    now,
			Project: m.projectID,
			Task:    m.target.Task,
			Type:    "failed",
			Message: fmt.Sprintf("Health check failed %d times: %s", failures, snapshot.LastError),
		})
	}
	if restart {
		e.addHistoryLocked(HistoryEntry{
			Time:    now,
			Project: m.projectID,
			Task:    m.target.Task,
			Type:    "restart_required",
			Message: fmt.Sprintf("Restarting %s after %d failed checks", m.target.Task, failures),
		})
	}
	e.mu.Unlock()

	ctx := context.Background()
	events.Emit(ctx, e.bus, events.EventHealthStatus, m.projectID, map[string]interface{}{
		"project":        m.projectID,
		"task":           m.target.Task,
		"url":            m.target.URL,
		"status":         string(snapshot.Status),
		"failures":       snapshot.Failures,
		"statusCode":     res.StatusCode,
		"responseTimeMs": snapshot.ResponseTimeMS,
		"error":          snapshot.LastError,
	})

	if recovered {
		log.Printf("Health check recovered for %s/%s", m.projectID, m.target.Task)
		events.Emit(ctx, e.bus, events.EventHealthRecovered, m.projectID, map[string]interface{}{
			"project":        m.projectID,
			"task":           m.target.Task,
			"message":        fmt.Sprintf("%s is healthy again", m.target.Task),
			"responseTimeMs": snapshot.ResponseTimeMS,
		})
		e.notifier.Notify(ctx, notify.Notification{
			Project: m.projectID,
			Title:   fmt.Sprintf("%s: %s recovered", m.projectName, m.target.Task),
			Body:    fmt.Sprintf("Responded in %d ms", snapshot.ResponseTimeMS),
			Level:   notify.LevelInfo,
		})
	}

	if failed {
		log.Printf("Health check failed for %s/%s: %s", m.projectID, m.target.Task, snapshot.LastError)
		events.Emit(ctx, e.bus, events.EventHealthFailed, m.projectID, map[string]interface{}{
			"project":  m.projectID,
			"task":     m.target.Task,
			"url":      m.target.URL,
			"failures": failures,
			"message":  snapshot.LastError,
		})
		e.notifier.Notify(ctx, notify.Notification{
			Project: m.projectID,
			Title:   fmt.Sprintf("%s: %s is unhealthy", m.projectName, m.target.Task),
			Body:    fmt.Sprintf("Health check failed %d times: %s", failures, snapshot.LastError),
			Level:   notify.LevelCritical,
		})
	}

	if restart {
		events.Emit(ctx, e.bus, events.EventHealthRestartRequired, m.projectID, map[string]interface{}{
			"project":     m.projectID,
			"projectName": m.projectName,
			"task":        m.target.Task,
		})
	}
}

func (e *Engine) addHistoryLocked(entry HistoryEntry) {
	h := append(e.history[entry.Project], entry)
	if len(h) > HistoryLimit {
		h = append([]HistoryEntry(nil), h[len(h)-HistoryLimit:]...)
	}
	e.history[entry.Project] = h
}

// Stop cancels the monitor for a task. It is a no-op if none exists.
func (e *Engine) Stop(projectID, task string) {
	key := monitorKey(projectID, task)
	e.mu.Lock()
	m, ok := e.monitors[key]
	if ok {
		m.cancel()
		delete(e.monitors, key)
	}
	e.mu.Unlock()
	if ok {
		log.Printf("Health monitor stopped for %s/%s", projectID, task)
	}
}

// StopProject cancels every monitor of projectID.
func (e *Engine) StopProject(projectID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, m := range e.monitors {
		if m.projectID == projectID {
			m.cancel()
			delete(e.monitors, key)
		}
	}
}

// Statuses returns the current state of each monitored task of projectID.
func (e *Engine) Statuses(projectID string) []State {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []State
	for _, m := range e.monitors {
		if m.projectID == projectID {
			out = append(out, m.state)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	return out
}

// History returns the recent health transitions of projectID, oldest first.
func (e *Engine) History(projectID string) []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]HistoryEntry(nil), e.history[projectID]...)
}

// ClearHistory drops the recorded history of projectID.
func (e *Engine) ClearHistory(projectID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.history, projectID)
}

// Active returns how many monitors run for projectID.
func (e *Engine) Active(projectID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, m := range e.monitors {
		if m.projectID == projectID {
			n++
		}
	}
	return n
}

// Monitoring reports whether task of projectID has a monitor.
func (e *Engine) Monitoring(projectID, task string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.monitors[monitorKey(projectID, task)]
	return ok
}

// Close stops every monitor and waits for their loops to exit.
func (e *Engine) Close() {
	e.mu.Lock()
	for key, m := range e.monitors {
		m.cancel()
		delete(e.monitors, key)
	}
	e.mu.Unlock()
	e.wg.Wait()
}
