// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package perf

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wingedpig/launchpad/internal/events"
	"github.com/wingedpig/launchpad/internal/notify"
)

const bytesPerMB = 1024 * 1024

// PIDSource returns the live root PIDs of a project at sample time.
type PIDSource func() []int

type monitor struct {
	projectID   string
	projectName string
	pids        PIDSource
	started     time.Time
	ctx         context.Context
	cancel      context.CancelFunc
}

// Sampler runs one sampling loop per project.
type Sampler struct {
	opts      Options
	inspector UsageInspector
	store     *Store // nil disables persistence
	bus       events.EventBus
	notifier  notify.Notifier

	mu        sync.Mutex
	monitors  map[string]*monitor
	history   map[string]*ring
	lastAlert map[string]time.Time
	wg        sync.WaitGroup
}

// NewSampler creates a sampler. A nil inspector uses gopsutil; a nil store
// keeps history in memory only.
func NewSampler(opts Options, inspector UsageInspector, store *Store, bus events.EventBus, notifier notify.Notifier) *Sampler {
	defaults := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = defaults.Interval
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaults.HistorySize
	}
	if inspector == nil {
		inspector = NewSystemInspector()
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Sampler{
		opts:      opts,
		inspector: inspector,
		store:     store,
		bus:       bus,
		notifier:  notifier,
		monitors:  make(map[string]*monitor),
		history:   make(map[string]*ring),
		lastAlert: make(map[string]time.Time),
	}
}

// Start begins sampling projectID, replacing any running loop for it.
func (s *Sampler) Start(projectID, projectName string, pids PIDSource) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &monitor{
		projectID:   projectID,
		projectName: projectName,
		pids:        pids,
		started:     time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}

	s.mu.Lock()
	if old, ok := s.monitors[projectID]; ok {
		old.cancel()
	}
	s.monitors[projectID] = m
	if _, ok := s.history[projectID]; !ok {
		s.history[projectID] = newRing(s.opts.HistorySize)
	}
	s.mu.Unlock()

	log.Printf("Performance monitoring started for %s", projectID)

	s.wg.Add(1)
	go s.run(m)
}

func (s *Sampler) run(m *monitor) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			s.sample(m)
		}
	}
}

// sample takes one measurement. Inspection failures skip the sample.
func (s *Sampler) sample(m *monitor) {
	pids := m.pids()
	if len(pids) == 0 {
		return
	}
	procs := s.inspector.Inspect(m.ctx, pids)
	if len(procs) == 0 {
		return
	}

	now := time.Now()
	sample := Sample{
		ProjectID: m.projectID,
		Timestamp: now,
		Uptime:    now.Sub(m.started).Seconds(),
		Processes: procs,
	}
	for _, p := range procs {
		sample.CPU += p.CPU
		sample.Memory += p.Memory
	}

	s.mu.Lock()
	if m.ctx.Err() != nil || s.monitors[m.projectID] != m {
		s.mu.Unlock()
		return
	}
	s.history[m.projectID].push(sample)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Append(sample); err != nil {
			log.Printf("Performance history not persisted for %s: %v", m.projectID, err)
		}
	}

	ctx := context.Background()
	events.Emit(ctx, s.bus, events.EventPerfSample, m.projectID, map[string]interface{}{
		"project":   m.projectID,
		"timestamp": sample.Timestamp,
		"uptime":    sample.Uptime,
		"cpu":       sample.CPU,
		"memory":    sample.Memory,
		"processes": sample.Processes,
	})

	for _, alert := range s.evaluate(sample) {
		s.raise(ctx, m, alert)
	}
}

// evaluate returns at most one alert per type, the most severe level.
func (s *Sampler) evaluate(sample Sample) []Alert {
	var alerts []Alert
	mk := func(kind, level string, value, threshold float64, msg string) Alert {
		return Alert{
			ProjectID: sample.ProjectID,
			Type:      kind,
			Level:     level,
			Value:     value,
			Threshold: threshold,
			Message:   msg,
			Timestamp: sample.Timestamp,
		}
	}

	switch cpu := sample.CPU; {
	case cpu > s.opts.CPUCritical:
		alerts = append(alerts, mk(AlertCPU, LevelCritical, cpu, s.opts.CPUCritical,
			fmt.Sprintf("CPU usage at %.1f%%", cpu)))
	case cpu > s.opts.CPUWarning:
		alerts = append(alerts, mk(AlertCPU, LevelWarning, cpu, s.opts.CPUWarning,
			fmt.Sprintf("CPU usage at %.1f%%", cpu)))
	}

	switch mb := float64(sample.Memory) / bytesPerMB; {
	case mb > s.opts.MemoryCriticalMB:
		alerts = append(alerts, mk(AlertMemory, LevelCritical, mb, s.opts.MemoryCriticalMB,
			fmt.Sprintf("Memory usage at %.0f MB", mb)))
	case mb > s.opts.MemoryWarningMB:
		alerts = append(alerts, mk(AlertMemory, LevelWarning, mb, s.opts.MemoryWarningMB,
			fmt.Sprintf("Memory usage at %.0f MB", mb)))
	}
	return alerts
}

// raise publishes alert and sends a desktop notification unless one for the
// same (project, type, level) went out within the cooldown.
func (s *Sampler) raise(ctx context.Context, m *monitor, alert Alert) {
	events.Emit(ctx, s.bus, events.EventPerfAlert, m.projectID, map[string]interface{}{
		"project":   alert.ProjectID,
		"type":      alert.Type,
		"level":     alert.Level,
		"value":     alert.Value,
		"threshold": alert.Threshold,
		"message":   alert.Message,
	})

	key := alert.ProjectID + "|" + alert.Type + "|" + alert.Level
	s.mu.Lock()
	last, seen := s.lastAlert[key]
	if seen && alert.Timestamp.Sub(last) < s.opts.AlertCooldown {
		s.mu.Unlock()
		return
	}
	s.lastAlert[key] = alert.Timestamp
	s.mu.Unlock()

	level := notify.LevelWarning
	if alert.Level == LevelCritical {
		level = notify.LevelCritical
	}
	s.notifier.Notify(ctx, notify.Notification{
		Project: m.projectID,
		Title:   fmt.Sprintf("%s: high %s usage", m.projectName, alert.Type),
		Body:    alert.Message,
		Level:   level,
	})
}

// Stop cancels sampling for projectID. In-memory history is kept.
func (s *Sampler) Stop(projectID string) {
	s.mu.Lock()
	m, ok := s.monitors[projectID]
	if ok {
		m.cancel()
		delete(s.monitors, projectID)
	}
	s.mu.Unlock()
	if ok {
		log.Printf("Performance monitoring stopped for %s", projectID)
	}
}

// Active reports whether projectID is being sampled.
func (s *Sampler) Active(projectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.monitors[projectID]
	return ok
}

// History returns the in-memory samples of projectID, oldest first.
func (s *Sampler) History(projectID string) []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.history[projectID]
	if !ok {
		return nil
	}
	return r.items()
}

// ClearHistory drops the in-memory samples of projectID.
func (s *Sampler) ClearHistory(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.monitors[projectID]; running {
		s.history[projectID] = newRing(s.opts.HistorySize)
		return
	}
	delete(s.history, projectID)
}

// LoadRange returns persisted samples of projectID within [start, end].
func (s *Sampler) LoadRange(projectID string, start, end time.Time) ([]Sample, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.LoadRange(projectID, start, end)
}

// Periods lists the months with persisted samples for projectID.
func (s *Sampler) Periods(projectID string) ([]Period, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.Periods(projectID)
}

// Close stops every loop and flushes persisted samples.
func (s *Sampler) Close() {
	s.mu.Lock()
	for id, m := range s.monitors {
		m.cancel()
		delete(s.monitors, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
	if s.store != nil {
		s.store.Close()
	}
}
