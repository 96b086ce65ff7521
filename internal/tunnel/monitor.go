// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package tunnel polls local tunnel agents (ngrok, cloudflared) for the
// public URL they were assigned and writes it into a task's env file.
package tunnel

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/wingedpig/launchpad/internal/config"
	"github.com/wingedpig/launchpad/internal/envfile"
	"github.com/wingedpig/launchpad/internal/events"
	"github.com/wingedpig/launchpad/internal/notify"
)

// Capture is a URL captured for a task.
type Capture struct {
	Project  string    `json:"project"`
	Task     string    `json:"task"`
	RawURL   string    `json:"rawUrl"`
	URL      string    `json:"url"` // After the URL template was applied
	EnvVar   string    `json:"envVar,omitempty"`
	EnvFile  string    `json:"envFile,omitempty"`
	Captured time.Time `json:"captured"`
}

type poll struct {
	projectID   string
	projectName string
	task        config.Task
	environment string
	ctx         context.Context
	cancel      context.CancelFunc
}

// ServiceMonitor runs one polling loop per (project, task).
type ServiceMonitor struct {
	bus      events.EventBus
	notifier notify.Notifier
	client   *http.Client

	mu       sync.Mutex
	polls    map[string]*poll
	captures map[string]Capture
	wg       sync.WaitGroup
}

// NewServiceMonitor creates a service monitor.
func NewServiceMonitor(bus events.EventBus, notifier notify.Notifier) *ServiceMonitor {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &ServiceMonitor{
		bus:      bus,
		notifier: notifier,
		client:   &http.Client{},
		polls:    make(map[string]*poll),
		captures: make(map[string]Capture),
	}
}

func pollKey(projectID, task string) string {
	return projectID + "/" + task
}

// StartMonitoring polls the task's tunnel API until a URL is captured or
// max attempts are used up. It returns false when the task has no enabled
// monitoring config. A poll already running for the task is replaced.
func (s *ServiceMonitor) StartMonitoring(projectID, projectName string, task config.Task, environment string) bool {
	if !task.MonitoringEnabled() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &poll{
		projectID:   projectID,
		projectName: projectName,
		task:        task,
		environment: environment,
		ctx:         ctx,
		cancel:      cancel,
	}

	key := pollKey(projectID, task.Name)
	s.mu.Lock()
	if old, ok := s.polls[key]; ok {
		old.cancel()
	}
	s.polls[key] = p
	s.mu.Unlock()

	log.Printf("Tunnel monitoring started for %s/%s (%s)", projectID, task.Name, task.Monitoring.APIURL)

	s.wg.Add(1)
	go s.run(p)
	return true
}

func (s *ServiceMonitor) run(p *poll) {
	defer s.wg.Done()
	defer s.remove(p)

	mon := p.task.Monitoring
	interval := mon.GetInterval()
	attempts := mon.GetMaxAttempts()

	for attempt := 1; attempt <= attempts; attempt++ {
		if rawURL, ok := s.fetch(p.ctx, mon.APIURL, interval); ok {
			s.captured(p, rawURL)
			return
		}
		if attempt == attempts {
			break
		}
		select {
		case <-p.ctx.Done():
			return
		case <-time.After(interval):
		}
	}

	if p.ctx.Err() != nil {
		return
	}
	log.Printf("Tunnel monitoring gave up for %s/%s after %d attempts", p.projectID, p.task.Name, attempts)
	events.Emit(context.Background(), s.bus, events.EventTunnelGaveUp, p.projectID, map[string]interface{}{
		"project":  p.projectID,
		"task":     p.task.Name,
		"attempts": attempts,
		"apiUrl":   mon.APIURL,
	})
}

// fetch makes one request to the agent API. Any failure means "not yet".
func (s *ServiceMonitor) fetch(ctx context.Context, apiURL string, interval time.Duration) (string, bool) {
	timeout := interval
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", false
	}
	return ExtractURL(body)
}

func (s *ServiceMonitor) captured(p *poll, rawURL string) {
	if p.ctx.Err() != nil {
		return
	}
	mon := p.task.Monitoring
	c := Capture{
		Project:  p.projectID,
		Task:     p.task.Name,
		RawURL:   rawURL,
		URL:      ApplyTemplate(mon.GetURLTemplate(), rawURL),
		Captured: time.Now(),
	}

	if mon.EnvVar != "" && p.task.EnvFile != "" {
		if err := envfile.Update(p.task.EnvFile, mon.EnvVar, c.URL); err != nil {
			log.Printf("Tunnel URL for %s/%s not written to %s: %v", p.projectID, p.task.Name, p.task.EnvFile, err)
		} else {
			c.EnvVar = mon.EnvVar
			c.EnvFile = p.task.EnvFile
		}
	}

	s.mu.Lock()
	if p.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.captures[pollKey(p.projectID, p.task.Name)] = c
	s.mu.Unlock()

	log.Printf("Tunnel URL captured for %s/%s: %s", p.projectID, p.task.Name, c.URL)

	ctx := context.Background()
	events.Emit(ctx, s.bus, events.EventTunnelURLCaptured, p.projectID, map[string]interface{}{
		"project":     p.projectID,
		"task":        p.task.Name,
		"environment": p.environment,
		"url":         c.URL,
		"rawUrl":      c.RawURL,
		"envVar":      c.EnvVar,
		"envFile":     c.EnvFile,
	})

	body := c.URL
	if c.EnvVar != "" {
		body = fmt.Sprintf("%s=%s", c.EnvVar, c.URL)
	}
	s.notifier.Notify(ctx, notify.Notification{
		Project: p.projectID,
		Title:   fmt.Sprintf("%s: tunnel URL captured", p.projectName),
		Body:    body,
		Level:   notify.LevelInfo,
	})
}

func (s *ServiceMonitor) remove(p *poll) {
	key := pollKey(p.projectID, p.task.Name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.polls[key] == p {
		delete(s.polls, key)
	}
	p.cancel()
}

// StopProjectMonitors cancels every in-flight poll of projectID and forgets
// its captured URLs.
func (s *ServiceMonitor) StopProjectMonitors(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, p := range s.polls {
		if p.projectID == projectID {
			p.cancel()
			delete(s.polls, key)
		}
	}
	for key, c := range s.captures {
		if c.Project == projectID {
			delete(s.captures, key)
		}
	}
}

// Active returns how many polls run for projectID.
func (s *ServiceMonitor) Active(projectID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.polls {
		if p.projectID == projectID {
			n++
		}
	}
	return n
}

// Captures returns the URLs captured for projectID, sorted by task.
func (s *ServiceMonitor) Captures(projectID string) []Capture {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Capture
	for _, c := range s.captures {
		if c.Project == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	return out
}

// Close cancels every poll and waits for the loops to exit.
func (s *ServiceMonitor) Close() {
	s.mu.Lock()
	for key, p := range s.polls {
		p.cancel()
		delete(s.polls, key)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
