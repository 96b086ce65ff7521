// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package launcher

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/wingedpig/launchpad/internal/events"
	"github.com/wingedpig/launchpad/internal/notify"
)

// onRestartRequired restarts a task the health engine gave up on, within
// the per-task restart budget.
func (c *Coordinator) onRestartRequired(ctx context.Context, e events.Event) error {
	projectID, _ := e.Payload["project"].(string)
	taskName, _ := e.Payload["task"].(string)
	if projectID == "" || taskName == "" {
		return nil
	}

	c.mu.Lock()
	r := c.runs[projectID]
	if r == nil || r.state != StateRunning {
		c.mu.Unlock()
		return nil
	}
	t, ok := r.tasks[taskName]
	if !ok || t.HealthCheck == nil || !t.HealthCheck.AutoRestart {
		c.mu.Unlock()
		return nil
	}
	projectName := r.project.Name
	allowed, recent := c.allowRestartLocked(projectID, taskName, time.Now())
	c.mu.Unlock()

	if !allowed {
		log.Printf("Auto-restart of %s/%s suppressed: %d restarts within %s", projectID, taskName, recent, c.opts.RestartWindow)
		events.Emit(ctx, c.bus, events.EventHealthRestartSuppressed, projectID, map[string]interface{}{
			"project":  projectID,
			"task":     taskName,
			"restarts": recent,
			"window":   c.opts.RestartWindow.String(),
		})
		c.notifier.Notify(ctx, notify.Notification{
			Project: projectID,
			Title:   fmt.Sprintf("%s: %s keeps failing", projectName, taskName),
			Body:    fmt.Sprintf("Restarted %d times in %s; not restarting again", recent, c.opts.RestartWindow),
			Level:   notify.LevelWarning,
		})
		return nil
	}

	if err := c.restartTask(ctx, projectID, taskName, TriggerHealth); err != nil {
		log.Printf("Auto-restart of %s/%s failed: %v", projectID, taskName, err)
	}
	return nil
}

// allowRestartLocked records a restart of task if fewer than
// MaxAutoRestarts happened within RestartWindow. It returns the number of
// restarts in the window.
func (c *Coordinator) allowRestartLocked(projectID, taskName string, now time.Time) (bool, int) {
	key := projectID + "/" + taskName
	cutoff := now.Add(-c.opts.RestartWindow)
	var recent []time.Time
	for _, t := range c.restarts[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if c.opts.MaxAutoRestarts > 0 && len(recent) >= c.opts.MaxAutoRestarts {
		c.restarts[key] = recent
		return false, len(recent)
	}
	c.restarts[key] = append(recent, now)
	return true, len(recent) + 1
}

func (c *Coordinator) clearRestartsLocked(projectID string) {
	prefix := projectID + "/"
	for key := range c.restarts {
		if strings.HasPrefix(key, prefix) {
			delete(c.restarts, key)
		}
	}
}
