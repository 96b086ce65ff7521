// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// ProcessClient acts on processes by PID.
type ProcessClient struct {
	c *Client
}

// Kill forcefully terminates a process, typically one that holds a port a
// project needs. It reports whether the process was killed.
func (p *ProcessClient) Kill(ctx context.Context, pid int) (bool, error) {
	data, err := p.c.post(ctx, fmt.Sprintf("/api/v1/processes/%d/kill", pid))
	if err != nil {
		return false, err
	}
	var resp struct {
		Killed bool `json:"killed"`
	}
	if err := decode(data, "kill response", &resp); err != nil {
		return false, err
	}
	return resp.Killed, nil
}

// HealthClient reads health monitor state.
type HealthClient struct {
	c *Client
}

// Status returns the current health of each monitored task of a project.
func (h *HealthClient) Status(ctx context.Context, project string) ([]HealthState, error) {
	var states []HealthState
	if err := h.c.getInto(ctx, projectPath(project, "health"), "health", &states); err != nil {
		return nil, err
	}
	return states, nil
}

// History returns recent health transitions of a project, oldest first.
func (h *HealthClient) History(ctx context.Context, project string) ([]HealthEvent, error) {
	var entries []HealthEvent
	if err := h.c.getInto(ctx, projectPath(project, "health", "history"), "health history", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ClearHistory drops the recorded health transitions of a project.
func (h *HealthClient) ClearHistory(ctx context.Context, project string) error {
	_, err := h.c.delete(ctx, projectPath(project, "health", "history"))
	return err
}

// PerformanceClient reads CPU and memory samples.
type PerformanceClient struct {
	c *Client
}

// Current returns the in-memory samples of a project.
func (p *PerformanceClient) Current(ctx context.Context, project string) (*Performance, error) {
	var perf Performance
	if err := p.c.getInto(ctx, projectPath(project, "performance"), "performance", &perf); err != nil {
		return nil, err
	}
	return &perf, nil
}

// Clear drops the in-memory samples of a project. Persisted history is kept.
func (p *PerformanceClient) Clear(ctx context.Context, project string) error {
	_, err := p.c.delete(ctx, projectPath(project, "performance"))
	return err
}

// History returns persisted samples between start and end. A zero start
// means the earliest stored sample and a zero end means now.
func (p *PerformanceClient) History(ctx context.Context, project string, start, end time.Time) ([]Sample, error) {
	params := url.Values{}
	if !start.IsZero() {
		params.Set("start", start.Format(time.RFC3339))
	}
	if !end.IsZero() {
		params.Set("end", end.Format(time.RFC3339))
	}
	path := projectPath(project, "performance", "history")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var samples []Sample
	if err := p.c.getInto(ctx, path, "performance history", &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

// Periods lists the months that have persisted samples.
func (p *PerformanceClient) Periods(ctx context.Context, project string) ([]Period, error) {
	var periods []Period
	if err := p.c.getInto(ctx, projectPath(project, "performance", "periods"), "periods", &periods); err != nil {
		return nil, err
	}
	return periods, nil
}

// TunnelClient recognizes tunnel agent commands.
type TunnelClient struct {
	c *Client
}

// Detect reports whether command runs ngrok or cloudflared and, if so,
// suggests a monitoring config that captures its public URL.
func (t *TunnelClient) Detect(ctx context.Context, command string) (*DetectResult, error) {
	data, err := t.c.postJSON(ctx, "/api/v1/tunnel/detect", map[string]string{"command": command})
	if err != nil {
		return nil, err
	}
	var result DetectResult
	if err := decode(data, "detect result", &result); err != nil {
		return nil, err
	}
	return &result, nil
}
