// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"net/url"
)

// ProjectClient launches, stops and inspects projects.
//
// Access this client through [Client.Projects]:
//
//	projects, err := client.Projects.List(ctx)
type ProjectClient struct {
	c *Client
}

type launchRequest struct {
	Environment string     `json:"environment,omitempty"`
	Conflicts   []Conflict `json:"conflicts,omitempty"`
}

func projectPath(id string, parts ...string) string {
	p := "/api/v1/projects/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// List returns every configured project and its current state.
func (p *ProjectClient) List(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := p.c.getInto(ctx, "/api/v1/projects", "projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Get returns one project.
func (p *ProjectClient) Get(ctx context.Context, id string) (*Project, error) {
	var project Project
	if err := p.c.getInto(ctx, projectPath(id), "project", &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// Launch starts every task of a project that runs in environment. An empty
// environment runs tasks that are not restricted to an environment.
//
// If another process listens on a port a task needs, nothing is started and
// the result lists the conflicts. Pass them to [ProjectClient.ConfirmLaunch]
// to kill those processes and launch anyway.
func (p *ProjectClient) Launch(ctx context.Context, id, environment string) (*LaunchResult, error) {
	return p.launch(ctx, projectPath(id, "launch"), launchRequest{Environment: environment})
}

// ConfirmLaunch kills the owners of conflicts and launches the project.
func (p *ProjectClient) ConfirmLaunch(ctx context.Context, id, environment string, conflicts []Conflict) (*LaunchResult, error) {
	return p.launch(ctx, projectPath(id, "launch", "confirm"), launchRequest{Environment: environment, Conflicts: conflicts})
}

func (p *ProjectClient) launch(ctx context.Context, path string, req launchRequest) (*LaunchResult, error) {
	data, err := p.c.postJSON(ctx, path, req)
	if err != nil {
		return nil, err
	}
	var result LaunchResult
	if err := decode(data, "launch result", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Stop terminates every task of a project and returns its updated state.
func (p *ProjectClient) Stop(ctx context.Context, id string) (*Project, error) {
	return p.action(ctx, projectPath(id, "stop"))
}

// Ports returns the ports a launch in environment would need that other
// processes currently hold.
func (p *ProjectClient) Ports(ctx context.Context, id, environment string) ([]Conflict, error) {
	path := projectPath(id, "ports")
	if environment != "" {
		path += "?environment=" + url.QueryEscape(environment)
	}
	var conflicts []Conflict
	if err := p.c.getInto(ctx, path, "port conflicts", &conflicts); err != nil {
		return nil, err
	}
	return conflicts, nil
}

// StartTask starts one task of a project.
func (p *ProjectClient) StartTask(ctx context.Context, id, task string) (*Project, error) {
	return p.action(ctx, projectPath(id, "tasks", task, "start"))
}

// StopTask stops one task of a project.
func (p *ProjectClient) StopTask(ctx context.Context, id, task string) (*Project, error) {
	return p.action(ctx, projectPath(id, "tasks", task, "stop"))
}

// RestartTask stops a task, waits for its ports to settle and starts it
// again.
func (p *ProjectClient) RestartTask(ctx context.Context, id, task string) (*Project, error) {
	return p.action(ctx, projectPath(id, "tasks", task, "restart"))
}

func (p *ProjectClient) action(ctx context.Context, path string) (*Project, error) {
	data, err := p.c.post(ctx, path)
	if err != nil {
		return nil, err
	}
	var project Project
	if err := decode(data, "project", &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// Output returns up to lines recent output lines of a task.
func (p *ProjectClient) Output(ctx context.Context, id, task string, lines int) (*TaskOutput, error) {
	path := projectPath(id, "tasks", task, "output")
	if lines > 0 {
		path += fmt.Sprintf("?lines=%d", lines)
	}
	var out TaskOutput
	if err := p.c.getInto(ctx, path, "task output", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
