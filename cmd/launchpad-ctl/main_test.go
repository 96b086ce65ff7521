// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/launchpad/pkg/client"
)

// fakeAPI serves canned envelopes and records the requests it sees.
type fakeAPI struct {
	mux *http.ServeMux

	mu       sync.Mutex
	requests []string
	bodies   map[string]string
}

func newFakeAPI(t *testing.T) (*fakeAPI, string) {
	t.Helper()
	f := &fakeAPI{mux: http.NewServeMux(), bodies: make(map[string]string)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		f.mu.Lock()
		key := r.Method + " " + r.URL.Path
		f.requests = append(f.requests, key)
		f.bodies[key] = string(body)
		f.mu.Unlock()
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func (f *fakeAPI) data(pattern string, v interface{}) {
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": v})
	})
}

func (f *fakeAPI) fail(pattern string, status int, code, message string) {
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": map[string]string{"code": code, "message": message}})
	})
}

func (f *fakeAPI) saw(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r == key {
			return true
		}
	}
	return false
}

func (f *fakeAPI) body(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[key]
}

func run(t *testing.T, url, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(strings.NewReader(stdin), &out)
	root.SetArgs(append([]string{"--api", url}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProjectsList(t *testing.T) {
	api, url := newFakeAPI(t)
	api.data("GET /api/v1/projects", []client.Project{
		{ID: "web", Name: "Web App", State: client.StateRunning, Environment: "dev", Tasks: []client.Task{{Name: "api", Running: true}, {Name: "ui"}}},
		{ID: "docs", Name: "Docs", State: client.StateStopped},
	})

	out, err := run(t, url, "", "projects")
	require.NoError(t, err)
	assert.Contains(t, out, "PROJECT")
	assert.Regexp(t, `web\s+Web App\s+running\s+1/2\s+dev`, out)
	assert.Regexp(t, `docs\s+Docs\s+stopped\s+0/0\s+-`, out)
}

func TestProjectsGet_JSON(t *testing.T) {
	api, url := newFakeAPI(t)
	api.data("GET /api/v1/projects/web", client.Project{ID: "web", State: client.StateRunning})

	out, err := run(t, url, "", "--json", "projects", "web")
	require.NoError(t, err)

	var p client.Project
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "web", p.ID)
}

func TestProjectsGet_Tasks(t *testing.T) {
	api, url := newFakeAPI(t)
	api.data("GET /api/v1/projects/web", client.Project{
		ID: "web", Name: "Web", State: client.StateRunning,
		Tasks:   []client.Task{{Name: "api", Mode: "internal", Running: true, PID: 4242, Ports: []int{8080}, Health: "healthy"}},
		Tunnels: []client.TunnelCapture{{Task: "tunnel", URL: "https://abc.ngrok.app"}},
	})

	out, err := run(t, url, "", "projects", "web")
	require.NoError(t, err)
	assert.Regexp(t, `api\s+internal\s+yes\s+4242\s+healthy\s+8080`, out)
	assert.Contains(t, out, "Tunnel tunnel: https://abc.ngrok.app")
}

func TestProjectsGet_NotFound(t *testing.T) {
	api, url := newFakeAPI(t)
	api.fail("GET /api/v1/projects/nope", http.StatusNotFound, "NOT_FOUND", "project not found: nope")

	_, err := run(t, url, "", "projects", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project not found")
}

func TestLaunch(t *testing.T) {
	api, url := newFakeAPI(t)
	api.data("POST /api/v1/projects/web/launch", client.LaunchResult{
		Project: "web", Environment: "dev", Success: true, Started: []string{"api"}, External: []string{"logs"},
	})

	out, err := run(t, url, "", "launch", "web", "-e", "dev")
	require.NoError(t, err)
	assert.Contains(t, out, "Launched web (dev)")
	assert.Contains(t, out, "started   api")
	assert.Contains(t, out, "terminal  logs")
	assert.JSONEq(t, `{"environment":"dev"}`, api.body("POST /api/v1/projects/web/launch"))
}

func conflictAPI(t *testing.T) (*fakeAPI, string) {
	api, url := newFakeAPI(t)
	api.data("POST /api/v1/projects/web/launch", client.LaunchResult{
		Project:   "web",
		Conflicts: []client.Conflict{{Port: 3000, PID: 999, ProcessName: "node", Task: "ui", Command: "npm run dev"}},
	})
	api.data("POST /api/v1/projects/web/launch/confirm", client.LaunchResult{Project: "web", Success: true, Started: []string{"ui"}})
	return api, url
}

func TestLaunch_ConflictsConfirmed(t *testing.T) {
	api, url := conflictAPI(t)

	out, err := run(t, url, "y\n", "launch", "web")
	require.NoError(t, err)
	assert.Contains(t, out, "1 port conflict(s) for web")
	assert.Regexp(t, `3000\s+999\s+node\s+ui\s+npm run dev`, out)
	assert.Contains(t, out, "Kill these processes and launch anyway? [y/N]")
	assert.Contains(t, out, "started   ui")
	assert.Contains(t, api.body("POST /api/v1/projects/web/launch/confirm"), `"pid":999`)
}

func TestLaunch_ConflictsDeclined(t *testing.T) {
	api, url := conflictAPI(t)

	_, err := run(t, url, "\n", "launch", "web")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
	assert.False(t, api.saw("POST /api/v1/projects/web/launch/confirm"))
}

func TestLaunch_Yes(t *testing.T) {
	api, url := conflictAPI(t)

	_, err := run(t, url, "", "launch", "web", "--yes")
	require.NoError(t, err)
	assert.True(t, api.saw("POST /api/v1/projects/web/launch/confirm"))
}

func TestLaunch_TaskErrors(t *testing.T) {
	api, url := newFakeAPI(t)
	api.data("POST /api/v1/projects/web/launch", client.LaunchResult{
		Project: "web", Errors: []client.TaskError{{Task: "api", Error: "exec: not found"}},
	})

	out, err := run(t, url, "", "launch", "web")
	require.Error(t, err)
	assert.Contains(t, out, "failed    api: exec: not found")
}

func TestStopAndTaskActions(t *testing.T) {
	api, url := newFakeAPI(t)
	project := client.Project{ID: "web", Tasks: []client.Task{{Name: "api", Running: true, PID: 77}}}
	api.data("POST /api/v1/projects/web/stop", client.Project{ID: "web"})
	api.data("POST /api/v1/projects/web/tasks/api/start", project)
	api.data("POST /api/v1/projects/web/tasks/api/stop", client.Project{ID: "web"})
	api.data("POST /api/v1/projects/web/tasks/api/restart", project)

	out, err := run(t, url, "", "stop", "web")
	require.NoError(t, err)
	assert.Equal(t, "Stopped web\n", out)

	out, err = run(t, url, "", "task", "start", "web", "api")
	require.NoError(t, err)
	assert.Equal(t, "Started web/api (PID 77)\n", out)

	out, err = run(t, url, "", "task", "stop", "web", "api")
	require.NoError(t, err)
	assert.Equal(t, "Stopped web/api\n", out)

	out, err = run(t, url, "", "restart", "web", "api")
	require.NoError(t, err)
	assert.Equal(t, "Restarted web/api (PID 77)\n", out)
}

func TestRestart_NotRunning(t *testing.T) {
	api, url := newFakeAPI(t)
	api.fail("POST /api/v1/projects/web/tasks/api/restart", http.StatusConflict, "CONFLICT", "task not running")

	_, err := run(t, url, "", "restart", "web", "api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFLICT")
}

func TestPorts(t *testing.T) {
	api, url := newFakeAPI(t)
	api.data("GET /api/v1/projects/web/ports", []client.Conflict{})

	out, err := run(t, url, "", "ports", "web")
	require.NoError(t, err)
	assert.Equal(t, "No port conflicts\n", out)
}

func TestKill(t *testing.T) {
	api, url := newFakeAPI(t)
	api.data("POST /api/v1/processes/123/kill", map[string]interface{}{"pid": 123, "killed": true})

	out, err := run(t, url, "", "kill", "123")
	require.NoError(t, err)
	assert.Equal(t, "Killed process 123\n", out)

	_, err = run(t, url, "", "kill", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pid")
}

func TestHealth(t *testing.T) {
	api, url := newFakeAPI(t)
	api.data("GET /api/v1/projects/web/health", []client.HealthState{
		{Task: "api", URL: "http://localhost:8080/health", Status: "degraded", Failures: 1, ResponseTimeMS: 12, LastError: "status 500"},
	})
	api.data("DELETE /api/v1/projects/web/health/history", nil)

	out, err := run(t, url, "", "health", "web")
	require.NoError(t, err)
	assert.Regexp(t, `api\s+degraded\s+1\s+12ms`, out)
	assert.Contains(t, out, "status 500")

	out, err = run(t, url, "", "health", "web", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared health history")
}

func TestPerf(t *testing.T) {
	api, url := newFakeAPI(t)
	api.data("GET /api/v1/projects/web/performance", client.Performance{
		Project: "web", Monitoring: true,
		Samples: []client.Sample{{CPU: 12.5, Memory: 256 * 1024 * 1024, Uptime: 90, Processes: []client.ProcessSample{{PID: 1}, {PID: 2}}}},
	})
	api.data("GET /api/v1/projects/web/performance/periods", []client.Period{{Year: 2026, Month: 9}, {Year: 2026, Month: 10}})
	api.data("GET /api/v1/projects/web/performance/history", []client.Sample{})

	out, err := run(t, url, "", "perf", "web")
	require.NoError(t, err)
	assert.Regexp(t, `12\.5\s+256\.0MB\s+2\s+1m30s`, out)

	out, err = run(t, url, "", "perf", "web", "--periods")
	require.NoError(t, err)
	assert.Equal(t, "2026-09\n2026-10\n", out)

	_, err = run(t, url, "", "perf", "web", "--since", "2h")
	require.NoError(t, err)
	assert.True(t, api.saw("GET /api/v1/projects/web/performance/history"))

	_, err = run(t, url, "", "perf", "web", "--since", "soon")
	require.Error(t, err)
}

func TestDetect(t *testing.T) {
	api, url := newFakeAPI(t)
	api.data("POST /api/v1/tunnel/detect", client.DetectResult{
		Detected:   true,
		Monitoring: &client.MonitoringConfig{Enabled: true, Type: "ngrok", APIURL: "http://127.0.0.1:4040/api/tunnels"},
	})

	out, err := run(t, url, "", "detect", "ngrok", "http", "3000")
	require.NoError(t, err)
	assert.Contains(t, out, "Detected ngrok")
	assert.Contains(t, out, `"api_url": "http://127.0.0.1:4040/api/tunnels"`)
	assert.JSONEq(t, `{"command":"ngrok http 3000"}`, api.body("POST /api/v1/tunnel/detect"))
}

func TestOutput(t *testing.T) {
	api, url := newFakeAPI(t)
	ts := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	api.data("GET /api/v1/projects/web/tasks/api/output", client.TaskOutput{
		Project: "web", Task: "api",
		Lines: []client.OutputLine{
			{Sequence: 1, Stream: "stdout", Line: "booting", Time: ts},
			{Sequence: 2, Stream: "stdout", Line: "GET /health 200", Time: ts},
			{Sequence: 3, Stream: "stderr", Line: "GET /boom 500", Time: ts},
		},
	})

	out, err := run(t, url, "", "output", "web", "api", "--grep", "500", "--format", "raw")
	require.NoError(t, err)
	assert.Equal(t, "GET /boom 500\n", out)

	out, err = run(t, url, "", "output", "web", "api", "--grep", "boom", "-B", "1", "--format", "raw")
	require.NoError(t, err)
	assert.Equal(t, "GET /health 200\nGET /boom 500\n", out)

	out, err = run(t, url, "", "--json", "output", "web", "api", "--stream", "stderr")
	require.NoError(t, err)
	var lines []client.OutputLine
	require.NoError(t, json.Unmarshal([]byte(out), &lines))
	require.Len(t, lines, 1)
	assert.Equal(t, int64(3), lines[0].Sequence)
}

func TestOutputLineFromEvent(t *testing.T) {
	ts := time.Now()
	ev := client.Event{
		Type:      "process.output",
		Timestamp: ts,
		Payload:   map[string]interface{}{"task": "api", "stream": "stderr", "data": "oops", "seq": float64(9)},
	}

	line, ok := outputLineFromEvent(ev, "api")
	require.True(t, ok)
	assert.Equal(t, client.OutputLine{Sequence: 9, Stream: "stderr", Line: "oops", Time: ts}, line)

	_, ok = outputLineFromEvent(ev, "ui")
	assert.False(t, ok)

	ev.Type = "process.started"
	_, ok = outputLineFromEvent(ev, "api")
	assert.False(t, ok)
}

func TestEvents(t *testing.T) {
	api, url := newFakeAPI(t)
	api.data("GET /api/v1/events", []client.Event{
		{Type: "project.launched", Project: "web", Timestamp: time.Now(), Payload: map[string]interface{}{"project": "web", "environment": "dev", "tasks": float64(2)}},
	})

	out, err := run(t, url, "", "events", "-n", "5", "-t", "project.*")
	require.NoError(t, err)
	assert.Regexp(t, `project\.launched\s+web\s+environment=dev tasks=2`, out)
}

func TestNotify(t *testing.T) {
	api, url := newFakeAPI(t)
	api.data("POST /api/v1/notify", map[string]string{"title": "Build done"})

	out, err := run(t, url, "", "notify", "Build done", "-l", "warning", "-p", "web")
	require.NoError(t, err)
	assert.Equal(t, "Notification sent\n", out)
	assert.JSONEq(t, `{"project":"web","title":"Build done","level":"warning"}`, api.body("POST /api/v1/notify"))

	_, err = run(t, url, "", "notify", "x", "-l", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid level")
}
