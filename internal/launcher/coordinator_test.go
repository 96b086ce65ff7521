// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package launcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/launchpad/internal/config"
	"github.com/wingedpig/launchpad/internal/events"
	"github.com/wingedpig/launchpad/internal/health"
	"github.com/wingedpig/launchpad/internal/perf"
	"github.com/wingedpig/launchpad/internal/ports"
	"github.com/wingedpig/launchpad/internal/process"
	"github.com/wingedpig/launchpad/internal/tunnel"
)

type fakePlatform struct {
	mu        sync.Mutex
	listeners map[int]int
	killed    []int
	external  [][]ports.ExternalTask
	extErr    error
}

func (f *fakePlatform) ListenerPID(ctx context.Context, port int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listeners[port], nil
}

func (f *fakePlatform) Kill(ctx context.Context, pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, pid)
	for port, owner := range f.listeners {
		if owner == pid {
			delete(f.listeners, port)
		}
	}
	return nil
}

func (f *fakePlatform) LaunchExternal(ctx context.Context, tasks []ports.ExternalTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.extErr != nil {
		return f.extErr
	}
	f.external = append(f.external, tasks)
	return nil
}

type switchProber struct {
	ok atomic.Bool
}

func (p *switchProber) Probe(ctx context.Context, url string, timeout time.Duration) health.ProbeResult {
	if p.ok.Load() {
		return health.ProbeResult{OK: true, StatusCode: 200}
	}
	return health.ProbeResult{Err: errors.New("connection refused")}
}

type zeroInspector struct{}

func (zeroInspector) Inspect(ctx context.Context, pids []int) []perf.ProcessSample {
	out := make([]perf.ProcessSample, 0, len(pids))
	for _, pid := range pids {
		out = append(out, perf.ProcessSample{PID: pid})
	}
	return out
}

type harness struct {
	c        *Coordinator
	bus      *events.MemoryEventBus
	platform *fakePlatform
	prober   *switchProber
	sup      *process.Supervisor
	health   *health.Engine
	perf     *perf.Sampler
	tunnels  *tunnel.ServiceMonitor
}

func testOptions() Options {
	return Options{
		SettleDelay:     10 * time.Millisecond,
		PerfDelay:       20 * time.Millisecond,
		HealthDelay:     20 * time.Millisecond,
		StopGrace:       10 * time.Millisecond,
		MaxAutoRestarts: 5,
		RestartWindow:   time.Minute,
	}
}

func newHarness(t *testing.T, opts Options, projects ...config.Project) *harness {
	t.Helper()
	for i := range projects {
		for j := range projects[i].Tasks {
			if projects[i].Tasks[j].Mode == "" {
				projects[i].Tasks[j].Mode = config.ModeInternal
			}
		}
	}

	bus := events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: 5000,
		HistoryMaxAge:    time.Hour,
		HistoryExclude:   []string{events.EventProcessOutput},
	})
	h := &harness{
		bus:      bus,
		platform: &fakePlatform{listeners: make(map[int]int)},
		prober:   &switchProber{},
	}
	h.prober.ok.Store(true)
	h.sup = process.NewSupervisor(bus, nil)
	h.health = health.NewEngine(bus, nil, h.prober)
	popts := perf.DefaultOptions()
	popts.Interval = 10 * time.Millisecond
	h.perf = perf.NewSampler(popts, zeroInspector{}, nil, bus, nil)
	h.tunnels = tunnel.NewServiceMonitor(bus, nil)

	c, err := New(opts, projects, Deps{
		Supervisor: h.sup,
		Ports:      ports.NewResolver(h.platform),
		Health:     h.health,
		Perf:       h.perf,
		Tunnels:    h.tunnels,
		Bus:        bus,
	})
	require.NoError(t, err)
	h.c = c

	t.Cleanup(func() {
		c.Close(context.Background())
		h.sup.Shutdown()
		h.health.Close()
		h.perf.Close()
		h.tunnels.Close()
		bus.Close()
	})
	return h
}

func (h *harness) events(t *testing.T, eventType string) []events.Event {
	t.Helper()
	out, err := h.bus.History(events.EventFilter{Types: []string{eventType}})
	require.NoError(t, err)
	return out
}

func sleeper(name string) config.Task {
	return config.Task{Name: name, Command: "sleep 30"}
}

func TestLaunch_FiltersByEnvironment(t *testing.T) {
	worker := sleeper("worker")
	worker.Environments = []string{"prod"}
	h := newHarness(t, testOptions(), config.Project{
		ID:    "shop",
		Name:  "Shop",
		Tasks: []config.Task{sleeper("web"), worker},
	})
	ctx := context.Background()

	res, err := h.c.Launch(ctx, "shop", "dev")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"web"}, res.Started)
	assert.False(t, h.sup.Running("shop", "worker"))
	require.NoError(t, h.c.Stop(ctx, "shop"))

	res, err = h.c.Launch(ctx, "shop", "prod")
	require.NoError(t, err)
	assert.Equal(t, []string{"web", "worker"}, res.Started)

	st, err := h.c.Status("shop")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, "prod", st.Environment)
	require.Len(t, st.Tasks, 2)
	assert.True(t, st.Tasks[0].Running)
	assert.NotZero(t, st.Tasks[0].PID)
}

func TestLaunch_Errors(t *testing.T) {
	h := newHarness(t, testOptions(), config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{sleeper("web")}})
	ctx := context.Background()

	_, err := h.c.Launch(ctx, "nope", "")
	assert.ErrorIs(t, err, ErrProjectNotFound)

	_, err = h.c.Launch(ctx, "shop", "")
	require.NoError(t, err)
	_, err = h.c.Launch(ctx, "shop", "")
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestLaunch_PortConflictsHaltLaunch(t *testing.T) {
	web := config.Task{Name: "web", Command: "sleep 30 # --port 3000"}
	api := config.Task{Name: "api", Command: "sleep 30", Port: 8080}
	h := newHarness(t, testOptions(), config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{web, api}})
	h.platform.listeners[3000] = 4242
	ctx := context.Background()

	res, err := h.c.Launch(ctx, "shop", "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, 3000, res.Conflicts[0].Port)
	assert.Equal(t, 4242, res.Conflicts[0].PID)
	assert.Equal(t, "web", res.Conflicts[0].TaskName)
	assert.Empty(t, h.sup.Handles("shop"), "nothing spawned while conflicts are pending")
	assert.Len(t, h.events(t, events.EventProjectConflicts), 1)

	st, err := h.c.Status("shop")
	require.NoError(t, err)
	assert.Equal(t, StateStopped, st.State)
	assert.Len(t, st.Conflicts, 1)

	res, err = h.c.ConfirmLaunch(ctx, "shop", "", res.Conflicts)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []int{4242}, h.platform.killed)
	assert.ElementsMatch(t, []string{"web", "api"}, res.Started)

	st, err = h.c.Status("shop")
	require.NoError(t, err)
	assert.Empty(t, st.Conflicts)
}

func TestLaunch_SpawnFailureDoesNotAbortSiblings(t *testing.T) {
	bad := sleeper("bad")
	bad.WorkDir = "/nonexistent/launchpad/dir"
	h := newHarness(t, testOptions(), config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{bad, sleeper("web")}})

	res, err := h.c.Launch(context.Background(), "shop", "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"web"}, res.Started)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "bad", res.Errors[0].Task)
	assert.True(t, h.sup.Running("shop", "web"))

	launched := h.events(t, events.EventProjectLaunched)
	require.Len(t, launched, 1)
	assert.Equal(t, false, launched[0].Payload["success"])
}

func TestLaunch_AllFailedLeavesProjectStopped(t *testing.T) {
	bad := sleeper("bad")
	bad.WorkDir = "/nonexistent/launchpad/dir"
	h := newHarness(t, testOptions(), config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{bad}})

	res, err := h.c.Launch(context.Background(), "shop", "")
	require.NoError(t, err)
	assert.False(t, res.Success)

	st, err := h.c.Status("shop")
	require.NoError(t, err)
	assert.Equal(t, StateStopped, st.State)
}

func TestLaunch_ExpandsTemplatesAndEnvironment(t *testing.T) {
	task := config.Task{
		Name:    "web",
		Command: `echo "$GREETING from {{.Project.ID}}"; sleep 30`,
		Env: map[string]map[string]string{
			"dev": {"GREETING": "hello {{.Environment}}"},
		},
	}
	h := newHarness(t, testOptions(), config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{task}})

	_, err := h.c.Launch(context.Background(), "shop", "dev")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, line := range h.sup.Output("shop", "web", 10) {
			if line.Line == "hello dev from shop" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLaunch_TemplateErrorIsReportedPerTask(t *testing.T) {
	broken := config.Task{Name: "broken", Command: "echo {{.Nope}}"}
	h := newHarness(t, testOptions(), config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{broken, sleeper("web")}})

	res, err := h.c.Launch(context.Background(), "shop", "")
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "broken", res.Errors[0].Task)
	assert.Equal(t, []string{"web"}, res.Started)
}

func TestLaunch_ExternalTasks(t *testing.T) {
	ext := config.Task{Name: "tunnel", Command: "ngrok http 3000", Mode: config.ModeExternal}
	h := newHarness(t, testOptions(), config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{sleeper("web"), ext}})

	res, err := h.c.Launch(context.Background(), "shop", "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"tunnel"}, res.External)
	require.Len(t, h.platform.external, 1)
	require.Len(t, h.platform.external[0], 1)
	assert.Equal(t, "Shop: tunnel", h.platform.external[0][0].Title)
	assert.False(t, h.sup.Running("shop", "tunnel"))

	st, err := h.c.Status("shop")
	require.NoError(t, err)
	assert.True(t, st.Tasks[1].Running)
}

func TestLaunch_ExternalFailureReported(t *testing.T) {
	ext := config.Task{Name: "tunnel", Command: "ngrok http 3000", Mode: config.ModeExternal}
	h := newHarness(t, testOptions(), config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{sleeper("web"), ext}})
	h.platform.extErr = ports.ErrNoTerminal

	res, err := h.c.Launch(context.Background(), "shop", "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "tunnel", res.Errors[0].Task)
	assert.Equal(t, []string{"web"}, res.Started)
}

func TestLaunch_StartsMonitorsAfterDelay(t *testing.T) {
	web := sleeper("web")
	web.HealthCheck = &config.HealthCheckConfig{Enabled: true, URL: "http://127.0.0.1:1/health", IntervalMS: 10000}
	h := newHarness(t, testOptions(), config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{web, sleeper("worker")}})

	_, err := h.c.Launch(context.Background(), "shop", "")
	require.NoError(t, err)
	assert.Equal(t, 0, h.health.Active("shop"), "health monitors wait for the health delay")

	require.Eventually(t, func() bool {
		return h.health.Active("shop") == 1 && h.perf.Active("shop")
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(h.perf.History("shop")) > 0 }, time.Second, 5*time.Millisecond)
	sample := h.perf.History("shop")[0]
	assert.Len(t, sample.Processes, 2)
}

func TestStop_LeavesNothingRunning(t *testing.T) {
	web := sleeper("web")
	web.HealthCheck = &config.HealthCheckConfig{Enabled: true, URL: "http://127.0.0.1:1/health", IntervalMS: 10000}
	api := sleeper("api")
	api.HealthCheck = &config.HealthCheckConfig{Enabled: true, URL: "http://127.0.0.1:1/health", IntervalMS: 10000}
	h := newHarness(t, testOptions(), config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{web, api, sleeper("worker")}})
	ctx := context.Background()

	_, err := h.c.Launch(ctx, "shop", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return h.health.Active("shop") == 2 && h.perf.Active("shop")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.c.Stop(ctx, "shop"))

	assert.Empty(t, h.sup.Handles("shop"))
	assert.Equal(t, 0, h.health.Active("shop"))
	assert.False(t, h.perf.Active("shop"))
	assert.Equal(t, 0, h.tunnels.Active("shop"))
	assert.Empty(t, h.events(t, events.EventProcessCrashed), "intentional stop is not a crash")

	st, err := h.c.Status("shop")
	require.NoError(t, err)
	assert.Equal(t, StateStopped, st.State)

	stopped := h.events(t, events.EventProjectStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, "stopped", stopped[0].Payload["reason"])

	require.Eventually(t, func() bool { return !h.sup.IsStopping("shop") }, time.Second, 5*time.Millisecond)
}

func TestStop_BeforeMonitorsStart(t *testing.T) {
	web := sleeper("web")
	web.HealthCheck = &config.HealthCheckConfig{Enabled: true, URL: "http://127.0.0.1:1/health"}
	opts := testOptions()
	opts.HealthDelay = 50 * time.Millisecond
	opts.PerfDelay = 50 * time.Millisecond
	h := newHarness(t, opts, config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{web}})
	ctx := context.Background()

	_, err := h.c.Launch(ctx, "shop", "")
	require.NoError(t, err)
	require.NoError(t, h.c.Stop(ctx, "shop"))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, h.health.Active("shop"), "pending monitor starts are cancelled")
	assert.False(t, h.perf.Active("shop"))
}

func TestProjectStopsWhenAllTasksExit(t *testing.T) {
	h := newHarness(t, testOptions(), config.Project{
		ID:    "shop",
		Name:  "Shop",
		Tasks: []config.Task{{Name: "once", Command: "sleep 0.2"}},
	})

	_, err := h.c.Launch(context.Background(), "shop", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := h.c.Status("shop")
		return err == nil && st.State == StateStopped
	}, 3*time.Second, 10*time.Millisecond)

	stopped := h.events(t, events.EventProjectStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, "exited", stopped[0].Payload["reason"])
	assert.False(t, h.perf.Active("shop"))
}

func TestTaskExitStopsItsHealthMonitor(t *testing.T) {
	api := config.Task{Name: "api", Command: "sleep 0.3; exit 1"}
	api.HealthCheck = &config.HealthCheckConfig{Enabled: true, URL: "http://127.0.0.1:1/health", IntervalMS: 10000, AutoRestart: true}
	worker := sleeper("worker")
	worker.HealthCheck = &config.HealthCheckConfig{Enabled: true, URL: "http://127.0.0.1:1/health", IntervalMS: 10000}
	h := newHarness(t, testOptions(), config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{api, worker}})

	_, err := h.c.Launch(context.Background(), "shop", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.health.Monitoring("shop", "api") }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return !h.sup.Running("shop", "api") && !h.health.Monitoring("shop", "api")
	}, 3*time.Second, 10*time.Millisecond)

	assert.True(t, h.health.Monitoring("shop", "worker"), "siblings keep their monitors")
	st, err := h.c.Status("shop")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, st.State)

	// An unhealthy streak on the dead task must not resurrect it
	h.prober.ok.Store(false)
	time.Sleep(100 * time.Millisecond)
	assert.False(t, h.sup.Running("shop", "api"))
	assert.Empty(t, h.events(t, events.EventTaskRestarted))
}

func TestRestartTask(t *testing.T) {
	web := sleeper("web")
	web.HealthCheck = &config.HealthCheckConfig{Enabled: true, URL: "http://127.0.0.1:1/health", IntervalMS: 10000}
	h := newHarness(t, testOptions(), config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{web}})
	ctx := context.Background()

	_, err := h.c.Launch(ctx, "shop", "")
	require.NoError(t, err)
	before, ok := h.sup.Handle("shop", "web")
	require.True(t, ok)

	require.NoError(t, h.c.RestartTask(ctx, "shop", "web"))

	after, ok := h.sup.Handle("shop", "web")
	require.True(t, ok)
	assert.NotEqual(t, before.PID, after.PID)
	assert.False(t, before.Alive())

	st, err := h.c.Status("shop")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, st.State, "restarting the only task keeps the project running")

	restarted := h.events(t, events.EventTaskRestarted)
	require.Len(t, restarted, 1)
	assert.Equal(t, TriggerManual, restarted[0].Payload["trigger"])
	assert.Empty(t, h.events(t, events.EventProcessCrashed))

	require.Eventually(t, func() bool { return h.health.Monitoring("shop", "web") }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, h.c.RestartTask(ctx, "shop", "missing"), ErrTaskNotFound)
	require.NoError(t, h.c.Stop(ctx, "shop"))
	assert.ErrorIs(t, h.c.RestartTask(ctx, "shop", "web"), ErrNotRunning)
}

func TestStartAndStopTask(t *testing.T) {
	h := newHarness(t, testOptions(), config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{sleeper("web"), sleeper("api")}})
	ctx := context.Background()

	require.NoError(t, h.c.StartTask(ctx, "shop", "web"))
	st, err := h.c.Status("shop")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, st.State)
	assert.True(t, st.Tasks[0].Running)
	assert.False(t, st.Tasks[1].Running)

	assert.ErrorIs(t, h.c.StartTask(ctx, "shop", "web"), process.ErrAlreadyRunning)
	require.NoError(t, h.c.StartTask(ctx, "shop", "api"))

	require.NoError(t, h.c.StopTask(ctx, "shop", "web"))
	assert.False(t, h.sup.Running("shop", "web"))
	assert.True(t, h.sup.Running("shop", "api"))
	assert.ErrorIs(t, h.c.StopTask(ctx, "shop", "web"), ErrNotRunning)

	require.NoError(t, h.c.StopTask(ctx, "shop", "api"))
	require.Eventually(t, func() bool {
		st, err := h.c.Status("shop")
		return err == nil && st.State == StateStopped
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, h.events(t, events.EventProcessCrashed))
}

func TestHealthTriggeredRestartWithBudget(t *testing.T) {
	web := sleeper("web")
	web.HealthCheck = &config.HealthCheckConfig{
		Enabled:     true,
		URL:         "http://127.0.0.1:1/health",
		IntervalMS:  10,
		Retries:     1,
		AutoRestart: true,
	}
	opts := testOptions()
	opts.HealthDelay = 5 * time.Millisecond
	opts.MaxAutoRestarts = 2
	h := newHarness(t, opts, config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{web}})
	h.prober.ok.Store(false)

	_, err := h.c.Launch(context.Background(), "shop", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(h.events(t, events.EventHealthRestartSuppressed)) >= 1
	}, 5*time.Second, 10*time.Millisecond)

	var healthRestarts int
	for _, e := range h.events(t, events.EventTaskRestarted) {
		if e.Payload["trigger"] == TriggerHealth {
			healthRestarts++
		}
	}
	assert.Equal(t, 2, healthRestarts)
	assert.True(t, h.sup.Running("shop", "web"), "suppressed restarts leave the task alone")
}

func TestCheckPortsIgnoresOwnProcesses(t *testing.T) {
	web := config.Task{Name: "web", Command: "sleep 30", Port: 3000}
	api := config.Task{Name: "api", Command: "sleep 30 # --port=4000"}
	h := newHarness(t, testOptions(), config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{web, api}})
	ctx := context.Background()

	_, err := h.c.Launch(ctx, "shop", "")
	require.NoError(t, err)
	handle, ok := h.sup.Handle("shop", "web")
	require.True(t, ok)

	h.platform.mu.Lock()
	h.platform.listeners[3000] = handle.PID
	h.platform.listeners[4000] = 999999
	h.platform.mu.Unlock()

	conflicts, err := h.c.CheckPorts(ctx, "shop", "")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, 4000, conflicts[0].Port)

	_, err = h.c.CheckPorts(ctx, "nope", "")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestUpdateProjects(t *testing.T) {
	h := newHarness(t, testOptions(), config.Project{ID: "shop", Name: "Shop", Tasks: []config.Task{sleeper("web")}})
	ctx := context.Background()

	_, err := h.c.Launch(ctx, "shop", "")
	require.NoError(t, err)

	h.c.UpdateProjects([]config.Project{{ID: "blog", Name: "Blog", Tasks: []config.Task{sleeper("web")}}})

	list := h.c.List()
	require.Len(t, list, 1)
	assert.Equal(t, "blog", list[0].ID)

	// The running project keeps going until stopped
	st, err := h.c.Status("shop")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, st.State)
	require.NoError(t, h.c.Stop(ctx, "shop"))
	_, err = h.c.Status("shop")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestKillProcess(t *testing.T) {
	h := newHarness(t, testOptions())
	assert.True(t, h.c.KillProcess(context.Background(), 31337))
	assert.Equal(t, []int{31337}, h.platform.killed)
}

func TestAllowRestartBudget(t *testing.T) {
	h := newHarness(t, Options{MaxAutoRestarts: 2, RestartWindow: time.Minute})
	now := time.Now()

	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	ok, n := h.c.allowRestartLocked("shop", "web", now)
	assert.True(t, ok)
	assert.Equal(t, 1, n)
	ok, _ = h.c.allowRestartLocked("shop", "web", now.Add(time.Second))
	assert.True(t, ok)
	ok, n = h.c.allowRestartLocked("shop", "web", now.Add(2*time.Second))
	assert.False(t, ok)
	assert.Equal(t, 2, n)

	ok, _ = h.c.allowRestartLocked("shop", "api", now)
	assert.True(t, ok, "budget is per task")

	ok, _ = h.c.allowRestartLocked("shop", "web", now.Add(2*time.Minute))
	assert.True(t, ok, "old restarts fall out of the window")

	h.c.clearRestartsLocked("shop")
	assert.Empty(t, h.c.restarts)
}

func TestOptionsFrom(t *testing.T) {
	opts := OptionsFrom(config.LaunchConfig{SettleDelay: "250ms", MaxAutoRestarts: 3})
	assert.Equal(t, 250*time.Millisecond, opts.SettleDelay)
	assert.Equal(t, 3*time.Second, opts.PerfDelay)
	assert.Equal(t, 5*time.Second, opts.HealthDelay)
	assert.Equal(t, 3, opts.MaxAutoRestarts)
	assert.Equal(t, 5*time.Minute, opts.RestartWindow)
}

func TestNewRequiresEngines(t *testing.T) {
	_, err := New(DefaultOptions(), nil, Deps{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "missing"))
}
