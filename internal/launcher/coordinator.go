// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package launcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/launchpad/internal/config"
	"github.com/wingedpig/launchpad/internal/envfile"
	"github.com/wingedpig/launchpad/internal/events"
	"github.com/wingedpig/launchpad/internal/health"
	"github.com/wingedpig/launchpad/internal/notify"
	"github.com/wingedpig/launchpad/internal/perf"
	"github.com/wingedpig/launchpad/internal/ports"
	"github.com/wingedpig/launchpad/internal/process"
	"github.com/wingedpig/launchpad/internal/tunnel"
)

// Deps are the engines the coordinator drives.
type Deps struct {
	Supervisor *process.Supervisor
	Ports      *ports.Resolver
	Health     *health.Engine
	Perf       *perf.Sampler
	Tunnels    *tunnel.ServiceMonitor
	Bus        events.EventBus
	Notifier   notify.Notifier
}

// run is one launch of a project, from launch until it stops.
type run struct {
	project     config.Project
	environment string
	state       State
	launchedAt  time.Time
	tasks       map[string]config.Task // Expanded definitions used for this run
	timers      []*time.Timer
	restarting  map[string]int
}

// Coordinator owns the lifecycle of every project.
type Coordinator struct {
	opts     Options
	sup      *process.Supervisor
	ports    *ports.Resolver
	health   *health.Engine
	perf     *perf.Sampler
	tunnels  *tunnel.ServiceMonitor
	bus      events.EventBus
	notifier notify.Notifier
	expander *config.TemplateExpander

	mu        sync.Mutex
	projects  []config.Project
	runs      map[string]*run
	conflicts map[string][]ports.Conflict
	restarts  map[string][]time.Time
	subs      []events.SubscriptionID
}

// New creates a coordinator for projects and subscribes it to the process
// and health signals it reacts to.
func New(opts Options, projects []config.Project, deps Deps) (*Coordinator, error) {
	if deps.Supervisor == nil || deps.Ports == nil || deps.Health == nil || deps.Perf == nil || deps.Tunnels == nil {
		return nil, errors.New("launcher: missing engine dependency")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	c := &Coordinator{
		opts:      opts,
		sup:       deps.Supervisor,
		ports:     deps.Ports,
		health:    deps.Health,
		perf:      deps.Perf,
		tunnels:   deps.Tunnels,
		bus:       deps.Bus,
		notifier:  notifier,
		expander:  config.NewTemplateExpander(),
		projects:  append([]config.Project(nil), projects...),
		runs:      make(map[string]*run),
		conflicts: make(map[string][]ports.Conflict),
		restarts:  make(map[string][]time.Time),
	}

	c.sup.OnTaskExit(c.taskExited)
	c.sup.OnProjectEmpty(c.projectEmpty)

	if c.bus != nil {
		id, err := c.bus.SubscribeAsync(events.EventHealthRestartRequired, c.onRestartRequired, 64)
		if err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", events.EventHealthRestartRequired, err)
		}
		c.subs = append(c.subs, id)
	}
	return c, nil
}

func (c *Coordinator) findProjectLocked(projectID string) (config.Project, bool) {
	for _, p := range c.projects {
		if p.ID == projectID {
			return p, true
		}
	}
	return config.Project{}, false
}

// expandTasks resolves templates for the tasks of project that run in
// environment. Tasks that fail to expand are reported and left out.
func (c *Coordinator) expandTasks(project config.Project, environment string) ([]config.Task, []TaskError) {
	var tasks []config.Task
	var errs []TaskError
	for _, t := range project.TasksFor(environment) {
		expanded, err := c.expander.ExpandTask(t, config.NewTemplateContext(&project, &t, environment))
		if err != nil {
			errs = append(errs, TaskError{Task: t.Name, Error: err.Error()})
			continue
		}
		tasks = append(tasks, expanded)
	}
	return tasks, errs
}

// Launch starts every task of projectID that runs in environment. If any
// candidate port is owned by another process nothing is spawned and the
// conflicts are returned for confirmation.
func (c *Coordinator) Launch(ctx context.Context, projectID, environment string) (*LaunchResult, error) {
	return c.launch(ctx, projectID, environment, nil, true)
}

// ConfirmLaunch kills the owners of conflicts, waits for the ports to
// settle and launches without checking ports again.
func (c *Coordinator) ConfirmLaunch(ctx context.Context, projectID, environment string, conflicts []ports.Conflict) (*LaunchResult, error) {
	return c.launch(ctx, projectID, environment, conflicts, false)
}

func (c *Coordinator) launch(ctx context.Context, projectID, environment string, kill []ports.Conflict, checkPorts bool) (*LaunchResult, error) {
	c.mu.Lock()
	project, ok := c.findProjectLocked(projectID)
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if r, ok := c.runs[projectID]; ok {
		state := r.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyRunning, projectID, state)
	}
	r := &run{
		project:     project,
		environment: environment,
		state:       StateLaunching,
		tasks:       make(map[string]config.Task),
		restarting:  make(map[string]int),
	}
	c.runs[projectID] = r
	delete(c.conflicts, projectID)
	c.mu.Unlock()

	result := &LaunchResult{Project: projectID, Environment: environment}
	abort := func() {
		c.mu.Lock()
		if c.runs[projectID] == r {
			delete(c.runs, projectID)
		}
		c.mu.Unlock()
	}

	tasks, expandErrs := c.expandTasks(project, environment)
	result.Errors = append(result.Errors, expandErrs...)

	if checkPorts {
		conflicts := c.ports.Conflicts(ctx, ports.CandidatesFor(tasks))
		if len(conflicts) > 0 {
			abort()
			c.mu.Lock()
			c.conflicts[projectID] = conflicts
			c.mu.Unlock()

			result.Conflicts = conflicts
			log.Printf("Launch of %s halted: %d port conflict(s)", projectID, len(conflicts))
			events.Emit(ctx, c.bus, events.EventProjectConflicts, projectID, map[string]interface{}{
				"project":     projectID,
				"environment": environment,
				"conflicts":   conflicts,
			})
			return result, nil
		}
	}

	if len(kill) > 0 {
		killed := make(map[int]bool)
		for _, conflict := range kill {
			if conflict.PID <= 0 || killed[conflict.PID] {
				continue
			}
			killed[conflict.PID] = true
			if !c.ports.KillByPID(ctx, conflict.PID) {
				log.Printf("Could not kill PID %d holding port %d", conflict.PID, conflict.Port)
			}
		}
		if err := sleepCtx(ctx, c.opts.SettleDelay); err != nil {
			abort()
			return nil, err
		}
	}

	c.sup.ClearStopping(projectID)
	events.Emit(ctx, c.bus, events.EventProjectLaunching, projectID, map[string]interface{}{
		"project":     projectID,
		"environment": environment,
	})

	var external []ports.ExternalTask
	var externalNames []string
	for _, t := range tasks {
		if t.IsExternal() {
			env, err := envfile.Environ(t.EnvFile, t.EnvFor(environment))
			if err != nil {
				result.Errors = append(result.Errors, TaskError{Task: t.Name, Error: err.Error()})
				continue
			}
			external = append(external, ports.ExternalTask{
				Title:   project.Name + ": " + t.Name,
				Command: t.Command,
				WorkDir: t.WorkDir,
				Env:     env,
			})
			externalNames = append(externalNames, t.Name)
			r.tasks[t.Name] = t
			continue
		}
		if err := c.spawnTask(ctx, projectID, t, environment); err != nil {
			result.Errors = append(result.Errors, TaskError{Task: t.Name, Error: err.Error()})
			continue
		}
		r.tasks[t.Name] = t
		result.Started = append(result.Started, t.Name)
	}

	if len(external) > 0 {
		if err := c.ports.LaunchExternal(ctx, external); err != nil {
			for _, name := range externalNames {
				delete(r.tasks, name)
				result.Errors = append(result.Errors, TaskError{Task: name, Error: err.Error()})
			}
		} else {
			result.External = externalNames
		}
	}

	result.Success = len(result.Errors) == 0 && (len(result.Started) > 0 || len(result.External) > 0)

	c.mu.Lock()
	alive := len(c.sup.Handles(projectID)) > 0
	if c.runs[projectID] == r {
		if alive || len(result.External) > 0 {
			r.state = StateRunning
			r.launchedAt = time.Now()
			c.scheduleMonitorsLocked(projectID, r)
		} else {
			delete(c.runs, projectID)
		}
	}
	c.mu.Unlock()

	if len(result.Errors) > 0 {
		log.Printf("Project %s launched with %d error(s)", projectID, len(result.Errors))
		c.notifier.Notify(ctx, notify.Notification{
			Project: projectID,
			Title:   fmt.Sprintf("%s: launch incomplete", project.Name),
			Body:    fmt.Sprintf("%d task(s) failed to start", len(result.Errors)),
			Level:   notify.LevelWarning,
		})
	} else {
		log.Printf("Project %s launched (%s)", projectID, environmentLabel(environment))
	}
	events.Emit(ctx, c.bus, events.EventProjectLaunched, projectID, map[string]interface{}{
		"project":     projectID,
		"environment": environment,
		"success":     result.Success,
		"started":     result.Started,
		"external":    result.External,
		"errors":      result.Errors,
	})
	return result, nil
}

func environmentLabel(env string) string {
	if env == "" {
		return "default environment"
	}
	return env
}

// spawnTask starts an internal task with its resolved environment.
func (c *Coordinator) spawnTask(ctx context.Context, projectID string, t config.Task, environment string) error {
	env, err := envfile.Environ(t.EnvFile, t.EnvFor(environment))
	if err != nil {
		return err
	}
	_, err = c.sup.Spawn(ctx, process.Spec{
		ProjectID: projectID,
		TaskName:  t.Name,
		Command:   t.Command,
		WorkDir:   t.WorkDir,
		Env:       env,
		PTY:       t.PTY,
	})
	return err
}

// scheduleMonitorsLocked starts tunnel polls now and perf and health
// monitors after their delays, giving services time to bind their ports.
func (c *Coordinator) scheduleMonitorsLocked(projectID string, r *run) {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t := r.tasks[name]
		if t.MonitoringEnabled() {
			c.tunnels.StartMonitoring(projectID, r.project.Name, t, r.environment)
		}
	}

	c.afterLocked(projectID, r, c.opts.PerfDelay, func() {
		c.startPerfLocked(projectID, r)
	})

	for _, name := range names {
		t := r.tasks[name]
		if t.IsExternal() || !t.HealthEnabled() {
			continue
		}
		c.scheduleHealthLocked(projectID, r, t)
	}
}

func (c *Coordinator) startPerfLocked(projectID string, r *run) {
	if c.perf.Active(projectID) {
		return
	}
	c.perf.Start(projectID, r.project.Name, func() []int {
		return c.sup.PIDs(projectID)
	})
}

// scheduleHealthLocked starts t's health monitor after the health delay if
// the task is still running then.
func (c *Coordinator) scheduleHealthLocked(projectID string, r *run, t config.Task) {
	target, ok := health.TargetFor(t)
	if !ok {
		return
	}
	c.afterLocked(projectID, r, c.opts.HealthDelay, func() {
		if r.restarting[t.Name] > 0 || !c.sup.Running(projectID, t.Name) {
			return
		}
		c.health.Start(projectID, r.project.Name, target)
	})
}

// afterLocked runs fn after d with c.mu held, as long as r is still the
// running launch of projectID.
func (c *Coordinator) afterLocked(projectID string, r *run, d time.Duration, fn func()) {
	timer := time.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.runs[projectID] != r || r.state != StateRunning {
			return
		}
		fn()
	})
	r.timers = append(r.timers, timer)
}

func (r *run) cancelTimers() {
	for _, t := range r.timers {
		t.Stop()
	}
	r.timers = nil
}

// stopMonitors tears down every monitor of projectID.
func (c *Coordinator) stopMonitors(projectID string) {
	c.health.StopProject(projectID)
	c.perf.Stop(projectID)
	c.tunnels.StopProjectMonitors(projectID)
}

// Stop terminates every task of projectID and its monitors. Stopping a
// project that is not running only clears leftover monitors.
func (c *Coordinator) Stop(ctx context.Context, projectID string) error {
	c.mu.Lock()
	if _, ok := c.findProjectLocked(projectID); !ok && c.runs[projectID] == nil && len(c.sup.Handles(projectID)) == 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	r := c.runs[projectID]
	if r != nil {
		if r.state == StateStopping {
			c.mu.Unlock()
			return nil
		}
		r.state = StateStopping
		r.cancelTimers()
	}
	delete(c.conflicts, projectID)
	c.mu.Unlock()

	c.sup.MarkStopping(projectID)
	events.Emit(ctx, c.bus, events.EventProjectStopping, projectID, map[string]interface{}{
		"project": projectID,
	})

	total := len(c.sup.Handles(projectID))
	terminated := c.sup.TerminateProject(projectID)
	c.stopMonitors(projectID)

	c.mu.Lock()
	if r != nil && c.runs[projectID] == r {
		delete(c.runs, projectID)
	}
	c.clearRestartsLocked(projectID)
	c.mu.Unlock()

	grace := c.opts.StopGrace
	time.AfterFunc(grace, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// A relaunch inside the grace period owns the flag now
		if _, running := c.runs[projectID]; !running {
			c.sup.ClearStopping(projectID)
		}
	})

	log.Printf("Project %s stopped (%d/%d processes terminated)", projectID, terminated, total)
	events.Emit(ctx, c.bus, events.EventProjectStopped, projectID, map[string]interface{}{
		"project":    projectID,
		"reason":     "stopped",
		"terminated": terminated,
	})

	if terminated < total {
		return fmt.Errorf("stop %s: %d of %d processes did not exit", projectID, total-terminated, total)
	}
	return nil
}

// projectEmpty runs when the last process of a project exits. A project
// whose tasks all exited on their own is marked stopped.
func (c *Coordinator) projectEmpty(projectID string) {
	c.mu.Lock()
	r := c.runs[projectID]
	if r == nil || r.state != StateRunning || len(r.restarting) > 0 || hasExternal(r) {
		c.mu.Unlock()
		return
	}
	r.cancelTimers()
	delete(c.runs, projectID)
	c.clearRestartsLocked(projectID)
	c.mu.Unlock()

	c.stopMonitors(projectID)

	log.Printf("Project %s stopped: all tasks exited", projectID)
	events.Emit(context.Background(), c.bus, events.EventProjectStopped, projectID, map[string]interface{}{
		"project": projectID,
		"reason":  "exited",
	})
}

// taskExited drops the health monitor of a task whose process is gone, so
// a dead task is not probed, reported unhealthy or restarted behind the
// user's back. Exits caused by a restart keep the monitor wiring to the
// restart itself.
func (c *Coordinator) taskExited(projectID, taskName string) {
	c.mu.Lock()
	r := c.runs[projectID]
	restarting := r != nil && r.restarting[taskName] > 0
	c.mu.Unlock()
	if restarting || c.sup.Running(projectID, taskName) {
		return
	}
	c.health.Stop(projectID, taskName)
}

// hasExternal reports whether r launched external tasks, which keep the
// project running without any supervised process.
func hasExternal(r *run) bool {
	for _, t := range r.tasks {
		if t.IsExternal() {
			return true
		}
	}
	return false
}

// resolveTask returns the definition of task to (re)spawn: the one used by
// the current run, else a fresh expansion from the project config.
func (c *Coordinator) resolveTaskLocked(project config.Project, r *run, taskName string) (config.Task, error) {
	if r != nil {
		if t, ok := r.tasks[taskName]; ok {
			return t, nil
		}
	}
	t, ok := project.Task(taskName)
	if !ok {
		return config.Task{}, fmt.Errorf("%w: %s/%s", ErrTaskNotFound, project.ID, taskName)
	}
	environment := ""
	if r != nil {
		environment = r.environment
	}
	return c.expander.ExpandTask(*t, config.NewTemplateContext(&project, t, environment))
}

// StartTask starts a single internal task. If the project is not running it
// becomes running with just this task.
func (c *Coordinator) StartTask(ctx context.Context, projectID, taskName string) error {
	c.mu.Lock()
	project, ok := c.findProjectLocked(projectID)
	r := c.runs[projectID]
	if !ok && r != nil {
		project = r.project
		ok = true
	}
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if r != nil && r.state != StateRunning {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrAlreadyRunning, projectID, r.state)
	}
	t, err := c.resolveTaskLocked(project, r, taskName)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if t.IsExternal() {
		c.mu.Unlock()
		return fmt.Errorf("task %s runs in an external terminal", taskName)
	}
	fresh := r == nil
	if fresh {
		r = &run{
			project:    project,
			state:      StateLaunching,
			tasks:      make(map[string]config.Task),
			restarting: make(map[string]int),
		}
		c.runs[projectID] = r
	}
	environment := r.environment
	c.mu.Unlock()

	if fresh {
		c.sup.ClearStopping(projectID)
	}
	if err := c.spawnTask(ctx, projectID, t, environment); err != nil {
		if fresh {
			c.mu.Lock()
			if c.runs[projectID] == r {
				delete(c.runs, projectID)
			}
			c.mu.Unlock()
		}
		return err
	}

	c.mu.Lock()
	if c.runs[projectID] == r {
		r.tasks[t.Name] = t
		if fresh {
			r.state = StateRunning
			r.launchedAt = time.Now()
		}
		if r.state == StateRunning {
			if t.MonitoringEnabled() {
				c.tunnels.StartMonitoring(projectID, project.Name, t, environment)
			}
			c.afterLocked(projectID, r, c.opts.PerfDelay, func() {
				c.startPerfLocked(projectID, r)
			})
			if t.HealthEnabled() {
				c.scheduleHealthLocked(projectID, r, t)
			}
		}
	}
	c.mu.Unlock()
	return nil
}

// StopTask terminates a single task and its health monitor. Stopping the
// last running task stops the project.
func (c *Coordinator) StopTask(ctx context.Context, projectID, taskName string) error {
	h, ok := c.sup.Handle(projectID, taskName)
	c.health.Stop(projectID, taskName)
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotRunning, projectID, taskName)
	}
	if !c.sup.Terminate(h) {
		return fmt.Errorf("stop %s/%s: process %d did not exit", projectID, taskName, h.PID)
	}
	return nil
}

// RestartTask terminates a task, waits for the settle delay and spawns it
// again with its health monitor rewired.
func (c *Coordinator) RestartTask(ctx context.Context, projectID, taskName string) error {
	return c.restartTask(ctx, projectID, taskName, TriggerManual)
}

func (c *Coordinator) restartTask(ctx context.Context, projectID, taskName, trigger string) error {
	c.mu.Lock()
	r := c.runs[projectID]
	if r == nil || r.state != StateRunning {
		c.mu.Unlock()
		if _, ok := c.findProject(projectID); !ok {
			return fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}
		return fmt.Errorf("%w: %s", ErrNotRunning, projectID)
	}
	t, err := c.resolveTaskLocked(r.project, r, taskName)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if t.IsExternal() {
		c.mu.Unlock()
		return fmt.Errorf("task %s runs in an external terminal", taskName)
	}
	r.restarting[taskName]++
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		r.restarting[taskName]--
		if r.restarting[taskName] <= 0 {
			delete(r.restarting, taskName)
		}
		c.mu.Unlock()
		// The restart may have left the project without processes
		if len(c.sup.Handles(projectID)) == 0 {
			c.projectEmpty(projectID)
		}
	}()

	log.Printf("Restarting %s/%s (%s)", projectID, taskName, trigger)
	c.health.Stop(projectID, taskName)
	if h, ok := c.sup.Handle(projectID, taskName); ok {
		if !c.sup.Terminate(h) {
			return fmt.Errorf("restart %s/%s: process %d did not exit", projectID, taskName, h.PID)
		}
	}

	if err := sleepCtx(ctx, c.opts.SettleDelay); err != nil {
		return err
	}

	c.mu.Lock()
	stillRunning := c.runs[projectID] == r && r.state == StateRunning
	environment := r.environment
	c.mu.Unlock()
	if !stillRunning {
		return fmt.Errorf("%w: %s stopped during restart", ErrNotRunning, projectID)
	}

	if err := c.spawnTask(ctx, projectID, t, environment); err != nil {
		return fmt.Errorf("restart %s/%s: %w", projectID, taskName, err)
	}

	pid := 0
	if h, ok := c.sup.Handle(projectID, taskName); ok {
		pid = h.PID
	}

	c.mu.Lock()
	if c.runs[projectID] == r && r.state == StateRunning {
		r.tasks[t.Name] = t
		if t.HealthEnabled() {
			c.scheduleHealthLocked(projectID, r, t)
		}
		// Restart sampling so uptime and CPU deltas start over with the new PIDs
		c.perf.Stop(projectID)
		c.afterLocked(projectID, r, c.opts.PerfDelay, func() {
			c.startPerfLocked(projectID, r)
		})
	}
	c.mu.Unlock()

	events.Emit(ctx, c.bus, events.EventTaskRestarted, projectID, map[string]interface{}{
		"project": projectID,
		"task":    taskName,
		"pid":     pid,
		"trigger": trigger,
	})
	return nil
}

func (c *Coordinator) findProject(projectID string) (config.Project, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findProjectLocked(projectID)
}

// KillProcess forcefully terminates an arbitrary process.
func (c *Coordinator) KillProcess(ctx context.Context, pid int) bool {
	return c.ports.KillByPID(ctx, pid)
}

// CheckPorts returns the candidate ports of projectID in environment that
// are owned by processes outside the project.
func (c *Coordinator) CheckPorts(ctx context.Context, projectID, environment string) ([]ports.Conflict, error) {
	project, ok := c.findProject(projectID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	tasks, _ := c.expandTasks(project, environment)
	own := make(map[int]bool)
	for _, pid := range c.sup.PIDs(projectID) {
		own[pid] = true
	}
	var out []ports.Conflict
	for _, conflict := range c.ports.Conflicts(ctx, ports.CandidatesFor(tasks)) {
		if !own[conflict.PID] {
			out = append(out, conflict)
		}
	}
	return out, nil
}

// Output returns the last n captured output lines of a task.
func (c *Coordinator) Output(projectID, taskName string, n int) ([]process.OutputLine, error) {
	project, ok := c.findProject(projectID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if _, ok := project.Task(taskName); !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrTaskNotFound, projectID, taskName)
	}
	return c.sup.Output(projectID, taskName, n), nil
}

// Projects returns the configured projects.
func (c *Coordinator) Projects() []config.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]config.Project(nil), c.projects...)
}

// UpdateProjects replaces the project definitions. Running projects keep the
// definitions they were launched with until their next launch.
func (c *Coordinator) UpdateProjects(projects []config.Project) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects = append([]config.Project(nil), projects...)
	for id := range c.conflicts {
		if _, ok := c.findProjectLocked(id); !ok {
			delete(c.conflicts, id)
		}
	}
}

// Status returns the runtime view of projectID.
func (c *Coordinator) Status(projectID string) (*ProjectStatus, error) {
	c.mu.Lock()
	project, ok := c.findProjectLocked(projectID)
	r := c.runs[projectID]
	if !ok && r != nil {
		project = r.project
		ok = true
	}
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	st := &ProjectStatus{
		ID:        project.ID,
		Name:      project.Name,
		State:     StateStopped,
		Conflicts: append([]ports.Conflict(nil), c.conflicts[projectID]...),
	}
	var launched map[string]config.Task
	if r != nil {
		st.State = r.state
		st.Environment = r.environment
		if !r.launchedAt.IsZero() {
			at := r.launchedAt
			st.LaunchedAt = &at
		}
		launched = make(map[string]config.Task, len(r.tasks))
		for k, v := range r.tasks {
			launched[k] = v
		}
	}
	c.mu.Unlock()

	healthByTask := make(map[string]health.Status)
	for _, hs := range c.health.Statuses(projectID) {
		healthByTask[hs.Task] = hs.Status
	}

	for _, def := range project.Tasks {
		t := def
		if lt, ok := launched[def.Name]; ok {
			t = lt
		}
		ts := TaskStatus{
			Name:   t.Name,
			Mode:   t.Mode,
			Health: healthByTask[t.Name],
		}
		if t.Port > 0 {
			ts.Ports = []int{t.Port}
		} else {
			ts.Ports = ports.ExtractPorts(t.Command)
		}
		if h, ok := c.sup.Handle(projectID, t.Name); ok {
			ts.Running = true
			ts.PID = h.PID
			started := h.StartedAt
			ts.StartedAt = &started
		} else if t.IsExternal() {
			_, ts.Running = launched[t.Name]
		}
		st.Tasks = append(st.Tasks, ts)
	}

	st.Performance = c.perf.Active(projectID)
	st.Tunnels = c.tunnels.Captures(projectID)
	return st, nil
}

// List returns the status of every configured project.
func (c *Coordinator) List() []ProjectStatus {
	var out []ProjectStatus
	for _, p := range c.Projects() {
		if st, err := c.Status(p.ID); err == nil {
			out = append(out, *st)
		}
	}
	return out
}

// Running returns the IDs of projects that are launching or running.
func (c *Coordinator) Running() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.runs))
	for id := range c.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops every running project in parallel and unsubscribes from the
// bus.
func (c *Coordinator) Close(ctx context.Context) error {
	if c.bus != nil {
		for _, id := range c.subs {
			c.bus.Unsubscribe(id)
		}
	}

	ids := c.Running()
	for _, id := range c.sup.Projects() {
		if !contains(ids, id) {
			ids = append(ids, id)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			return c.Stop(gctx, id)
		})
	}
	return g.Wait()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
