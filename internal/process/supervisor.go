// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package process spawns task commands, streams their output onto the event
// bus, and keeps track of which tasks of each project are alive.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wingedpig/launchpad/internal/events"
	"github.com/wingedpig/launchpad/internal/notify"
)

// Errors returned by Spawn.
var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrAlreadyRunning = errors.New("task already running")
)

const (
	maxLineLen      = 1024 * 1024
	readerDrainWait = 2 * time.Second
	terminateWait   = 5 * time.Second
)

// Spec describes a process to spawn.
type Spec struct {
	ProjectID string
	TaskName  string
	Command   string
	WorkDir   string
	Env       []string // Full environment; nil inherits this process's
	PTY       bool
}

// Handle ties a spawned OS process to a (project, task) pair.
type Handle struct {
	ID        string
	ProjectID string
	TaskName  string
	Command   string
	PID       int
	StartedAt time.Time
	PTY       bool

	mu         sync.RWMutex
	alive      bool
	exitCode   *int
	terminated bool
	done       chan struct{}
	cmd        *exec.Cmd
	output     *OutputBuffer
}

// HandleInfo is a JSON-friendly snapshot of a Handle.
type HandleInfo struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project"`
	TaskName  string    `json:"task"`
	Command   string    `json:"command"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"startedAt"`
	Alive     bool      `json:"alive"`
	ExitCode  *int      `json:"exitCode"`
	PTY       bool      `json:"pty,omitempty"`
}

// Alive reports whether the process has not yet exited.
func (h *Handle) Alive() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.alive
}

// ExitCode returns the exit code, or nil while running or after a
// signal-induced exit.
func (h *Handle) ExitCode() *int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.exitCode
}

// Done is closed once the process has exited, its output is drained and
// its exit events are published.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Info returns a snapshot of the handle.
func (h *Handle) Info() HandleInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HandleInfo{
		ID:        h.ID,
		ProjectID: h.ProjectID,
		TaskName:  h.TaskName,
		Command:   h.Command,
		PID:       h.PID,
		StartedAt: h.StartedAt,
		Alive:     h.alive,
		ExitCode:  h.exitCode,
		PTY:       h.PTY,
	}
}

func (h *Handle) markTerminated() {
	h.mu.Lock()
	h.terminated = true
	h.mu.Unlock()
}

// Supervisor spawns and tracks task processes. At most one live handle
// exists per (project, task).
type Supervisor struct {
	bus      events.EventBus
	notifier notify.Notifier
	analyzer *CrashAnalyzer

	mu       sync.Mutex
	handles  map[string][]*Handle
	outputs  map[string]*OutputBuffer
	stopping map[string]bool
	onEmpty  []func(projectID string)
	onExit   []func(projectID, task string)
	wg       sync.WaitGroup
}

// NewSupervisor creates a supervisor publishing on bus. notifier may be nil.
func NewSupervisor(bus events.EventBus, notifier notify.Notifier) *Supervisor {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Supervisor{
		bus:      bus,
		notifier: notifier,
		analyzer: NewCrashAnalyzer(),
		handles:  make(map[string][]*Handle),
		outputs:  make(map[string]*OutputBuffer),
		stopping: make(map[string]bool),
	}
}

// OnProjectEmpty registers fn to run when the last live handle of a project
// exits. fn runs on the exiting handle's goroutine.
func (s *Supervisor) OnProjectEmpty(fn func(projectID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEmpty = append(s.onEmpty, fn)
}

// OnTaskExit registers fn to run whenever a handle exits, after its
// process.closed event and before any OnProjectEmpty hooks. fn runs on the
// exiting handle's goroutine.
func (s *Supervisor) OnTaskExit(fn func(projectID, task string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExit = append(s.onExit, fn)
}

func taskKey(projectID, task string) string {
	return projectID + "/" + task
}

// Spawn starts spec's command. On failure no handle is returned and a
// process.error event is published.
func (s *Supervisor) Spawn(ctx context.Context, spec Spec) (*Handle, error) {
	h, err := s.spawn(spec)
	if err != nil {
		log.Printf("Task %s/%s failed to start: %v", spec.ProjectID, spec.TaskName, err)
		events.Emit(ctx, s.bus, events.EventProcessError, spec.ProjectID, map[string]interface{}{
			"project": spec.ProjectID,
			"task":    spec.TaskName,
			"error":   err.Error(),
		})
		return nil, err
	}
	log.Printf("Task %s/%s started (PID %d)", spec.ProjectID, spec.TaskName, h.PID)
	return h, nil
}

func (s *Supervisor) spawn(spec Spec) (*Handle, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, ErrEmptyCommand
	}
	if spec.WorkDir != "" {
		info, err := os.Stat(spec.WorkDir)
		if err != nil {
			return nil, fmt.Errorf("work dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("work dir %s is not a directory", spec.WorkDir)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.handles[spec.ProjectID] {
		if existing.TaskName == spec.TaskName && existing.Alive() {
			return nil, ErrAlreadyRunning
		}
	}

	name, args := shellCommand(spec.Command)
	cmd := exec.Command(name, args...)
	cmd.Dir = spec.WorkDir
	cmd.Env = spec.Env

	key := taskKey(spec.ProjectID, spec.TaskName)
	output := s.outputs[key]
	if output == nil {
		output = NewOutputBuffer(defaultOutputLines)
		s.outputs[key] = output
	}

	var readers []streamReader
	if spec.PTY && ptySupported {
		ptmx, err := startPTY(cmd)
		if err != nil {
			return nil, fmt.Errorf("start pty: %w", err)
		}
		readers = append(readers, streamReader{stream: events.StreamStdout, r: ptmx})
	} else {
		cmd.SysProcAttr = sysProcAttr()
		stdoutR, stdoutW, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		stderrR, stderrW, err := os.Pipe()
		if err != nil {
			stdoutR.Close()
			stdoutW.Close()
			return nil, fmt.Errorf("stderr pipe: %w", err)
		}
		cmd.Stdout = stdoutW
		cmd.Stderr = stderrW
		if err := cmd.Start(); err != nil {
			stdoutR.Close()
			stdoutW.Close()
			stderrR.Close()
			stderrW.Close()
			return nil, fmt.Errorf("start process: %w", err)
		}
		// The child holds its own copies; readers see EOF once every
		// descendant has closed them.
		stdoutW.Close()
		stderrW.Close()
		readers = append(readers,
			streamReader{stream: events.StreamStdout, r: stdoutR},
			streamReader{stream: events.StreamStderr, r: stderrR},
		)
	}

	h := &Handle{
		ID:        uuid.NewString(),
		ProjectID: spec.ProjectID,
		TaskName:  spec.TaskName,
		Command:   spec.Command,
		PID:       cmd.Process.Pid,
		StartedAt: time.Now(),
		PTY:       spec.PTY,
		alive:     true,
		done:      make(chan struct{}),
		cmd:       cmd,
		output:    output,
	}
	s.handles[spec.ProjectID] = append(s.handles[spec.ProjectID], h)

	var readersDone sync.WaitGroup
	for _, sr := range readers {
		readersDone.Add(1)
		go func(sr streamReader) {
			defer readersDone.Done()
			s.captureOutput(h, sr.stream, sr.r)
		}(sr)
	}

	s.wg.Add(1)
	go s.waitForExit(h, readers, &readersDone)

	return h, nil
}

type streamReader struct {
	stream string
	r      io.ReadCloser
}

// captureOutput publishes each line of r in order. A single goroutine per
// stream keeps per-stream ordering.
func (s *Supervisor) captureOutput(h *Handle, stream string, r io.Reader) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if len(line) > maxLineLen {
				line = line[:maxLineLen] + "... [truncated]"
			}
			entry := h.output.Write(stream, line)
			events.Emit(context.Background(), s.bus, events.EventProcessOutput, h.ProjectID, map[string]interface{}{
				"project": h.ProjectID,
				"task":    h.TaskName,
				"pid":     h.PID,
				"stream":  stream,
				"data":    line,
				"seq":     entry.Sequence,
			})
		}
		if err != nil {
			// EIO from a pty master after the child exits is a normal end.
			return
		}
	}
}

func (s *Supervisor) waitForExit(h *Handle, readers []streamReader, readersDone *sync.WaitGroup) {
	defer s.wg.Done()

	err := h.cmd.Wait()
	exitCode := classifyExit(err)

	// Give readers a moment to drain, then force them closed so a
	// backgrounded grandchild holding the pipe cannot stall the close event.
	drained := make(chan struct{})
	go func() {
		readersDone.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(readerDrainWait):
	}
	for _, sr := range readers {
		sr.r.Close()
	}

	h.mu.Lock()
	h.alive = false
	h.exitCode = exitCode
	terminated := h.terminated
	h.mu.Unlock()

	s.mu.Lock()
	list := s.handles[h.ProjectID]
	for i, candidate := range list {
		if candidate == h {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	empty := len(list) == 0
	if empty {
		delete(s.handles, h.ProjectID)
	} else {
		s.handles[h.ProjectID] = list
	}
	stopping := s.stopping[h.ProjectID]
	hooks := append([]func(string){}, s.onEmpty...)
	exitHooks := append([]func(string, string){}, s.onExit...)
	s.mu.Unlock()

	if exitCode != nil {
		log.Printf("Task %s/%s exited with code %d", h.ProjectID, h.TaskName, *exitCode)
	} else {
		log.Printf("Task %s/%s terminated by signal", h.ProjectID, h.TaskName)
	}

	ctx := context.Background()
	var code interface{}
	if exitCode != nil {
		code = *exitCode
	}
	events.Emit(ctx, s.bus, events.EventProcessClosed, h.ProjectID, map[string]interface{}{
		"project":  h.ProjectID,
		"task":     h.TaskName,
		"pid":      h.PID,
		"exitCode": code,
	})

	if exitCode != nil && *exitCode != 0 && !stopping && !terminated {
		crash := s.analyzer.Analyze(h.output.Text(50), *exitCode)
		events.Emit(ctx, s.bus, events.EventProcessCrashed, h.ProjectID, map[string]interface{}{
			"project":  h.ProjectID,
			"task":     h.TaskName,
			"pid":      h.PID,
			"exitCode": *exitCode,
			"reason":   string(crash.Reason),
			"details":  crash.Details,
		})
		s.notifier.Notify(ctx, notify.Notification{
			Project: h.ProjectID,
			Title:   fmt.Sprintf("%s crashed", h.TaskName),
			Body:    fmt.Sprintf("Exited with code %d (%s)", *exitCode, crash.Summary()),
			Level:   notify.LevelCritical,
		})
	}

	for _, fn := range exitHooks {
		fn(h.ProjectID, h.TaskName)
	}
	if empty {
		for _, fn := range hooks {
			fn(h.ProjectID)
		}
	}

	close(h.done)
}

// classifyExit returns the exit code, or nil when the process was killed by
// a signal or its status is unknown.
func classifyExit(err error) *int {
	if err == nil {
		code := 0
		return &code
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			return nil
		}
		return &code
	}
	return nil
}

// Terminate forcefully kills h and its descendants and waits briefly for it
// to exit. Terminating a dead handle is a no-op that reports success.
func (s *Supervisor) Terminate(h *Handle) bool {
	if h == nil {
		return true
	}
	if !h.Alive() {
		return true
	}
	h.markTerminated()
	if err := killTree(h.PID); err != nil {
		log.Printf("Task %s/%s: kill PID %d failed: %v", h.ProjectID, h.TaskName, h.PID, err)
		if h.cmd != nil && h.cmd.Process != nil {
			if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				return false
			}
		}
	}
	select {
	case <-h.done:
		return true
	case <-time.After(terminateWait):
		log.Printf("Task %s/%s: PID %d did not exit after kill", h.ProjectID, h.TaskName, h.PID)
		return false
	}
}

// TerminateProject terminates every live handle of projectID in parallel and
// returns how many were terminated successfully.
func (s *Supervisor) TerminateProject(projectID string) int {
	handles := s.Handles(projectID)
	results := make([]bool, len(handles))
	var wg sync.WaitGroup
	for i, h := range handles {
		wg.Add(1)
		go func(i int, h *Handle) {
			defer wg.Done()
			results[i] = s.Terminate(h)
		}(i, h)
	}
	wg.Wait()

	n := 0
	for _, ok := range results {
		if ok {
			n++
		}
	}
	return n
}

// MarkStopping flags projectID as intentionally stopping. Crash
// notifications are suppressed while the flag is set.
func (s *Supervisor) MarkStopping(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopping[projectID] = true
}

// ClearStopping removes the stopping flag.
func (s *Supervisor) ClearStopping(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stopping, projectID)
}

// IsStopping reports whether projectID is flagged as stopping.
func (s *Supervisor) IsStopping(projectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping[projectID]
}

// Handles returns the live handles of projectID.
func (s *Supervisor) Handles(projectID string) []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Handle(nil), s.handles[projectID]...)
}

// Handle returns the live handle of a task.
func (s *Supervisor) Handle(projectID, task string) (*Handle, bool) {
	for _, h := range s.Handles(projectID) {
		if h.TaskName == task && h.Alive() {
			return h, true
		}
	}
	return nil, false
}

// Running reports whether task has a live handle.
func (s *Supervisor) Running(projectID, task string) bool {
	_, ok := s.Handle(projectID, task)
	return ok
}

// PIDs returns the PIDs of projectID's live handles in ascending order.
func (s *Supervisor) PIDs(projectID string) []int {
	var pids []int
	for _, h := range s.Handles(projectID) {
		if h.Alive() {
			pids = append(pids, h.PID)
		}
	}
	sort.Ints(pids)
	return pids
}

// Projects returns the IDs of projects with live handles.
func (s *Supervisor) Projects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.handles))
	for id := range s.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Output returns the last n output lines of a task, including lines from
// previous runs.
func (s *Supervisor) Output(projectID, task string, n int) []OutputLine {
	s.mu.Lock()
	buf := s.outputs[taskKey(projectID, task)]
	s.mu.Unlock()
	if buf == nil {
		return []OutputLine{}
	}
	return buf.Lines(n)
}

// Shutdown terminates every live process and waits for exit handling to
// finish.
func (s *Supervisor) Shutdown() {
	for _, id := range s.Projects() {
		s.MarkStopping(id)
		s.TerminateProject(id)
	}
	s.wg.Wait()
}
