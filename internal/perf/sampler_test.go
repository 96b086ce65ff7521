// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package perf

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/launchpad/internal/config"
	"github.com/wingedpig/launchpad/internal/events"
	"github.com/wingedpig/launchpad/internal/notify"
)

type fakeInspector struct {
	mu     sync.Mutex
	cpu    float64
	memory uint64
}

func (f *fakeInspector) set(cpu float64, memory uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cpu, f.memory = cpu, memory
}

func (f *fakeInspector) Inspect(ctx context.Context, pids []int) []ProcessSample {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ProcessSample
	for _, pid := range pids {
		out = append(out, ProcessSample{PID: pid, CPU: f.cpu, Memory: f.memory, Elapsed: 1})
	}
	return out
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

func newBus(t *testing.T) *events.MemoryEventBus {
	t.Helper()
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{HistoryMaxEvents: 1000, HistoryMaxAge: time.Hour})
	t.Cleanup(func() { bus.Close() })
	return bus
}

func countEvents(t *testing.T, bus events.EventBus, eventType string) int {
	t.Helper()
	history, err := bus.History(events.EventFilter{Types: []string{eventType}})
	require.NoError(t, err)
	return len(history)
}

// manualMonitor registers a monitor with an interval long enough that only
// explicit sample calls run.
func manualMonitor(t *testing.T, s *Sampler, projectID string, pids []int) *monitor {
	t.Helper()
	s.Start(projectID, "Shop", func() []int { return pids })
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitors[projectID]
}

func TestSampler_HistoryIsBoundedFIFO(t *testing.T) {
	opts := DefaultOptions()
	opts.Interval = time.Hour
	insp := &fakeInspector{}
	s := NewSampler(opts, insp, nil, nil, nil)
	defer s.Close()

	m := manualMonitor(t, s, "shop", []int{100})
	for i := 0; i < 75; i++ {
		insp.set(float64(i), 1)
		s.sample(m)
	}

	history := s.History("shop")
	require.Len(t, history, 60)
	assert.Equal(t, float64(15), history[0].CPU, "oldest samples evicted first")
	assert.Equal(t, float64(74), history[59].CPU)
}

func TestSampler_AggregatesProcesses(t *testing.T) {
	opts := DefaultOptions()
	opts.Interval = time.Hour
	insp := &fakeInspector{}
	insp.set(10, 100*bytesPerMB)
	bus := newBus(t)
	s := NewSampler(opts, insp, nil, bus, nil)
	defer s.Close()

	m := manualMonitor(t, s, "shop", []int{1, 2, 3})
	s.sample(m)

	history := s.History("shop")
	require.Len(t, history, 1)
	assert.Equal(t, float64(30), history[0].CPU)
	assert.Equal(t, uint64(300*bytesPerMB), history[0].Memory)
	assert.Len(t, history[0].Processes, 3)
	assert.Equal(t, "shop", history[0].ProjectID)
	assert.Equal(t, 1, countEvents(t, bus, events.EventPerfSample))
	assert.Equal(t, 0, countEvents(t, bus, events.EventPerfAlert))
}

func TestSampler_SkipsWhenNothingToInspect(t *testing.T) {
	opts := DefaultOptions()
	opts.Interval = time.Hour
	s := NewSampler(opts, &fakeInspector{}, nil, nil, nil)
	defer s.Close()

	m := manualMonitor(t, s, "shop", nil)
	s.sample(m)
	assert.Empty(t, s.History("shop"))
}

func TestSampler_AlertCooldown(t *testing.T) {
	opts := DefaultOptions()
	opts.Interval = time.Hour
	insp := &fakeInspector{}
	insp.set(99, 1)
	bus := newBus(t)
	notifier := &recordingNotifier{}
	s := NewSampler(opts, insp, nil, bus, notifier)
	defer s.Close()

	m := manualMonitor(t, s, "shop", []int{1})
	s.sample(m)
	s.sample(m)

	assert.Equal(t, 2, countEvents(t, bus, events.EventPerfAlert), "every crossing is pushed")
	assert.Equal(t, 1, notifier.count(), "second critical within cooldown is suppressed")
	assert.Equal(t, notify.LevelCritical, notifier.notes[0].Level)

	// A different level for the same type has its own cooldown
	insp.set(85, 1)
	s.sample(m)
	assert.Equal(t, 2, notifier.count())
	assert.Equal(t, notify.LevelWarning, notifier.notes[1].Level)
}

func TestSampler_AlertCooldownExpires(t *testing.T) {
	opts := DefaultOptions()
	opts.Interval = time.Hour
	opts.AlertCooldown = 20 * time.Millisecond
	insp := &fakeInspector{}
	insp.set(1, 2000*bytesPerMB)
	notifier := &recordingNotifier{}
	s := NewSampler(opts, insp, nil, nil, notifier)
	defer s.Close()

	m := manualMonitor(t, s, "shop", []int{1})
	s.sample(m)
	time.Sleep(30 * time.Millisecond)
	s.sample(m)
	assert.Equal(t, 2, notifier.count())
}

func TestSampler_Evaluate(t *testing.T) {
	s := NewSampler(DefaultOptions(), &fakeInspector{}, nil, nil, nil)
	defer s.Close()

	tests := []struct {
		name   string
		cpu    float64
		memMB  uint64
		expect []string
	}{
		{"quiet", 10, 100, nil},
		{"at threshold", 80, 500, nil},
		{"cpu warning", 81, 100, []string{"cpu/warning"}},
		{"cpu critical", 96, 100, []string{"cpu/critical"}},
		{"memory warning", 10, 600, []string{"memory/warning"}},
		{"both critical", 100, 2048, []string{"cpu/critical", "memory/critical"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := s.evaluate(Sample{ProjectID: "p", CPU: tt.cpu, Memory: tt.memMB * bytesPerMB})
			var got []string
			for _, a := range alerts {
				got = append(got, a.Type+"/"+a.Level)
			}
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestSampler_StartStop(t *testing.T) {
	opts := DefaultOptions()
	opts.Interval = 10 * time.Millisecond
	insp := &fakeInspector{}
	s := NewSampler(opts, insp, nil, nil, nil)
	defer s.Close()

	pids := func() []int { return []int{42} }
	s.Start("shop", "Shop", pids)
	s.Start("shop", "Shop", pids)
	assert.True(t, s.Active("shop"))

	require.Eventually(t, func() bool { return len(s.History("shop")) >= 2 }, time.Second, 5*time.Millisecond)

	s.Stop("shop")
	s.Stop("shop")
	assert.False(t, s.Active("shop"))

	time.Sleep(30 * time.Millisecond)
	n := len(s.History("shop"))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, len(s.History("shop")), "no samples after stop")
	assert.NotZero(t, n, "history survives stop")

	s.ClearHistory("shop")
	assert.Empty(t, s.History("shop"))
}

func TestSampler_PersistsSamples(t *testing.T) {
	store, err := NewStore(t.TempDir(), 100)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Interval = time.Hour
	insp := &fakeInspector{}
	insp.set(5, 1024)
	s := NewSampler(opts, insp, store, nil, nil)

	m := manualMonitor(t, s, "shop", []int{7})
	s.sample(m)
	s.sample(m)
	store.Flush()

	loaded, err := s.LoadRange("shop", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	periods, err := s.Periods("shop")
	require.NoError(t, err)
	now := time.Now()
	assert.Equal(t, []Period{{Year: now.Year(), Month: int(now.Month())}}, periods)

	s.Close()
	assert.ErrorIs(t, store.Append(Sample{ProjectID: "shop", Timestamp: now}), ErrStoreClosed)
}

func TestOptionsFrom(t *testing.T) {
	opts := OptionsFrom(config.PerformanceConfig{
		Interval:    "500ms",
		HistorySize: 10,
		CPUCritical: 90,
	})
	assert.Equal(t, 500*time.Millisecond, opts.Interval)
	assert.Equal(t, 10, opts.HistorySize)
	assert.Equal(t, float64(90), opts.CPUCritical)
	assert.Equal(t, float64(80), opts.CPUWarning)
	assert.Equal(t, 5*time.Minute, opts.AlertCooldown)
}

func TestSystemInspector_Self(t *testing.T) {
	insp := NewSystemInspector()
	samples := insp.Inspect(context.Background(), []int{os.Getpid()})
	require.NotEmpty(t, samples)
	assert.Equal(t, os.Getpid(), samples[0].PID)
	assert.NotZero(t, samples[0].Memory)

	assert.Empty(t, insp.Inspect(context.Background(), []int{99999999}))
}

func startBusyLoop(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("sh", "-c", "while :; do :; done")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})
	return cmd.Process.Pid
}

func totalCPU(samples []ProcessSample) float64 {
	var cpu float64
	for _, s := range samples {
		cpu += s.CPU
	}
	return cpu
}

func TestSystemInspector_SharedAcrossProjects(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	web := startBusyLoop(t)
	api := startBusyLoop(t)

	insp := NewSystemInspector()
	ctx := context.Background()
	insp.Inspect(ctx, []int{web})
	insp.Inspect(ctx, []int{api})

	var webCPU, apiCPU float64
	for i := 0; i < 3; i++ {
		time.Sleep(200 * time.Millisecond)
		webCPU = totalCPU(insp.Inspect(ctx, []int{web}))
		apiCPU = totalCPU(insp.Inspect(ctx, []int{api}))
	}

	assert.Greater(t, webCPU, 5.0)
	assert.Greater(t, apiCPU, 5.0)
}

func TestSystemInspector_ExpiresUnseenProcesses(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	web := startBusyLoop(t)

	insp := NewSystemInspector()
	ctx := context.Background()
	insp.Inspect(ctx, []int{web})
	insp.Inspect(ctx, []int{os.Getpid()})

	insp.mu.Lock()
	_, tracked := insp.procs[int32(web)]
	insp.mu.Unlock()
	assert.True(t, tracked, "another caller's process must stay cached")

	insp.mu.Lock()
	insp.ttl = 10 * time.Millisecond
	insp.mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	insp.Inspect(ctx, []int{os.Getpid()})

	insp.mu.Lock()
	_, tracked = insp.procs[int32(web)]
	insp.mu.Unlock()
	assert.False(t, tracked)
}
