// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/launchpad/internal/launcher"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func writeTestConfig(t *testing.T, dir string, projects string) string {
	t.Helper()
	path := filepath.Join(dir, "launchpad.hjson")
	content := fmt.Sprintf(`{
  data_dir: %q
  watch: { debounce: "20ms" }
  launch: { settle_delay: "10ms", perf_delay: "10ms", health_delay: "10ms", stop_grace: "10ms" }
  performance: { interval: "50ms" }
  projects: [%s]
}`, filepath.Join(dir, "data"), projects)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const sleeperProject = `{ name: "Sleeper", tasks: [{ name: "worker", command: "sleep 30" }] }`

func TestApp_LoadError(t *testing.T) {
	_, err := New(Options{ConfigPath: filepath.Join(t.TempDir(), "missing.hjson")})
	assert.Error(t, err)
}

func TestApp_ServesAndShutsDown(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, sleeperProject)
	port := freePort(t)

	a, err := New(Options{ConfigPath: path, Host: "127.0.0.1", Port: port})
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background()))
	require.NoError(t, a.Start(context.Background()))

	base := fmt.Sprintf("http://127.0.0.1:%d/api/v1", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/projects")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Post(base+"/projects/sleeper/launch", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	var body struct {
		Data launcher.LaunchResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.True(t, body.Data.Success)
	assert.Equal(t, []string{"worker"}, body.Data.Started)

	st, err := a.coordinator.Status("sleeper")
	require.NoError(t, err)
	require.Len(t, st.Tasks, 1)
	pid := st.Tasks[0].PID
	require.NotZero(t, pid)

	require.NoError(t, a.Shutdown(context.Background()))
	require.NoError(t, a.Shutdown(context.Background()))

	assert.Empty(t, a.supervisor.Projects())
	_, err = http.Get(base + "/projects")
	assert.Error(t, err)
}

func TestApp_ReloadsProjects(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, sleeperProject)

	a, err := New(Options{ConfigPath: path, Port: freePort(t)})
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background()))
	defer a.Shutdown(context.Background())
	require.NotNil(t, a.configWatcher)

	writeTestConfig(t, dir, sleeperProject+`, { id: "docs", tasks: [{ name: "serve", command: "sleep 30" }] }`)

	require.Eventually(t, func() bool {
		return len(a.coordinator.Projects()) == 2
	}, 2*time.Second, 20*time.Millisecond)
	assert.Len(t, a.Projects(), 2)

	// An invalid file keeps the previous projects
	require.NoError(t, os.WriteFile(path, []byte(`{ projects: [ { tasks: [ {} ] } ] }`), 0644))
	time.Sleep(150 * time.Millisecond)
	assert.Len(t, a.coordinator.Projects(), 2)
}

func TestApp_StopUnblocksRun(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, "")

	a, err := New(Options{ConfigPath: path, Host: "127.0.0.1", Port: freePort(t)})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	a.Stop()
	a.Stop()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
