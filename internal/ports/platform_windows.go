// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package ports

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// windowsPlatform uses netstat and taskkill.
type windowsPlatform struct{}

// NewHostPlatform returns the Platform for the running OS.
func NewHostPlatform() Platform {
	return windowsPlatform{}
}

func (windowsPlatform) ListenerPID(ctx context.Context, port int) (int, error) {
	out, err := exec.CommandContext(ctx, "netstat", "-ano", "-p", "TCP").Output()
	if err != nil {
		return 0, fmt.Errorf("netstat: %w", err)
	}
	return parseNetstat(string(out), port), nil
}

// parseNetstat finds the PID of a LISTENING row whose local address ends in
// :port. Rows look like "TCP    0.0.0.0:3000   0.0.0.0:0   LISTENING   1234".
func parseNetstat(out string, port int) int {
	suffix := ":" + strconv.Itoa(port)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || !strings.EqualFold(fields[0], "TCP") {
			continue
		}
		if fields[3] != "LISTENING" || !strings.HasSuffix(fields[1], suffix) {
			continue
		}
		if pid, err := strconv.Atoi(fields[4]); err == nil && pid > 0 {
			return pid
		}
	}
	return 0
}

func (windowsPlatform) Kill(ctx context.Context, pid int) error {
	out, err := exec.CommandContext(ctx, "taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("taskkill %d: %w: %s", pid, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (windowsPlatform) LaunchExternal(ctx context.Context, tasks []ExternalTask) error {
	for _, t := range tasks {
		args := []string{"/C", "start", t.Title}
		if t.WorkDir != "" {
			args = append(args, "/D", t.WorkDir)
		}
		args = append(args, "cmd", "/K", t.Command)
		cmd := exec.Command("cmd", args...)
		if len(t.Env) > 0 {
			cmd.Env = t.Env
		}
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("start terminal for %s: %w", t.Title, err)
		}
	}
	return nil
}
