// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package ports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// unixPlatform uses lsof for listener lookup, falling back to the kernel
// connection table through gopsutil when lsof is unavailable.
type unixPlatform struct{}

// NewHostPlatform returns the Platform for the running OS.
func NewHostPlatform() Platform {
	return unixPlatform{}
}

func (unixPlatform) ListenerPID(ctx context.Context, port int) (int, error) {
	out, err := exec.CommandContext(ctx, "lsof", "-i", fmt.Sprintf("TCP:%d", port), "-sTCP:LISTEN", "-n", "-P", "-t").Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(strings.TrimSpace(string(out))) == 0 {
			// lsof exits 1 when nothing matches
			return 0, nil
		}
		return connectionListenerPID(ctx, port)
	}
	return lowestPID(string(out)), nil
}

// lowestPID returns the smallest PID in newline-separated lsof -t output.
// The lowest PID is the original listener rather than a forked worker.
func lowestPID(out string) int {
	min := 0
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || pid <= 0 {
			continue
		}
		if min == 0 || pid < min {
			min = pid
		}
	}
	return min
}

func connectionListenerPID(ctx context.Context, port int) (int, error) {
	conns, err := psnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return 0, fmt.Errorf("list connections: %w", err)
	}
	for _, c := range conns {
		if c.Status == "LISTEN" && c.Laddr.Port == uint32(port) && c.Pid > 0 {
			return int(c.Pid), nil
		}
	}
	return 0, nil
}

func (unixPlatform) Kill(ctx context.Context, pid int) error {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := p.KillWithContext(ctx); err != nil {
		return fmt.Errorf("kill process %d: %w", pid, err)
	}
	return nil
}

func (unixPlatform) LaunchExternal(ctx context.Context, tasks []ExternalTask) error {
	if runtime.GOOS == "darwin" {
		return launchTerminalApp(ctx, tasks)
	}
	return launchLinuxTerminal(tasks)
}

// launchTerminalApp opens each task in Terminal.app through osascript.
func launchTerminalApp(ctx context.Context, tasks []ExternalTask) error {
	var script strings.Builder
	script.WriteString("tell application \"Terminal\"\n\tactivate\n")
	for _, t := range tasks {
		fmt.Fprintf(&script, "\tdo script %s\n", appleScriptString(shellLine(t, envDelta(t.Env))))
	}
	script.WriteString("end tell\n")

	cmd := exec.CommandContext(ctx, "osascript", "-e", script.String())
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// launchLinuxTerminal starts one terminal per task. gnome-terminal opens each
// as a tab of the current window.
func launchLinuxTerminal(tasks []ExternalTask) error {
	term, err := findTerminal()
	if err != nil {
		return err
	}
	for _, t := range tasks {
		inner := shellLine(t, nil) + "; exec ${SHELL:-sh}"
		var args []string
		switch term {
		case "gnome-terminal":
			args = []string{"--tab", "--title=" + t.Title, "--", "sh", "-c", inner}
		case "konsole":
			args = []string{"--new-tab", "-p", "tabtitle=" + t.Title, "-e", "sh", "-c", inner}
		default:
			args = []string{"-T", t.Title, "-e", "sh", "-c", inner}
		}
		cmd := exec.Command(term, args...)
		if len(t.Env) > 0 {
			cmd.Env = t.Env
		}
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("start %s for %s: %w", term, t.Title, err)
		}
		go cmd.Wait()
	}
	return nil
}

func findTerminal() (string, error) {
	for _, name := range []string{"gnome-terminal", "konsole", "x-terminal-emulator", "xterm"} {
		if _, err := exec.LookPath(name); err == nil {
			return name, nil
		}
	}
	return "", ErrNoTerminal
}

// shellLine builds "cd DIR && export K=V && COMMAND".
func shellLine(t ExternalTask, exports []string) string {
	var parts []string
	if t.WorkDir != "" {
		parts = append(parts, "cd "+shellQuote(t.WorkDir))
	}
	for _, kv := range exports {
		if i := strings.IndexByte(kv, '='); i > 0 {
			parts = append(parts, "export "+kv[:i]+"="+shellQuote(kv[i+1:]))
		}
	}
	parts = append(parts, t.Command)
	return strings.Join(parts, " && ")
}

// envDelta returns the entries of env that differ from this process's
// environment. Terminal.app starts a fresh login shell so only these need
// exporting.
func envDelta(env []string) []string {
	current := make(map[string]bool)
	for _, kv := range os.Environ() {
		current[kv] = true
	}
	var out []string
	for _, kv := range env {
		if !current[kv] {
			out = append(out, kv)
		}
	}
	return out
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func appleScriptString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
