// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package ports

import (
	"context"
	"errors"
)

// ErrNoTerminal is returned when no external terminal program is available.
var ErrNoTerminal = errors.New("no terminal emulator found")

// ExternalTask is a task run in a separate OS terminal tab.
type ExternalTask struct {
	Title   string
	Command string
	WorkDir string
	Env     []string
}

// Platform isolates the OS-specific commands used for port inspection,
// process termination and external terminal launches.
type Platform interface {
	// ListenerPID returns the PID listening on port, or 0 if none.
	ListenerPID(ctx context.Context, port int) (int, error)
	// Kill forcefully terminates pid.
	Kill(ctx context.Context, pid int) error
	// LaunchExternal opens one terminal session with a tab per task.
	LaunchExternal(ctx context.Context, tasks []ExternalTask) error
}
