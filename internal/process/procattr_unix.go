// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

const ptySupported = true

// shellCommand runs command through the POSIX shell.
func shellCommand(command string) (string, []string) {
	return "sh", []string{"-c", command}
}

// sysProcAttr puts the child in its own process group so the whole tree
// can be signalled at once.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// startPTY starts cmd attached to a new pseudo-terminal. pty.Start makes the
// child a session leader, so its PID is also its process group ID.
func startPTY(cmd *exec.Cmd) (*os.File, error) {
	return pty.Start(cmd)
}

// killTree sends SIGKILL to the process group led by pid, falling back to
// the single process if the group cannot be signalled.
func killTree(pid int) error {
	err := syscall.Kill(-pid, syscall.SIGKILL)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}
