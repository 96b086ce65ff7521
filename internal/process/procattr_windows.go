// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// ptySupported is false: pty tasks fall back to pipes on Windows.
const ptySupported = false

// shellCommand runs command through cmd.exe.
func shellCommand(command string) (string, []string) {
	return "cmd", []string{"/C", command}
}

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

func startPTY(cmd *exec.Cmd) (*os.File, error) {
	return nil, errors.New("pty is not supported on windows")
}

// killTree terminates pid and all of its descendants with taskkill.
func killTree(pid int) error {
	out, err := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		// taskkill reports a missing process with exit status 128
		if strings.Contains(msg, "not found") {
			return nil
		}
		return fmt.Errorf("taskkill: %w: %s", err, msg)
	}
	return nil
}
