// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package notify turns user-facing alerts into notify.desktop events and,
// optionally, native desktop notifications.
package notify

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/wingedpig/launchpad/internal/events"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Notification is a desktop notification request.
type Notification struct {
	Project string
	Title   string
	Body    string
	Level   Level
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Runner executes an OS command. Replaced in tests.
type Runner func(ctx context.Context, name string, args ...string) error

// DesktopNotifier publishes every notification on the bus and, when native
// delivery is enabled, also runs the OS notifier.
type DesktopNotifier struct {
	bus    events.EventBus
	native bool
	run    Runner
}

// NewDesktopNotifier creates a notifier. native enables notify-send
// (Linux) or osascript (macOS).
func NewDesktopNotifier(bus events.EventBus, native bool) *DesktopNotifier {
	return &DesktopNotifier{bus: bus, native: native, run: runCommand}
}

// SetRunner replaces the command runner.
func (d *DesktopNotifier) SetRunner(run Runner) {
	d.run = run
}

// Notify publishes the notification. Native delivery is best effort and
// never blocks the caller.
func (d *DesktopNotifier) Notify(ctx context.Context, n Notification) {
	if n.Level == "" {
		n.Level = LevelInfo
	}
	events.Emit(ctx, d.bus, events.EventNotifyDesktop, n.Project, map[string]interface{}{
		"title": n.Title,
		"body":  n.Body,
		"level": string(n.Level),
	})

	if !d.native {
		return
	}
	name, args, ok := nativeCommand(runtime.GOOS, n)
	if !ok {
		return
	}
	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.run(runCtx, name, args...); err != nil {
			log.Printf("Desktop notification failed: %v", err)
		}
	}()
}

// nativeCommand returns the OS command that shows n.
func nativeCommand(goos string, n Notification) (string, []string, bool) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		urgency := "normal"
		switch n.Level {
		case LevelCritical:
			urgency = "critical"
		case LevelInfo:
			urgency = "low"
		}
		return "notify-send", []string{"-u", urgency, "-a", "Launchpad", n.Title, n.Body}, true
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s", appleQuote(n.Body), appleQuote(n.Title))
		return "osascript", []string{"-e", script}, true
	default:
		return "", nil, false
	}
}

func appleQuote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Discard drops every notification.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(context.Context, Notification) {}
