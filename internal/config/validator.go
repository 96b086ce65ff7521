// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Validate checks configuration validity.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateServer(cfg, errs)
	v.validateProjects(cfg, errs)
	v.validatePerformance(cfg, errs)
	v.validateDurations(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs.Add("server.port", "must be between 0 and 65535")
	}
}

func (v *Validator) validateProjects(cfg *Config, errs *ValidationError) {
	seenIDs := make(map[string]bool)

	for i, p := range cfg.Projects {
		prefix := fmt.Sprintf("projects[%d]", i)

		if p.ID == "" {
			errs.Add(prefix+".id", "is required (or set a name)")
		} else if seenIDs[p.ID] {
			errs.Add(prefix+".id", fmt.Sprintf("duplicate project id '%s'", p.ID))
		} else {
			seenIDs[p.ID] = true
		}

		seenTasks := make(map[string]bool)
		for j, t := range p.Tasks {
			v.validateTask(fmt.Sprintf("%s.tasks[%d]", prefix, j), t, seenTasks, errs)
		}
	}
}

func (v *Validator) validateTask(prefix string, t Task, seen map[string]bool, errs *ValidationError) {
	if t.Name == "" {
		errs.Add(prefix+".name", "is required")
	} else if seen[t.Name] {
		errs.Add(prefix+".name", fmt.Sprintf("duplicate task name '%s'", t.Name))
	} else {
		seen[t.Name] = true
	}

	if strings.TrimSpace(t.Command) == "" {
		errs.Add(prefix+".command", "is required")
	}

	switch t.Mode {
	case "", ModeInternal, ModeExternal:
	default:
		errs.Add(prefix+".mode", fmt.Sprintf("invalid mode '%s', must be one of: internal, external", t.Mode))
	}

	if t.PTY && t.Mode == ModeExternal {
		errs.Add(prefix+".pty", "only applies to internal tasks")
	}

	if t.Port < 0 || t.Port > 65535 {
		errs.Add(prefix+".port", "must be between 0 and 65535")
	}

	if hc := t.HealthCheck; hc != nil && hc.Enabled {
		if hc.URL == "" {
			errs.Add(prefix+".health_check.url", "is required when enabled")
		} else if u, err := url.Parse(hc.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs.Add(prefix+".health_check.url", fmt.Sprintf("invalid url '%s'", hc.URL))
		}
		if hc.Retries < 0 {
			errs.Add(prefix+".health_check.retries", "must not be negative")
		}
		checkDuration(prefix+".health_check.interval", hc.Interval, errs)
		checkDuration(prefix+".health_check.timeout", hc.Timeout, errs)
	}

	if m := t.Monitoring; m != nil && m.Enabled {
		switch m.Type {
		case "", "ngrok", "cloudflared", "custom":
		default:
			errs.Add(prefix+".monitoring.type", fmt.Sprintf("invalid type '%s', must be one of: ngrok, cloudflared, custom", m.Type))
		}
		if m.APIURL == "" {
			errs.Add(prefix+".monitoring.api_url", "is required when enabled")
		}
		if m.EnvVar != "" && t.EnvFile == "" {
			errs.Add(prefix+".monitoring.env_var", "requires env_file to be set")
		}
		if m.MaxAttempts < 0 {
			errs.Add(prefix+".monitoring.max_attempts", "must not be negative")
		}
		checkDuration(prefix+".monitoring.interval", m.Interval, errs)
	}
}

func (v *Validator) validatePerformance(cfg *Config, errs *ValidationError) {
	p := cfg.Performance
	if p.HistorySize < 0 {
		errs.Add("performance.history_size", "must not be negative")
	}
	if p.MaxPersisted < 0 {
		errs.Add("performance.max_persisted", "must not be negative")
	}
	if p.CPUWarning > 0 && p.CPUCritical > 0 && p.CPUWarning > p.CPUCritical {
		errs.Add("performance.cpu_warning", "must not exceed cpu_critical")
	}
	if p.MemoryWarningMB > 0 && p.MemoryCriticalMB > 0 && p.MemoryWarningMB > p.MemoryCriticalMB {
		errs.Add("performance.memory_warning_mb", "must not exceed memory_critical_mb")
	}
}

func (v *Validator) validateDurations(cfg *Config, errs *ValidationError) {
	checkDuration("watch.debounce", cfg.Watch.Debounce, errs)
	checkDuration("events.history.max_age", cfg.Events.History.MaxAge, errs)
	checkDuration("launch.settle_delay", cfg.Launch.SettleDelay, errs)
	checkDuration("launch.perf_delay", cfg.Launch.PerfDelay, errs)
	checkDuration("launch.health_delay", cfg.Launch.HealthDelay, errs)
	checkDuration("launch.stop_grace", cfg.Launch.StopGrace, errs)
	checkDuration("launch.restart_window", cfg.Launch.RestartWindow, errs)
	checkDuration("performance.interval", cfg.Performance.Interval, errs)
	checkDuration("performance.alert_cooldown", cfg.Performance.AlertCooldown, errs)
}

func checkDuration(field, value string, errs *ValidationError) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		errs.Add(field, fmt.Sprintf("invalid duration format: %s", err))
	} else if d < 0 {
		errs.Add(field, "must be positive")
	}
}
