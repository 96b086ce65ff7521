// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"
)

// TemplateContext is the data available to task templates at launch time.
type TemplateContext struct {
	Project     ProjectRef
	Task        TaskRef
	Environment string
	Home        string
}

// ProjectRef identifies the project being launched.
type ProjectRef struct {
	ID   string
	Name string
}

// TaskRef identifies the task being expanded.
type TaskRef struct {
	Name string
	Port int
}

// NewTemplateContext builds the context for expanding task within project.
func NewTemplateContext(project *Project, task *Task, environment string) *TemplateContext {
	home, _ := os.UserHomeDir()
	return &TemplateContext{
		Project:     ProjectRef{ID: project.ID, Name: project.Name},
		Task:        TaskRef{Name: task.Name, Port: task.Port},
		Environment: environment,
		Home:        home,
	}
}

// TemplateExpander handles Go text/template variable expansion in task fields.
type TemplateExpander struct {
	funcMap template.FuncMap
}

// NewTemplateExpander creates a new template expander with built-in functions.
func NewTemplateExpander() *TemplateExpander {
	return &TemplateExpander{
		funcMap: template.FuncMap{
			"slugify": Slugify,
			"replace": Replace,
			"upper":   strings.ToUpper,
			"lower":   strings.ToLower,
			"default": Default,
			"quote":   Quote,
		},
	}
}

// Expand expands template variables in a string value. Values without
// template actions are returned unchanged.
func (e *TemplateExpander) Expand(value string, ctx *TemplateContext) (string, error) {
	if !strings.Contains(value, "{{") {
		return value, nil
	}

	tmpl, err := template.New("").Funcs(e.funcMap).Option("missingkey=error").Parse(value)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// ExpandTask returns a copy of task with command, work_dir, env_file and the
// values of its environment map expanded. The original is not modified.
func (e *TemplateExpander) ExpandTask(task Task, ctx *TemplateContext) (Task, error) {
	expanded := task
	var err error

	if expanded.Command, err = e.Expand(task.Command, ctx); err != nil {
		return task, fmt.Errorf("task %s command: %w", task.Name, err)
	}
	if expanded.WorkDir, err = e.Expand(task.WorkDir, ctx); err != nil {
		return task, fmt.Errorf("task %s work_dir: %w", task.Name, err)
	}
	if expanded.EnvFile, err = e.Expand(task.EnvFile, ctx); err != nil {
		return task, fmt.Errorf("task %s env_file: %w", task.Name, err)
	}

	if task.Env != nil {
		expanded.Env = make(map[string]map[string]string, len(task.Env))
		for env, vars := range task.Env {
			out := make(map[string]string, len(vars))
			for k, v := range vars {
				if out[k], err = e.Expand(v, ctx); err != nil {
					return task, fmt.Errorf("task %s env %s.%s: %w", task.Name, env, k, err)
				}
			}
			expanded.Env[env] = out
		}
	}

	if task.HealthCheck != nil {
		hc := *task.HealthCheck
		if hc.URL, err = e.Expand(hc.URL, ctx); err != nil {
			return task, fmt.Errorf("task %s health_check.url: %w", task.Name, err)
		}
		expanded.HealthCheck = &hc
	}

	return expanded, nil
}

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9-]+`)
	slugDashes  = regexp.MustCompile(`-+`)
)

// Slugify converts a string to a URL-friendly slug.
func Slugify(s string) string {
	s = strings.ToLower(s)

	// Replace common separators with hyphens
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, " ", "-")

	s = slugInvalid.ReplaceAllString(s, "")
	s = slugDashes.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}

// Replace replaces all occurrences of old with new in s.
func Replace(old, new, s string) string {
	return strings.ReplaceAll(s, old, new)
}

// Default returns the value if non-empty, otherwise the default.
func Default(defaultVal, value string) string {
	if value == "" {
		return defaultVal
	}
	return value
}

// Quote adds shell-safe quotes around a string.
func Quote(s string) string {
	escaped := strings.ReplaceAll(s, `"`, `\"`)
	return `"` + escaped + `"`
}
