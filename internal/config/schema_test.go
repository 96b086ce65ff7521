// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseDuration("5s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("bogus", time.Minute))
}

func TestTask_RunsIn(t *testing.T) {
	all := Task{Name: "all"}
	devOnly := Task{Name: "dev", Environments: []string{"dev"}}

	for _, env := range []string{"dev", "staging", "prod", ""} {
		assert.True(t, all.RunsIn(env), env)
	}
	assert.True(t, devOnly.RunsIn("dev"))
	assert.False(t, devOnly.RunsIn("prod"))
}

func TestProject_TasksFor(t *testing.T) {
	p := Project{Tasks: []Task{
		{Name: "a"},
		{Name: "b", Environments: []string{"prod"}},
		{Name: "c", Environments: []string{"dev", "prod"}},
	}}

	names := func(tasks []Task) []string {
		var out []string
		for _, t := range tasks {
			out = append(out, t.Name)
		}
		return out
	}
	assert.Equal(t, []string{"a", "c"}, names(p.TasksFor("dev")))
	assert.Equal(t, []string{"a", "b", "c"}, names(p.TasksFor("prod")))

	task, ok := p.Task("b")
	assert.True(t, ok)
	assert.Equal(t, "b", task.Name)
	_, ok = p.Task("z")
	assert.False(t, ok)
}

func TestHealthCheckConfig_Defaults(t *testing.T) {
	hc := &HealthCheckConfig{}
	assert.Equal(t, 30*time.Second, hc.GetInterval())
	assert.Equal(t, 5*time.Second, hc.GetTimeout())
	assert.Equal(t, 3, hc.GetRetries())

	hc = &HealthCheckConfig{Interval: "10s", TimeoutMS: 250, Retries: 5}
	assert.Equal(t, 10*time.Second, hc.GetInterval())
	assert.Equal(t, 250*time.Millisecond, hc.GetTimeout())
	assert.Equal(t, 5, hc.GetRetries())
}

func TestMonitoringConfig_Defaults(t *testing.T) {
	m := &MonitoringConfig{}
	assert.Equal(t, 2*time.Second, m.GetInterval())
	assert.Equal(t, 30, m.GetMaxAttempts())
	assert.Equal(t, "{url}", m.GetURLTemplate())
}

func TestTask_Flags(t *testing.T) {
	task := Task{Mode: ModeExternal}
	assert.True(t, task.IsExternal())
	assert.False(t, task.HealthEnabled())
	assert.False(t, task.MonitoringEnabled())

	task.HealthCheck = &HealthCheckConfig{Enabled: true}
	assert.False(t, task.HealthEnabled(), "no url")
	task.HealthCheck.URL = "http://localhost/"
	assert.True(t, task.HealthEnabled())

	task.Monitoring = &MonitoringConfig{Enabled: true}
	assert.True(t, task.MonitoringEnabled())
	assert.Nil(t, task.EnvFor("dev"))
}
