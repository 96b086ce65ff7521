// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMatcher_Match(t *testing.T) {
	pm := NewPatternMatcher()

	tests := []struct {
		eventType string
		pattern   string
		want      bool
	}{
		{"process.output", "*", true},
		{"process.output", "process.output", true},
		{"process.output", "process.*", true},
		{"processes.output", "process.*", false},
		{"health.restart_required", "*.restart_required", true},
		{"health.failed", "*.recovered", false},
		{"perf.alert", "health.*,perf.alert", true},
		{"perf.sample", "health.*, perf.alert", false},
		{"", "*", false},
		{"perf.alert", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.eventType+"~"+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, pm.Match(tt.eventType, tt.pattern))
		})
	}
}

func TestPatternMatcher_Compile(t *testing.T) {
	pm := NewPatternMatcher()

	_, err := pm.Compile("")
	assert.Error(t, err)

	compiled, err := pm.Compile("tunnel.*")
	require.NoError(t, err)
	assert.True(t, compiled.Match(EventTunnelURLCaptured))
	assert.False(t, compiled.Match(EventPerfAlert))
}
