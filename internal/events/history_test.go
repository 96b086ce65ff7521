// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHistory_MaxEvents(t *testing.T) {
	history := NewEventHistory(EventHistoryConfig{MaxEvents: 3, MaxAge: time.Hour})
	defer history.Close()

	for _, id := range []string{"1", "2", "3", "4", "5"} {
		history.Add(Event{ID: id, Type: EventPerfSample, Timestamp: time.Now()})
	}

	result, err := history.Query(EventFilter{})
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, "3", result[0].ID)
	assert.Equal(t, "5", result[2].ID)
}

func TestEventHistory_QueryTimeRangeAndLimit(t *testing.T) {
	history := NewEventHistory(EventHistoryConfig{MaxEvents: 100, MaxAge: time.Hour})
	defer history.Close()

	now := time.Now()
	history.Add(Event{ID: "1", Type: EventHealthFailed, Project: "web", Timestamp: now.Add(-30 * time.Minute)})
	history.Add(Event{ID: "2", Type: EventHealthRecovered, Project: "web", Timestamp: now.Add(-15 * time.Minute)})
	history.Add(Event{ID: "3", Type: EventHealthFailed, Project: "api", Timestamp: now.Add(-10 * time.Minute)})
	history.Add(Event{ID: "4", Type: EventHealthFailed, Project: "web", Timestamp: now.Add(-5 * time.Minute)})

	result, err := history.Query(EventFilter{
		Types:   []string{"health.*"},
		Project: "web",
		Since:   now.Add(-20 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "2", result[0].ID)
	assert.Equal(t, "4", result[1].ID)

	result, err = history.Query(EventFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "4", result[0].ID)
}

func TestEventHistory_Prune(t *testing.T) {
	history := NewEventHistory(EventHistoryConfig{MaxEvents: 100, MaxAge: time.Minute})
	defer history.Close()

	history.Add(Event{ID: "old", Timestamp: time.Now().Add(-time.Hour)})
	history.Add(Event{ID: "new", Timestamp: time.Now()})
	assert.Equal(t, 1, history.Prune())

	result, err := history.Query(EventFilter{})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "new", result[0].ID)
}

func TestEventHistory_Exclude(t *testing.T) {
	history := NewEventHistory(EventHistoryConfig{
		MaxEvents: 10,
		MaxAge:    time.Hour,
		Exclude:   []string{"process.output", "perf.*"},
	})
	defer history.Close()

	assert.False(t, history.Add(Event{ID: "1", Type: EventProcessOutput, Timestamp: time.Now()}))
	assert.False(t, history.Add(Event{ID: "2", Type: EventPerfSample, Timestamp: time.Now()}))
	assert.True(t, history.Add(Event{ID: "3", Type: EventProjectLaunched, Timestamp: time.Now()}))
	assert.Equal(t, 1, history.Len())
}

func TestEventHistory_QueryEmptyTypePattern(t *testing.T) {
	history := NewEventHistory(EventHistoryConfig{})
	defer history.Close()

	history.Add(Event{ID: "1", Type: EventProjectLaunched, Timestamp: time.Now()})

	result, err := history.Query(EventFilter{Types: []string{""}})
	require.NoError(t, err)
	assert.Empty(t, result)
}
