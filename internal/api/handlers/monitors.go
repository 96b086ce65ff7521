// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wingedpig/launchpad/internal/health"
	"github.com/wingedpig/launchpad/internal/perf"
)

// HealthSource exposes health monitor state.
type HealthSource interface {
	Statuses(projectID string) []health.State
	History(projectID string) []health.HistoryEntry
	ClearHistory(projectID string)
}

// PerfSource exposes performance samples.
type PerfSource interface {
	Active(projectID string) bool
	History(projectID string) []perf.Sample
	ClearHistory(projectID string)
	LoadRange(projectID string, start, end time.Time) ([]perf.Sample, error)
	Periods(projectID string) ([]perf.Period, error)
}

// MonitorHandler serves health and performance data.
type MonitorHandler struct {
	health HealthSource
	perf   PerfSource
}

// NewMonitorHandler creates a new monitor handler.
func NewMonitorHandler(h HealthSource, p PerfSource) *MonitorHandler {
	return &MonitorHandler{health: h, perf: p}
}

// Health returns the current health of each monitored task.
func (h *MonitorHandler) Health(w http.ResponseWriter, r *http.Request) {
	states := h.health.Statuses(mux.Vars(r)["id"])
	if states == nil {
		states = []health.State{}
	}
	WriteJSON(w, http.StatusOK, states)
}

// HealthHistory returns recent health transitions.
func (h *MonitorHandler) HealthHistory(w http.ResponseWriter, r *http.Request) {
	entries := h.health.History(mux.Vars(r)["id"])
	if entries == nil {
		entries = []health.HistoryEntry{}
	}
	WriteJSON(w, http.StatusOK, entries)
}

// ClearHealthHistory drops recorded health transitions.
func (h *MonitorHandler) ClearHealthHistory(w http.ResponseWriter, r *http.Request) {
	h.health.ClearHistory(mux.Vars(r)["id"])
	WriteJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// Performance returns the in-memory samples.
func (h *MonitorHandler) Performance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	samples := h.perf.History(id)
	if samples == nil {
		samples = []perf.Sample{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"project":    id,
		"monitoring": h.perf.Active(id),
		"samples":    samples,
	})
}

// ClearPerformance drops the in-memory samples.
func (h *MonitorHandler) ClearPerformance(w http.ResponseWriter, r *http.Request) {
	h.perf.ClearHistory(mux.Vars(r)["id"])
	WriteJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// PerformanceHistory returns persisted samples between start and end
// (RFC 3339). Either bound may be omitted.
func (h *MonitorHandler) PerformanceHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var start, end time.Time
	if s := query.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid start time")
			return
		}
		start = t
	}
	if s := query.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid end time")
			return
		}
		end = t
	}

	samples, err := h.perf.LoadRange(mux.Vars(r)["id"], start, end)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	if samples == nil {
		samples = []perf.Sample{}
	}
	WriteJSON(w, http.StatusOK, samples)
}

// PerformancePeriods lists the months with persisted samples.
func (h *MonitorHandler) PerformancePeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.perf.Periods(mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	if periods == nil {
		periods = []perf.Period{}
	}
	WriteJSON(w, http.StatusOK, periods)
}
