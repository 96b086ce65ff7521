// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wingedpig/launchpad/internal/launcher"
	"github.com/wingedpig/launchpad/internal/ports"
	"github.com/wingedpig/launchpad/internal/process"
)

// ProjectService is the part of the launch coordinator the API drives.
type ProjectService interface {
	List() []launcher.ProjectStatus
	Status(projectID string) (*launcher.ProjectStatus, error)
	Launch(ctx context.Context, projectID, environment string) (*launcher.LaunchResult, error)
	ConfirmLaunch(ctx context.Context, projectID, environment string, conflicts []ports.Conflict) (*launcher.LaunchResult, error)
	Stop(ctx context.Context, projectID string) error
	CheckPorts(ctx context.Context, projectID, environment string) ([]ports.Conflict, error)
	StartTask(ctx context.Context, projectID, taskName string) error
	StopTask(ctx context.Context, projectID, taskName string) error
	RestartTask(ctx context.Context, projectID, taskName string) error
	Output(projectID, taskName string, n int) ([]process.OutputLine, error)
	KillProcess(ctx context.Context, pid int) bool
}

// ProjectHandler handles project and task API requests.
type ProjectHandler struct {
	svc ProjectService
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(svc ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// LaunchRequest is the body of the launch endpoints.
type LaunchRequest struct {
	Environment string           `json:"environment"`
	Conflicts   []ports.Conflict `json:"conflicts,omitempty"` // Confirm only
}

// List returns every configured project with its runtime state.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects := h.svc.List()
	if projects == nil {
		projects = []launcher.ProjectStatus{}
	}
	WriteJSON(w, http.StatusOK, projects)
}

// Get returns a single project.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(mux.Vars(r)["id"])
	if err != nil {
		writeLauncherError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

// Launch starts a project. A result carrying conflicts means nothing was
// started and the caller must confirm.
func (h *ProjectHandler) Launch(w http.ResponseWriter, r *http.Request) {
	var req LaunchRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}

	// Processes outlive the HTTP request
	result, err := h.svc.Launch(context.Background(), mux.Vars(r)["id"], req.Environment)
	if err != nil {
		writeLauncherError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// ConfirmLaunch kills the listed conflicting processes and launches.
func (h *ProjectHandler) ConfirmLaunch(w http.ResponseWriter, r *http.Request) {
	var req LaunchRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}

	result, err := h.svc.ConfirmLaunch(context.Background(), mux.Vars(r)["id"], req.Environment, req.Conflicts)
	if err != nil {
		writeLauncherError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// Stop stops a project.
func (h *ProjectHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// Stop should complete even if the request is cancelled
	if err := h.svc.Stop(context.Background(), id); err != nil {
		writeLauncherError(w, err)
		return
	}
	h.writeStatus(w, id)
}

// Ports reports candidate ports of a project that are held by other
// processes.
func (h *ProjectHandler) Ports(w http.ResponseWriter, r *http.Request) {
	conflicts, err := h.svc.CheckPorts(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("environment"))
	if err != nil {
		writeLauncherError(w, err)
		return
	}
	if conflicts == nil {
		conflicts = []ports.Conflict{}
	}
	WriteJSON(w, http.StatusOK, conflicts)
}

// StartTask starts one task.
func (h *ProjectHandler) StartTask(w http.ResponseWriter, r *http.Request) {
	h.taskAction(w, r, h.svc.StartTask)
}

// StopTask stops one task.
func (h *ProjectHandler) StopTask(w http.ResponseWriter, r *http.Request) {
	h.taskAction(w, r, h.svc.StopTask)
}

// RestartTask restarts one task.
func (h *ProjectHandler) RestartTask(w http.ResponseWriter, r *http.Request) {
	h.taskAction(w, r, h.svc.RestartTask)
}

func (h *ProjectHandler) taskAction(w http.ResponseWriter, r *http.Request, action func(context.Context, string, string) error) {
	vars := mux.Vars(r)
	if err := action(context.Background(), vars["id"], vars["task"]); err != nil {
		writeLauncherError(w, err)
		return
	}
	h.writeStatus(w, vars["id"])
}

func (h *ProjectHandler) writeStatus(w http.ResponseWriter, id string) {
	st, err := h.svc.Status(id)
	if err != nil {
		writeLauncherError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

// Output returns the recent output lines of a task.
func (h *ProjectHandler) Output(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	lines := 100
	if s := r.URL.Query().Get("lines"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			lines = n
		}
	}

	out, err := h.svc.Output(vars["id"], vars["task"], lines)
	if err != nil {
		writeLauncherError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"project": vars["id"],
		"task":    vars["task"],
		"lines":   out,
	})
}

// KillProcess forcefully terminates any process by PID.
func (h *ProjectHandler) KillProcess(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.Atoi(mux.Vars(r)["pid"])
	if err != nil || pid <= 0 {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid pid")
		return
	}
	killed := h.svc.KillProcess(r.Context(), pid)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"pid":    pid,
		"killed": killed,
	})
}
