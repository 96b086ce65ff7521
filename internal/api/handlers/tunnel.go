// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"strings"

	"github.com/wingedpig/launchpad/internal/config"
	"github.com/wingedpig/launchpad/internal/tunnel"
)

// DetectRequest is the body of the tunnel detection endpoint.
type DetectRequest struct {
	Command string `json:"command"`
}

// DetectResponse reports whether a command runs a known tunnel agent.
type DetectResponse struct {
	Detected   bool                     `json:"detected"`
	Monitoring *config.MonitoringConfig `json:"monitoring,omitempty"`
}

// DetectTunnel suggests a monitoring config for a task command.
func DetectTunnel(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "command is required")
		return
	}

	mc, ok := tunnel.Detect(req.Command)
	WriteJSON(w, http.StatusOK, DetectResponse{Detected: ok, Monitoring: mc})
}
