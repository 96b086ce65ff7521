// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/wingedpig/launchpad/internal/notify"
)

// NotifyHandler lets scripts and tools raise desktop notifications.
type NotifyHandler struct {
	notifier notify.Notifier
}

// NewNotifyHandler creates a new notify handler.
func NewNotifyHandler(notifier notify.Notifier) *NotifyHandler {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &NotifyHandler{notifier: notifier}
}

// NotifyRequest is the request body for the notify endpoint.
type NotifyRequest struct {
	Project string `json:"project"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Level   string `json:"level"` // info, warning, critical
}

// Notify raises a notification.
func (h *NotifyHandler) Notify(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}

	if req.Title == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "title is required")
		return
	}

	level := notify.Level(req.Level)
	switch level {
	case "":
		level = notify.LevelInfo
	case notify.LevelInfo, notify.LevelWarning, notify.LevelCritical:
	default:
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "level must be info, warning, or critical")
		return
	}

	n := notify.Notification{
		Project: req.Project,
		Title:   req.Title,
		Body:    req.Body,
		Level:   level,
	}
	h.notifier.Notify(r.Context(), n)
	WriteJSON(w, http.StatusOK, map[string]string{
		"title": n.Title,
		"level": string(n.Level),
	})
}
