// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wingedpig/launchpad/internal/events"
)

const (
	streamQueueSize = 256
	streamPongWait  = 60 * time.Second
	streamPingEvery = streamPongWait * 9 / 10
	streamWriteWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API listens on loopback by default and has no sessions to forge.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventHandler serves recorded event history and the live event stream.
type EventHandler struct {
	bus events.EventBus
}

// NewEventHandler creates a new event handler.
func NewEventHandler(bus events.EventBus) *EventHandler {
	return &EventHandler{bus: bus}
}

// parseEventFilter reads type (repeatable), project, limit, since and until.
func parseEventFilter(q url.Values) (events.EventFilter, error) {
	filter := events.EventFilter{
		Types:   q["type"],
		Project: q.Get("project"),
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("invalid limit %q", s)
		}
		filter.Limit = n
	}
	for _, bound := range []struct {
		name string
		dst  *time.Time
	}{{"since", &filter.Since}, {"until", &filter.Until}} {
		s := q.Get(bound.name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filter, fmt.Errorf("invalid %s time %q", bound.name, s)
		}
		*bound.dst = t
	}
	if !filter.Since.IsZero() && !filter.Until.IsZero() && filter.Until.Before(filter.Since) {
		return filter, fmt.Errorf("until is before since")
	}
	return filter, nil
}

// History returns recorded events, oldest first.
func (h *EventHandler) History(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r.URL.Query())
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}

	list, err := h.bus.History(filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	if list == nil {
		list = []events.Event{}
	}
	WriteJSON(w, http.StatusOK, list)
}

// eventStream is one websocket subscriber. Events that arrive while the
// queue is full are dropped and counted.
type eventStream struct {
	conn    *websocket.Conn
	project string
	queue   chan events.Event
	closed  chan struct{}
	dropped atomic.Int64
}

func (s *eventStream) offer(_ context.Context, event events.Event) error {
	if s.project != "" && event.Project != s.project {
		return nil
	}
	select {
	case s.queue <- event:
	case <-s.closed:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// readUntilClosed discards client frames so pongs and close frames are
// processed. The deadline is only pushed forward by the pong handler.
func (s *eventStream) readUntilClosed() {
	defer close(s.closed)
	s.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *eventStream) write(fn func() error) bool {
	s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return fn() == nil
}

func (s *eventStream) pump() {
	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()
	for {
		select {
		case event := <-s.queue:
			if !s.write(func() error { return s.conn.WriteJSON(event) }) {
				return
			}
		case <-ping.C:
			if !s.write(func() error { return s.conn.WriteMessage(websocket.PingMessage, nil) }) {
				return
			}
		case <-s.closed:
			return
		}
	}
}

// WebSocket streams live events. The optional pattern query parameter
// selects event types (default all) and project restricts to one project.
func (h *EventHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s := &eventStream{
		conn:    conn,
		project: r.URL.Query().Get("project"),
		queue:   make(chan events.Event, streamQueueSize),
		closed:  make(chan struct{}),
	}

	subID, err := h.bus.SubscribeAsync(pattern, s.offer, streamQueueSize)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		return
	}
	defer h.bus.Unsubscribe(subID)

	go s.readUntilClosed()
	s.pump()

	if n := s.dropped.Load(); n > 0 {
		log.Printf("Event stream %q dropped %d events for a slow client", pattern, n)
	}
}
