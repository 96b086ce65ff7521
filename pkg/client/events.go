// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// EventClient provides access to the Launchpad event bus.
//
// Events report process output, launches and stops, health transitions,
// performance alerts and captured tunnel URLs.
//
// Access this client through [Client.Events]:
//
//	events, err := client.Events.List(ctx, &client.ListOptions{Limit: 50})
type EventClient struct {
	c *Client
}

// ListOptions configures event listing.
type ListOptions struct {
	// Limit is the maximum number of events to return.
	Limit int

	// Types filters to these event types. Wildcards such as "health.*" are
	// allowed.
	Types []string

	// Project filters to events of this project.
	Project string

	// Since filters to events after this time.
	Since time.Time

	// Until filters to events before this time.
	Until time.Time
}

// List returns recorded events, oldest first. Process output is not
// recorded; use [ProjectClient.Output] for it.
func (e *EventClient) List(ctx context.Context, opts *ListOptions) ([]Event, error) {
	path := "/api/v1/events"

	if opts != nil {
		params := url.Values{}
		if opts.Limit > 0 {
			params.Set("limit", fmt.Sprintf("%d", opts.Limit))
		}
		for _, t := range opts.Types {
			params.Add("type", t)
		}
		if opts.Project != "" {
			params.Set("project", opts.Project)
		}
		if !opts.Since.IsZero() {
			params.Set("since", opts.Since.Format(time.RFC3339))
		}
		if !opts.Until.IsZero() {
			params.Set("until", opts.Until.Format(time.RFC3339))
		}
		if len(params) > 0 {
			path += "?" + params.Encode()
		}
	}

	var events []Event
	if err := e.c.getInto(ctx, path, "events", &events); err != nil {
		return nil, err
	}
	return events, nil
}

// StreamOptions selects which live events to receive.
type StreamOptions struct {
	// Pattern is an event type pattern such as "process.*". Empty means all.
	Pattern string

	// Project restricts the stream to one project.
	Project string
}

// Stream follows live events until ctx is cancelled, the server closes the
// connection or fn returns an error. Cancelling ctx returns nil.
func (e *EventClient) Stream(ctx context.Context, opts StreamOptions, fn func(Event) error) error {
	u, err := url.Parse(e.c.baseURL + "/api/v1/events/ws")
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	params := url.Values{}
	if opts.Pattern != "" {
		params.Set("pattern", opts.Pattern)
	}
	if opts.Project != "" {
		params.Set("project", opts.Project)
	}
	u.RawQuery = params.Encode()

	header := http.Header{}
	header.Set(VersionHeader, e.c.version)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if t, ok := e.c.httpClient.Transport.(*http.Transport); ok && t != nil {
		dialer.TLSClientConfig = t.TLSClientConfig
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("connect event stream: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop when ctx ends
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
