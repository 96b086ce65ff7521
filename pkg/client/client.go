// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client provides a Go client library for the Launchpad API.
//
// Launchpad launches and supervises multi-task development projects. This
// package gives typed access to every API endpoint: launching and stopping
// projects, controlling single tasks, reading health and performance data,
// and following the live event stream.
//
// # Getting Started
//
//	c := client.New("http://127.0.0.1:4477")
//
//	// List projects and their state
//	projects, err := c.Projects.List(ctx)
//
//	// Launch a project in the dev environment
//	result, err := c.Projects.Launch(ctx, "web", "dev")
//	if len(result.Conflicts) > 0 {
//	    // Another process holds a port; confirm to kill it
//	    result, err = c.Projects.ConfirmLaunch(ctx, "web", "dev", result.Conflicts)
//	}
//
// # Error Handling
//
// API errors are returned as *APIError values carrying the server's error
// code:
//
//	_, err := c.Projects.Get(ctx, "unknown")
//	var apiErr *client.APIError
//	if errors.As(err, &apiErr) && apiErr.Code == client.CodeNotFound {
//	    ...
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a Launchpad API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client

	// Projects launches, stops and inspects projects and their tasks.
	Projects *ProjectClient

	// Processes acts on arbitrary processes by PID.
	Processes *ProcessClient

	// Health reads health monitor state.
	Health *HealthClient

	// Performance reads CPU and memory samples.
	Performance *PerformanceClient

	// Tunnel recognizes tunnel agent commands.
	Tunnel *TunnelClient

	// Events reads the event history and follows the live stream.
	Events *EventClient

	// Notify raises desktop notifications.
	Notify *NotifyClient
}

// Option configures a [Client].
type Option func(*Client)

// New creates a client for the server at baseURL (e.g.
// "http://127.0.0.1:4477"). A trailing slash is removed. By default requests
// use [LatestVersion] and a 30 second timeout.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		version: LatestVersion,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Projects = &ProjectClient{c: c}
	c.Processes = &ProcessClient{c: c}
	c.Health = &HealthClient{c: c}
	c.Performance = &PerformanceClient{c: c}
	c.Tunnel = &TunnelClient{c: c}
	c.Events = &EventClient{c: c}
	c.Notify = &NotifyClient{c: c}

	return c
}

// WithVersion pins the API version sent with every request.
func WithVersion(v string) Option {
	return func(c *Client) {
		c.version = v
	}
}

// WithHTTPClient sets a custom HTTP client for making requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout for all requests. Launches wait
// for port checks and settle delays, so very short timeouts can cut them off.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Version returns the API version being used.
func (c *Client) Version() string {
	return c.version
}

// BaseURL returns the base URL of the API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Error codes returned by the server.
const (
	CodeNotFound      = "NOT_FOUND"
	CodeBadRequest    = "BAD_REQUEST"
	CodeConflict      = "CONFLICT"
	CodeInternalError = "INTERNAL_ERROR"
	CodeProjectError  = "PROJECT_ERROR"
)

// apiResponse is the standard API response envelope.
type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// APIError is an error response from the Launchpad API.
type APIError struct {
	// Code is a machine-readable error code such as [CodeNotFound].
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details contains additional error information, if available.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data))
}

func (c *Client) delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// getInto performs a GET and decodes the data field into v.
func (c *Client) getInto(ctx context.Context, path, what string, v interface{}) error {
	data, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	return decode(data, what, v)
}

func decode(data json.RawMessage, what string, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", what, err)
	}
	return nil
}

// do performs an HTTP request and parses the response.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(VersionHeader, c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// parseResponse reads and parses an API response.
func (c *Client) parseResponse(resp *http.Response) (json.RawMessage, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	}

	if apiResp.Error != nil {
		return nil, apiResp.Error
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return apiResp.Data, nil
}
