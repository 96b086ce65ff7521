// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProbeResult is the outcome of one health probe.
type ProbeResult struct {
	OK           bool
	StatusCode   int
	ResponseTime time.Duration
	Err          error
}

// Prober performs a single health probe.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) ProbeResult
}

// HTTPProber probes with an HTTP GET. Redirects are not followed: a 3xx
// answer already proves the server is up.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates an HTTP prober.
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Probe issues a GET with the given timeout. Status codes 200-399 are
// healthy; anything else, including transport errors, is a failure.
func (p *HTTPProber) Probe(ctx context.Context, url string, timeout time.Duration) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ProbeResult{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", "launchpad-health/1.0")

	resp, err := p.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return ProbeResult{ResponseTime: elapsed, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	result := ProbeResult{
		StatusCode:   resp.StatusCode,
		ResponseTime: elapsed,
		OK:           resp.StatusCode >= 200 && resp.StatusCode < 400,
	}
	if !result.OK {
		result.Err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return result
}
