// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"
)

// statusRecorder remembers what a handler sent so the access log can report
// it. It passes Hijack and Flush through for the websocket and streaming
// endpoints.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
	hijacked    bool
}

func (rec *statusRecorder) WriteHeader(status int) {
	if rec.wroteHeader {
		return
	}
	rec.status = status
	rec.wroteHeader = true
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if !rec.wroteHeader {
		rec.WriteHeader(http.StatusOK)
	}
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += n
	return n, err
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	conn, rw, err := hj.Hijack()
	if err == nil {
		rec.hijacked = true
		rec.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// Logging writes one access log line per request once the handler returns.
// Websocket connections are logged when they close.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Print(accessLine(r, rec, time.Since(start)))
	})
}

func accessLine(r *http.Request, rec *statusRecorder, elapsed time.Duration) string {
	elapsed = elapsed.Round(time.Microsecond)
	if rec.hijacked {
		return fmt.Sprintf("api %s %s websocket closed after %s", r.Method, r.URL.Path, elapsed)
	}
	line := fmt.Sprintf("api %s %s -> %d %dB %s", r.Method, r.URL.Path, rec.status, rec.bytes, elapsed)
	if v := r.Header.Get(VersionHeader); v != "" && v != APIVersion {
		line += " version=" + v
	}
	return line
}
