// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"regexp"
	"strings"
)

// CrashReason categorizes why a task exited with an error.
type CrashReason string

const (
	CrashReasonPanic     CrashReason = "panic"
	CrashReasonException CrashReason = "exception"
	CrashReasonOOM       CrashReason = "oom"
	CrashReasonPortInUse CrashReason = "port_in_use"
	CrashReasonNotFound  CrashReason = "not_found"
	CrashReasonSignal    CrashReason = "signal"
	CrashReasonError     CrashReason = "error"
	CrashReasonUnknown   CrashReason = "unknown"
)

// CrashResult is the analysis of a crashed task's output.
type CrashResult struct {
	Reason   CrashReason `json:"reason"`
	Details  string      `json:"details,omitempty"`
	ExitCode int         `json:"exitCode"`
}

// Summary returns a human-readable summary of the crash.
func (r *CrashResult) Summary() string {
	summary := string(r.Reason)
	if r.Details != "" {
		summary += ": " + r.Details
	}
	return summary
}

// CrashAnalyzer inspects the tail of a task's output to explain a crash.
type CrashAnalyzer struct {
	panicRe     *regexp.Regexp
	exceptionRe *regexp.Regexp
	oomRe       *regexp.Regexp
	portRe      *regexp.Regexp
	notFoundRe  *regexp.Regexp
	errorRe     *regexp.Regexp
}

// NewCrashAnalyzer creates a crash analyzer.
func NewCrashAnalyzer() *CrashAnalyzer {
	return &CrashAnalyzer{
		panicRe:     regexp.MustCompile(`^(panic:|fatal error:)`),
		exceptionRe: regexp.MustCompile(`^(Traceback \(most recent call last\)|Uncaught |[A-Za-z]*Error: |Exception in thread)`),
		oomRe:       regexp.MustCompile(`(?i)(out of memory|heap out of memory|cannot allocate memory|MemoryError)`),
		portRe:      regexp.MustCompile(`(?i)(EADDRINUSE|address already in use|port \d+ is already in use)`),
		notFoundRe:  regexp.MustCompile(`(?i)(command not found|no such file or directory|cannot find module|ENOENT)`),
		errorRe:     regexp.MustCompile(`(?i)^(error|err!)[:\s]`),
	}
}

// Analyze classifies a crash from the output tail and exit code.
func (a *CrashAnalyzer) Analyze(lines []string, exitCode int) *CrashResult {
	result := &CrashResult{ExitCode: exitCode}

	// Most specific first: OOM and port errors often surface as panics or
	// exceptions too.
	checks := []struct {
		re     *regexp.Regexp
		reason CrashReason
	}{
		{a.oomRe, CrashReasonOOM},
		{a.portRe, CrashReasonPortInUse},
		{a.panicRe, CrashReasonPanic},
		{a.exceptionRe, CrashReasonException},
		{a.notFoundRe, CrashReasonNotFound},
		{a.errorRe, CrashReasonError},
	}
	for _, c := range checks {
		if line, ok := firstMatch(c.re, lines); ok {
			result.Reason = c.reason
			result.Details = line
			return result
		}
	}

	switch {
	case exitCode == 127:
		result.Reason = CrashReasonNotFound
	case exitCode > 128:
		result.Reason = CrashReasonSignal
		result.Details = signalName(exitCode - 128)
		return result
	case exitCode > 0:
		result.Reason = CrashReasonError
	default:
		result.Reason = CrashReasonUnknown
	}

	// Last few non-empty lines as context
	var last []string
	for i := len(lines) - 1; i >= 0 && len(last) < 3; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			last = append([]string{l}, last...)
		}
	}
	result.Details = strings.Join(last, " | ")
	return result
}

func firstMatch(re *regexp.Regexp, lines []string) (string, bool) {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if re.MatchString(trimmed) {
			return trimmed, true
		}
	}
	return "", false
}

func signalName(num int) string {
	switch num {
	case 1:
		return "SIGHUP"
	case 2:
		return "SIGINT"
	case 3:
		return "SIGQUIT"
	case 6:
		return "SIGABRT"
	case 9:
		return "SIGKILL"
	case 11:
		return "SIGSEGV"
	case 15:
		return "SIGTERM"
	default:
		return "signal"
	}
}
