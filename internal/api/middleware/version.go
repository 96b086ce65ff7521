// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"context"
	"net/http"
)

// APIVersion is the current date-based API version.
const APIVersion = "2026-10-01"

// VersionHeader carries the API version a client expects.
const VersionHeader = "Launchpad-Version"

type versionKey struct{}

// Version stores the requested API version in the request context and
// echoes the version being served. Requests without the header get
// APIVersion.
func Version(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := r.Header.Get(VersionHeader)
		if v == "" {
			v = APIVersion
		}
		w.Header().Set(VersionHeader, APIVersion)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), versionKey{}, v)))
	})
}

// VersionFromContext returns the API version requested by the client.
func VersionFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(versionKey{}).(string); ok && v != "" {
		return v
	}
	return APIVersion
}
