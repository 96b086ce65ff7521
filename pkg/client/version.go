// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

// API version constants.
//
// Launchpad uses date-based API versions. The client sends the version it
// was written against in the Launchpad-Version header so the server can keep
// older clients working after breaking changes.
const (
	// LatestVersion is the current API version.
	LatestVersion = "2026-10-01"

	// Version20261001 is the initial API version.
	Version20261001 = "2026-10-01"
)

// VersionHeader is the HTTP header used to specify the API version.
const VersionHeader = "Launchpad-Version"
