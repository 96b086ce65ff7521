// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNetstat(t *testing.T) {
	out := `
Active Connections

  Proto  Local Address          Foreign Address        State           PID
  TCP    0.0.0.0:135            0.0.0.0:0              LISTENING       912
  TCP    0.0.0.0:3000           0.0.0.0:0              LISTENING       4242
  TCP    127.0.0.1:30000        0.0.0.0:0              LISTENING       77
  TCP    127.0.0.1:52000        127.0.0.1:3000         ESTABLISHED     5000
`
	assert.Equal(t, 4242, parseNetstat(out, 3000))
	assert.Equal(t, 77, parseNetstat(out, 30000))
	assert.Equal(t, 0, parseNetstat(out, 8080))
}
