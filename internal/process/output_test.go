// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputBuffer_Wraps(t *testing.T) {
	b := NewOutputBuffer(3)
	for i := 1; i <= 5; i++ {
		b.Write("stdout", fmt.Sprintf("l%d", i))
	}

	assert.Equal(t, 3, b.Size())
	lines := b.Lines(10)
	require.Len(t, lines, 3)
	assert.Equal(t, "l3", lines[0].Line)
	assert.Equal(t, int64(3), lines[0].Sequence)
	assert.Equal(t, "l5", lines[2].Line)
	assert.Equal(t, []string{"l4", "l5"}, b.Text(2))
}

func TestOutputBuffer_Empty(t *testing.T) {
	b := NewOutputBuffer(0)
	assert.Empty(t, b.Lines(5))
	assert.Empty(t, b.Lines(0))

	b.Write("stderr", "x")
	b.Clear()
	assert.Equal(t, 0, b.Size())
	entry := b.Write("stderr", "y")
	assert.Equal(t, int64(2), entry.Sequence)
}
