// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func lineData(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Data
	}
	return out
}

func TestLogKeepsMostRecent(t *testing.T) {
	l := NewLog(3)
	assert.Empty(t, l.Lines())

	l.Append("a")
	l.Append("b")
	assert.Equal(t, []string{"a", "b"}, lineData(l.Lines()))

	l.Append("c")
	l.Append("d")
	assert.Equal(t, []string{"b", "c", "d"}, lineData(l.Lines()))
}

func TestLogReset(t *testing.T) {
	l := NewLog(0)
	l.Append("a")

	l.Reset()
	assert.Empty(t, l.Lines())

	l.Append("b")
	assert.Equal(t, []string{"b"}, lineData(l.Lines()))
}
