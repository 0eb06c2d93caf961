// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package parse

import (
	"container/ring"
	"sync"
	"time"
)

// Line is a timestamped log line
type Line struct {
	Timestamp time.Time `json:"timestamp"`
	Data      string    `json:"data"`
}

// Log keeps the most recent lines of a conversion
type Log struct {
	lines int
	ring  *ring.Ring
	lock  sync.RWMutex
}

// NewLog creates a Log holding at most lines entries
func NewLog(lines int) *Log {
	if lines <= 0 {
		lines = 100
	}
	return &Log{lines: lines, ring: ring.New(lines)}
}

// Append stores a line, evicting the oldest one when full
func (l *Log) Append(data string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.ring.Value = Line{Timestamp: time.Now(), Data: data}
	l.ring = l.ring.Next()
}

// Reset drops all lines
func (l *Log) Reset() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.ring = ring.New(l.lines)
}

// Lines returns the stored lines, oldest first
func (l *Log) Lines() []Line {
	var out []Line
	l.lock.RLock()
	l.ring.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(Line))
		}
	})
	l.lock.RUnlock()
	return out
}
