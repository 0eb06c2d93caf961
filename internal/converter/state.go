// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package converter

import (
	"time"

	"github.com/ZSC714725/videoconverter/internal/ffmpeg"
)

// State of the conversion lifecycle
type State string

const (
	StateIdle      State = "idle"
	StateProbing   State = "probing"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether s ends a conversion
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Busy reports whether a conversion is in flight
func (s State) Busy() bool {
	return s == StateProbing || s == StateRunning
}

// Controls is the set of caller actions available in a state
type Controls struct {
	Submit bool `json:"submit"`
	Cancel bool `json:"cancel"`
	// Edit covers input selection, resolution, container and name
	Edit bool `json:"edit"`
}

// ControlsFor derives the available actions from the state alone
func ControlsFor(s State) Controls {
	switch s {
	case StateProbing:
		return Controls{}
	case StateRunning:
		return Controls{Cancel: true}
	default:
		return Controls{Submit: true, Edit: true}
	}
}

// Outcome is the record of a finished conversion. ExitCode is nil when
// the transcoder never ran.
type Outcome struct {
	ID         string        `json:"id"`
	State      State         `json:"state"`
	Reason     string        `json:"reason,omitempty"`
	ExitCode   *int          `json:"exit_code,omitempty"`
	OutputPath string        `json:"output_path"`
	Started    time.Time     `json:"started"`
	Finished   time.Time     `json:"finished"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Snapshot is a point in time view of the converter
type Snapshot struct {
	ID            string              `json:"id,omitempty"`
	State         State               `json:"state"`
	Reason        string              `json:"reason,omitempty"`
	Progress      int                 `json:"progress"`
	Indeterminate bool                `json:"indeterminate"`
	Controls      Controls            `json:"controls"`
	Request       *ffmpeg.Request     `json:"request,omitempty"`
	Command       *ffmpeg.Command     `json:"command,omitempty"`
	Duration      *ffmpeg.ProbeResult `json:"duration,omitempty"`
	Started       time.Time           `json:"started"`
	PID           int                 `json:"pid,omitempty"`
	CPU           float64             `json:"cpu_usage"`
	Memory        uint64              `json:"memory_bytes"`
	Outcome       *Outcome            `json:"outcome,omitempty"`
}
