// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package api

import (
	"github.com/ZSC714725/videoconverter/internal/ffmpeg"
)

// ConversionRequest for POST /conversion. Resolution ("1280x720") takes
// precedence over Width/Height.
type ConversionRequest struct {
	Input      string `json:"input" binding:"required"`
	Resolution string `json:"resolution"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Container  string `json:"container" binding:"required"`
	Name       string `json:"name"`
	OutputDir  string `json:"output_dir"`
}

// CommandRequest for PUT /conversion/command
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// Report is the recent transcoder log
type Report struct {
	CreatedAt int64       `json:"created_at"`
	Log       [][2]string `json:"log"`
}

// Presets lists what a caller can choose from
type Presets struct {
	Resolutions []ffmpeg.Preset `json:"resolutions"`
	Containers  []string        `json:"containers"`
}

// SkillsResponse for API
type SkillsResponse struct {
	Version       string        `json:"version"`
	Compiler      string        `json:"compiler"`
	Configuration string        `json:"configuration"`
	Encoders      []SkillsEntry `json:"encoders"`
	Muxers        []SkillsEntry `json:"muxers"`
	Missing       []string      `json:"missing"`
}

// SkillsEntry is an encoder or muxer
type SkillsEntry struct {
	ID   string `json:"id"`
	Kind string `json:"kind,omitempty"`
	Name string `json:"name"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
