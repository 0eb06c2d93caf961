// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package converter

import (
	"errors"

	"github.com/ZSC714725/videoconverter/internal/ffmpeg"
)

var (
	// ErrInvalidRequest is returned by Submit for malformed requests
	ErrInvalidRequest = ffmpeg.ErrInvalidRequest
	ErrBusy           = errors.New("a conversion is already in progress")
	ErrNotRunning     = errors.New("no conversion is running")
	ErrClosed         = errors.New("converter closed")
)
