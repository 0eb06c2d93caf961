// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/videoconverter/internal/ffmpeg/skills"
)

func TestMissing(t *testing.T) {
	s := skills.Skills{
		Encoders: []skills.Encoder{{Id: "libx264"}, {Id: "aac"}},
		Muxers:   []skills.Muxer{{Id: "mp4"}, {Id: "matroska"}, {Id: "mov"}, {Id: "avi"}, {Id: "webm"}},
	}
	assert.Empty(t, missing(s))

	s.Encoders = s.Encoders[:1]
	s.Muxers = s.Muxers[1:]
	assert.Equal(t, []string{"encoder aac", "muxer mp4"}, missing(s))
}

func TestNewToleratesMissingBinaries(t *testing.T) {
	f, err := New(Config{Binary: "definitely-not-an-ffmpeg-binary", ProbeBinary: "definitely-not-an-ffprobe-binary"})
	require.NoError(t, err)

	cmd, err := f.Builder().Build(validRequest())
	require.NoError(t, err)
	assert.Equal(t, "definitely-not-an-ffmpeg-binary", cmd.Binary)
	assert.Equal(t, "definitely-not-an-ffprobe-binary", f.Builder().ProbeCommand("x").Binary)
	assert.NotEmpty(t, f.Missing())
	assert.Error(t, f.ReloadSkills())
}
