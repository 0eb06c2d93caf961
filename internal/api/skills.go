// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package api

import (
	"github.com/ZSC714725/videoconverter/internal/ffmpeg/skills"
)

func skillsToAPI(s skills.Skills, missing []string) SkillsResponse {
	resp := SkillsResponse{
		Version:       s.FFmpeg.Version,
		Compiler:      s.FFmpeg.Compiler,
		Configuration: s.FFmpeg.Configuration,
		Encoders:      make([]SkillsEntry, len(s.Encoders)),
		Muxers:        make([]SkillsEntry, len(s.Muxers)),
		Missing:       missing,
	}
	if resp.Missing == nil {
		resp.Missing = []string{}
	}

	for i, e := range s.Encoders {
		resp.Encoders[i] = SkillsEntry{ID: e.Id, Kind: e.Kind, Name: e.Name}
	}
	for i, m := range s.Muxers {
		resp.Muxers[i] = SkillsEntry{ID: m.Id, Name: m.Name}
	}

	return resp
}
