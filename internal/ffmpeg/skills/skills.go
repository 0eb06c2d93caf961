// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Encoder is one entry of `ffmpeg -encoders`
type Encoder struct {
	Id   string
	Kind string // video, audio, subtitle
	Name string
}

// Muxer is one entry of `ffmpeg -muxers`
type Muxer struct {
	Id   string
	Name string
}

// Library represents a linked av library
type Library struct {
	Name     string
	Compiled string
	Linked   string
}

type ffmpegInfo struct {
	Version       string
	Compiler      string
	Configuration string
	Libraries     []Library
}

// Skills are the detected capabilities of FFmpeg
type Skills struct {
	FFmpeg   ffmpegInfo
	Encoders []Encoder
	Muxers   []Muxer
}

// HasEncoder reports whether an encoder with the given id exists
func (s Skills) HasEncoder(id string) bool {
	for _, e := range s.Encoders {
		if e.Id == id {
			return true
		}
	}
	return false
}

// HasMuxer reports whether a muxer with the given id exists
func (s Skills) HasMuxer(id string) bool {
	for _, m := range s.Muxers {
		if m.Id == id {
			return true
		}
	}
	return false
}

// New returns all skills that FFmpeg provides
func New(binary string) (Skills, error) {
	c := Skills{}

	ff, err := getVersion(binary)
	if ff.Version == "" || err != nil {
		if err != nil {
			return Skills{}, fmt.Errorf("can't parse ffmpeg version: %w", err)
		}
		return Skills{}, fmt.Errorf("can't parse ffmpeg version")
	}
	c.FFmpeg = ff

	c.Encoders = parseEncoders(output(binary, "-encoders"))
	c.Muxers = parseMuxers(output(binary, "-muxers"))

	return c, nil
}

func output(binary string, arg string) []byte {
	cmd := exec.Command(binary, "-hide_banner", arg)
	cmd.Env = []string{}
	stdout, _ := cmd.Output()
	return stdout
}

func getVersion(binary string) (ffmpegInfo, error) {
	cmd := exec.Command(binary, "-version")
	cmd.Env = []string{}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return ffmpegInfo{}, err
	}
	return parseVersion(out), nil
}

var (
	reVersion       = regexp.MustCompile(`^ffmpeg version ([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reCompiler      = regexp.MustCompile(`(?m)^\s*built with (.*)$`)
	reConfiguration = regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	reLibrary       = regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)
	reEncoder       = regexp.MustCompile(`^\s([VAS])[F.][S.][X.][B.][D.] ([0-9A-Za-z_\-]+)\s+(.*)$`)
	reMuxer         = regexp.MustCompile(`^\s[D ]?E\s+([0-9A-Za-z_,]+)\s+(.*)$`)
)

func parseVersion(data []byte) ffmpegInfo {
	f := ffmpegInfo{}

	if m := reVersion.FindSubmatch(data); m != nil {
		f.Version = string(m[1])
		if len(m[2]) == 0 {
			f.Version += ".0"
		}
	}
	if m := reCompiler.FindSubmatch(data); m != nil {
		f.Compiler = string(m[1])
	}
	if m := reConfiguration.FindSubmatch(data); m != nil {
		f.Configuration = string(m[1])
	}
	for _, m := range reLibrary.FindAllSubmatch(data, -1) {
		f.Libraries = append(f.Libraries, Library{
			Name:     string(m[1]),
			Compiled: string(m[2]),
			Linked:   string(m[3]),
		})
	}
	return f
}

func parseEncoders(data []byte) []Encoder {
	var encoders []Encoder
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := reEncoder.FindStringSubmatch(scanner.Text())
		if m == nil || m[2] == "=" {
			continue
		}
		kind := "video"
		switch m[1] {
		case "A":
			kind = "audio"
		case "S":
			kind = "subtitle"
		}
		encoders = append(encoders, Encoder{Id: m[2], Kind: kind, Name: strings.TrimSpace(m[3])})
	}
	return encoders
}

func parseMuxers(data []byte) []Muxer {
	var muxers []Muxer
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := reMuxer.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		for _, id := range strings.Split(m[1], ",") {
			muxers = append(muxers, Muxer{Id: id, Name: strings.TrimSpace(m[2])})
		}
	}
	return muxers
}
