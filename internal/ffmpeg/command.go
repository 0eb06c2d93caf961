// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// 固定编码参数，所有容器共用同一套
const (
	VideoCodec   = "libx264"
	VideoPreset  = "fast"
	VideoCRF     = "23"
	AudioCodec   = "aac"
	AudioBitrate = "192k"
)

// Container is the output file format
type Container string

const (
	ContainerMP4  Container = "mp4"
	ContainerMKV  Container = "mkv"
	ContainerMOV  Container = "mov"
	ContainerAVI  Container = "avi"
	ContainerWebM Container = "webm"
)

// Containers lists the supported output containers in display order
var Containers = []Container{ContainerMP4, ContainerMKV, ContainerMOV, ContainerAVI, ContainerWebM}

// Valid reports whether c is one of Containers
func (c Container) Valid() bool {
	for _, x := range Containers {
		if c == x {
			return true
		}
	}
	return false
}

// ParseContainer accepts a container name in any case
func ParseContainer(s string) (Container, error) {
	c := Container(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown container %q", ErrInvalidRequest, s)
	}
	return c, nil
}

// Resolution is the target frame size
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string {
	return strconv.Itoa(r.Width) + "x" + strconv.Itoa(r.Height)
}

// ParseResolution parses "WIDTHxHEIGHT". A trailing label as in
// "1280x720 (HD)" is ignored.
func ParseResolution(s string) (Resolution, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, " ("); i >= 0 {
		s = s[:i]
	}
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return Resolution{}, fmt.Errorf("%w: resolution %q is not WIDTHxHEIGHT", ErrInvalidRequest, s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: resolution width %q: %v", ErrInvalidRequest, w, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: resolution height %q: %v", ErrInvalidRequest, h, err)
	}
	return Resolution{Width: width, Height: height}, nil
}

// Preset is a named resolution offered to callers
type Preset struct {
	Label      string     `json:"label"`
	Resolution Resolution `json:"resolution"`
}

// Presets are the resolutions offered by default
var Presets = []Preset{
	{Label: "Full HD", Resolution: Resolution{1920, 1080}},
	{Label: "HD", Resolution: Resolution{1280, 720}},
	{Label: "SD", Resolution: Resolution{854, 480}},
	{Label: "Low", Resolution: Resolution{640, 360}},
	{Label: "Very Low", Resolution: Resolution{426, 240}},
}

// Request describes one conversion. OutputDir defaults to the directory
// of Input.
type Request struct {
	Input      string     `json:"input"`
	Resolution Resolution `json:"resolution"`
	Container  Container  `json:"container"`
	BaseName   string     `json:"base_name"`
	OutputDir  string     `json:"output_dir,omitempty"`
}

// OutputPath is {dir}/{base}.{container}
func (r Request) OutputPath() string {
	dir := r.OutputDir
	if dir == "" {
		dir = filepath.Dir(r.Input)
	}
	return filepath.Join(dir, r.BaseName+"."+string(r.Container))
}

// DefaultBaseName suggests an output base name for input
func DefaultBaseName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_converted"
}

// Command is a resolved executable plus its arguments. Output is empty
// for probe commands.
type Command struct {
	Binary string   `json:"binary"`
	Args   []string `json:"args"`
	Output string   `json:"output,omitempty"`
}

// String renders the command line, quoting arguments containing spaces
func (c Command) String() string {
	var b strings.Builder
	b.WriteString(c.Binary)
	for _, a := range c.Args {
		b.WriteByte(' ')
		if strings.ContainsAny(a, " \t") {
			b.WriteString(`"` + a + `"`)
		} else {
			b.WriteString(a)
		}
	}
	return b.String()
}

// Builder maps requests to transcoder and probe invocations. It does no I/O
// beyond resolving relative paths against the working directory.
type Builder struct {
	binary      string
	probeBinary string
	input       Validator
}

// NewBuilder creates a Builder. A nil validator accepts every input path.
func NewBuilder(binary, probeBinary string, input Validator) *Builder {
	if binary == "" {
		binary = "ffmpeg"
	}
	if probeBinary == "" {
		probeBinary = "ffprobe"
	}
	if input == nil {
		input, _ = NewValidator(nil, nil)
	}
	return &Builder{binary: binary, probeBinary: probeBinary, input: input}
}

// Validate checks req without building anything
func (b *Builder) Validate(req Request) error {
	if strings.TrimSpace(req.Input) == "" {
		return fmt.Errorf("%w: input path is empty", ErrInvalidRequest)
	}
	if err := b.input.Check(req.Input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Resolution.Width <= 0 || req.Resolution.Height <= 0 {
		return fmt.Errorf("%w: resolution %s must be positive", ErrInvalidRequest, req.Resolution)
	}
	if !req.Container.Valid() {
		return fmt.Errorf("%w: unknown container %q", ErrInvalidRequest, req.Container)
	}
	if strings.TrimSpace(req.BaseName) == "" {
		return fmt.Errorf("%w: output name is empty", ErrInvalidRequest)
	}
	if strings.ContainsAny(req.BaseName, `/\`) {
		return fmt.Errorf("%w: output name %q contains a path separator", ErrInvalidRequest, req.BaseName)
	}
	if samePath(req.OutputPath(), req.Input) {
		return fmt.Errorf("%w: output path equals input path", ErrInvalidRequest)
	}
	return nil
}

// samePath compares absolute forms so a relative input and an absolute
// output directory naming the same file are caught
func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// Build returns the transcoder command for req
func (b *Builder) Build(req Request) (Command, error) {
	if err := b.Validate(req); err != nil {
		return Command{}, err
	}

	output := req.OutputPath()
	args := []string{
		"-y",
		"-i", req.Input,
		"-vf", "scale=" + req.Resolution.String(),
		"-c:v", VideoCodec,
		"-preset", VideoPreset,
		"-crf", VideoCRF,
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		output,
	}

	return Command{Binary: b.binary, Args: args, Output: output}, nil
}

// ProbeCommand returns the ffprobe invocation printing only the duration
func (b *Builder) ProbeCommand(path string) Command {
	return Command{
		Binary: b.probeBinary,
		Args: []string{
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=nokey=1:noprint_wrappers=1",
			path,
		},
	}
}
