// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package ffmpeg

import (
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/ZSC714725/videoconverter/internal/ffmpeg/skills"
	"github.com/ZSC714725/videoconverter/internal/logger"
)

// FFmpeg bundles the resolved binaries with their command builder,
// duration prober and detected skills
type FFmpeg interface {
	Builder() *Builder
	Prober() Prober
	Skills() skills.Skills
	ReloadSkills() error
	// Missing lists required encoders/muxers the binary lacks
	Missing() []string
}

// Config for FFmpeg
type Config struct {
	Binary         string
	ProbeBinary    string
	ProbeTimeout   time.Duration
	ValidatorInput Validator
	Logger         logger.Logger
}

type ffmpeg struct {
	binary     string
	builder    *Builder
	prober     Prober
	logger     logger.Logger
	skills     skills.Skills
	skillsLock sync.RWMutex
}

// muxers maps containers to the ffmpeg muxer writing them
var muxers = map[Container]string{
	ContainerMP4:  "mp4",
	ContainerMKV:  "matroska",
	ContainerMOV:  "mov",
	ContainerAVI:  "avi",
	ContainerWebM: "webm",
}

// New creates FFmpeg. Binaries that can't be found on PATH are kept as
// given: a missing transcoder is reported when a conversion is spawned
// and a missing prober only disables percentage progress.
func New(config Config) (FFmpeg, error) {
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}

	f := &ffmpeg{
		binary: lookPath(log, config.Binary, "ffmpeg"),
		logger: log,
	}
	probeBinary := lookPath(log, config.ProbeBinary, "ffprobe")

	if config.ValidatorInput == nil {
		v, err := NewValidator(nil, nil)
		if err != nil {
			return nil, err
		}
		config.ValidatorInput = v
	}

	f.builder = NewBuilder(f.binary, probeBinary, config.ValidatorInput)
	f.prober = NewProber(f.builder, config.ProbeTimeout)

	if err := f.ReloadSkills(); err != nil {
		log.Error("ffmpeg skills: %v", err)
	}

	return f, nil
}

func lookPath(log logger.Logger, binary, fallback string) string {
	if binary == "" {
		binary = fallback
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		log.Error("%s not found: %v", binary, err)
		return binary
	}
	return resolved
}

func (f *ffmpeg) Builder() *Builder {
	return f.builder
}

func (f *ffmpeg) Prober() Prober {
	return f.prober
}

func (f *ffmpeg) Skills() skills.Skills {
	f.skillsLock.RLock()
	defer f.skillsLock.RUnlock()
	return f.skills
}

func (f *ffmpeg) ReloadSkills() error {
	s, err := skills.New(f.binary)
	if err != nil {
		return fmt.Errorf("reload skills: %w", err)
	}
	f.skillsLock.Lock()
	f.skills = s
	f.skillsLock.Unlock()
	f.logger.Info("ffmpeg %s: %d encoders, %d muxers", s.FFmpeg.Version, len(s.Encoders), len(s.Muxers))
	return nil
}

func (f *ffmpeg) Missing() []string {
	return missing(f.Skills())
}

func missing(s skills.Skills) []string {
	var out []string
	for _, enc := range []string{VideoCodec, AudioCodec} {
		if !s.HasEncoder(enc) {
			out = append(out, "encoder "+enc)
		}
	}
	for _, c := range Containers {
		if !s.HasMuxer(muxers[c]) {
			out = append(out, "muxer "+muxers[c])
		}
	}
	return out
}
