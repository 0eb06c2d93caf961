// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultProbeTimeout bounds a single ffprobe call
const DefaultProbeTimeout = 30 * time.Second

// ProbeResult is the source duration, or the reason it is unknown
type ProbeResult struct {
	Seconds   float64 `json:"seconds,omitempty"`
	Available bool    `json:"available"`
	Reason    string  `json:"reason,omitempty"`
}

// Unavailable returns a result without duration
func Unavailable(reason string) ProbeResult {
	return ProbeResult{Reason: reason}
}

// Prober determines the duration of a media file. It never fails; every
// problem degrades to an unavailable result.
type Prober interface {
	Probe(ctx context.Context, path string) ProbeResult
}

type runFunc func(ctx context.Context, binary string, args ...string) ([]byte, error)

type prober struct {
	builder *Builder
	timeout time.Duration
	run     runFunc
}

// NewProber creates a Prober running the builder's probe command
func NewProber(b *Builder, timeout time.Duration) Prober {
	return newProber(b, timeout, runOutput)
}

func newProber(b *Builder, timeout time.Duration, run runFunc) *prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &prober{builder: b, timeout: timeout, run: run}
}

func (p *prober) Probe(ctx context.Context, path string) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := p.builder.ProbeCommand(path)
	out, err := p.run(ctx, cmd.Binary, cmd.Args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Unavailable(fmt.Sprintf("%s timed out after %s", cmd.Binary, p.timeout))
		}
		return Unavailable(err.Error())
	}

	seconds, err := parseDuration(out)
	if err != nil {
		return Unavailable(err.Error())
	}
	return ProbeResult{Seconds: seconds, Available: true}
}

// runOutput returns stdout only; stderr ends up in the error
func runOutput(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if stderr := strings.TrimSpace(string(exitErr.Stderr)); stderr != "" {
				return nil, fmt.Errorf("%s: %w: %s", binary, err, stderr)
			}
		}
		return nil, fmt.Errorf("%s: %w", binary, err)
	}
	return out, nil
}

func parseDuration(out []byte) (float64, error) {
	s := strings.TrimSpace(string(out))
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if s == "N/A" {
		return 0, errors.New("duration not available")
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed duration %q", s)
	}
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
