// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package ffmpeg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fakeRun(out string, err error) runFunc {
	return func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		return []byte(out), err
	}
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name      string
		out       string
		err       error
		available bool
		seconds   float64
	}{
		{"duration", "123.456000\n", nil, true, 123.456},
		{"not available", "N/A\n", nil, false, 0},
		{"empty", "", nil, false, 0},
		{"malformed", "Duration: 00:01:00\n", nil, false, 0},
		{"zero", "0.000000", nil, false, 0},
		{"negative", "-3", nil, false, 0},
		{"nan", "NaN", nil, false, 0},
		{"tool failed", "", errors.New("ffprobe: exit status 1: No such file"), false, 0},
	}

	b := NewBuilder("ffmpeg", "ffprobe", nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProber(b, time.Second, fakeRun(tt.out, tt.err))
			res := p.Probe(context.Background(), "in.mp4")

			assert.Equal(t, tt.available, res.Available)
			assert.InDelta(t, tt.seconds, res.Seconds, 1e-9)
			if !tt.available {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestProbeRunsProbeCommand(t *testing.T) {
	var gotBinary string
	var gotArgs []string
	run := func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		gotBinary, gotArgs = binary, args
		return []byte("10\n"), nil
	}

	b := NewBuilder("ffmpeg", "my-ffprobe", nil)
	res := newProber(b, time.Second, run).Probe(context.Background(), "in.mp4")

	assert.True(t, res.Available)
	assert.Equal(t, "my-ffprobe", gotBinary)
	assert.Equal(t, b.ProbeCommand("in.mp4").Args, gotArgs)
}

func TestProbeTimeout(t *testing.T) {
	run := func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	b := NewBuilder("ffmpeg", "ffprobe", nil)
	res := newProber(b, 20*time.Millisecond, run).Probe(context.Background(), "in.mp4")

	assert.False(t, res.Available)
	assert.Contains(t, res.Reason, "timed out")
}

func TestProbeMissingBinary(t *testing.T) {
	b := NewBuilder("ffmpeg", "definitely-not-an-ffprobe-binary", nil)
	res := NewProber(b, time.Second).Probe(context.Background(), "in.mp4")

	assert.False(t, res.Available)
	assert.Contains(t, res.Reason, "definitely-not-an-ffprobe-binary")
}
