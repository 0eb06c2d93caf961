// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/videoconverter/internal/converter"
	"github.com/ZSC714725/videoconverter/internal/ffmpeg"
	"github.com/ZSC714725/videoconverter/internal/ffmpeg/parse"
	"github.com/ZSC714725/videoconverter/internal/logger"
)

func TestConvertOptionsRequest(t *testing.T) {
	opts := convertOptions{resolution: "854x480", container: "MKV"}

	req, err := opts.request("/videos/clip.mov")
	require.NoError(t, err)
	assert.Equal(t, ffmpeg.Request{
		Input:      "/videos/clip.mov",
		Resolution: ffmpeg.Resolution{Width: 854, Height: 480},
		Container:  ffmpeg.ContainerMKV,
		BaseName:   "clip_converted",
	}, req)

	opts.name = "small"
	opts.outputDir = "/out"
	req, err = opts.request("/videos/clip.mov")
	require.NoError(t, err)
	assert.Equal(t, "/out/small.mkv", req.OutputPath())
}

func TestConvertOptionsRequestErrors(t *testing.T) {
	_, err := convertOptions{resolution: "huge", container: "mp4"}.request("/a.mov")
	assert.ErrorIs(t, err, ffmpeg.ErrInvalidRequest)

	_, err = convertOptions{resolution: "640x360", container: "flv"}.request("/a.mov")
	assert.ErrorIs(t, err, ffmpeg.ErrInvalidRequest)
}

func TestPlainView(t *testing.T) {
	var buf bytes.Buffer
	v := newView(&buf, false)
	require.False(t, v.tty)

	code := 1
	for _, ev := range []converter.Event{
		{Type: converter.EventState, State: converter.StateProbing},
		{Type: converter.EventProgress, Indeterminate: true},
		{Type: converter.EventLog, Line: "Starting FFmpeg with arguments:"},
		{Type: converter.EventProgress, Percent: 50},
		{Type: converter.EventOutcome, Outcome: &converter.Outcome{
			State:    converter.StateFailed,
			Reason:   "FFmpeg exited with code 1",
			ExitCode: &code,
			Elapsed:  1500 * time.Millisecond,
		}},
	} {
		v.handle(ev)
	}

	assert.Equal(t, []string{
		"state: probing",
		"Starting FFmpeg with arguments:",
		"progress: 50%",
		"failed in 1.5s: FFmpeg exited with code 1",
	}, strings.Split(strings.TrimSpace(buf.String()), "\n"))
}

func TestOutcomeErr(t *testing.T) {
	assert.EqualError(t, outcomeErr(&converter.Outcome{State: converter.StateCancelled}), "conversion cancelled")
	assert.EqualError(t, outcomeErr(&converter.Outcome{State: converter.StateFailed, Reason: "boom"}), "conversion failed: boom")
}

func TestCommandContextLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ffmpeg:\n  path: /opt/ffmpeg\nlog:\n  level: debug\n"), 0o644))

	ctx := &commandContext{configPath: path, ffprobeBin: "/usr/local/bin/ffprobe", logLevel: "error"}
	cfg, err := ctx.load()
	require.NoError(t, err)

	assert.Equal(t, "/opt/ffmpeg", cfg.FFmpeg.Path)
	assert.Equal(t, "/usr/local/bin/ffprobe", cfg.FFprobe.Path)
	assert.Equal(t, "error", cfg.Log.Level)

	again, err := ctx.load()
	require.NoError(t, err)
	assert.Same(t, cfg, again)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "convert")
}

type cancelRecorder struct {
	errs    []error
	cancels int
}

func (c *cancelRecorder) Submit(req ffmpeg.Request) error { return nil }
func (c *cancelRecorder) Snapshot() converter.Snapshot    { return converter.Snapshot{} }
func (c *cancelRecorder) Log() []parse.Line               { return nil }
func (c *cancelRecorder) Close() error                    { return nil }

func (c *cancelRecorder) Cancel() error {
	c.cancels++
	if len(c.errs) == 0 {
		return nil
	}
	err := c.errs[0]
	c.errs = c.errs[1:]
	return err
}

func TestInterruptWhileRunning(t *testing.T) {
	conv := &cancelRecorder{}
	intr := &interrupts{conv: conv, log: logger.Nop()}

	assert.False(t, intr.press())
	assert.Equal(t, 1, conv.cancels)

	intr.observe(converter.Event{Type: converter.EventState, State: converter.StateRunning})
	assert.Equal(t, 1, conv.cancels)

	assert.True(t, intr.press())
	assert.Equal(t, 1, conv.cancels)
}

func TestInterruptWhileProbingIsHeld(t *testing.T) {
	conv := &cancelRecorder{errs: []error{converter.ErrNotRunning}}
	intr := &interrupts{conv: conv, log: logger.Nop()}

	assert.False(t, intr.press())
	assert.Equal(t, 1, conv.cancels)

	intr.observe(converter.Event{Type: converter.EventLog, Line: "[ffprobe] Unable to determine duration: timeout"})
	assert.Equal(t, 1, conv.cancels)

	intr.observe(converter.Event{Type: converter.EventState, State: converter.StateRunning})
	assert.Equal(t, 2, conv.cancels)

	intr.observe(converter.Event{Type: converter.EventState, State: converter.StateRunning})
	assert.Equal(t, 2, conv.cancels)
}

func TestInterruptAfterClose(t *testing.T) {
	conv := &cancelRecorder{errs: []error{converter.ErrClosed}}
	intr := &interrupts{conv: conv, log: logger.Nop()}

	assert.False(t, intr.press())
	intr.observe(converter.Event{Type: converter.EventState, State: converter.StateRunning})
	assert.Equal(t, 1, conv.cancels)
}

func TestTerminalViewProgressBar(t *testing.T) {
	var buf bytes.Buffer
	v := newView(&buf, false)
	v.tty = true

	v.handle(converter.Event{Type: converter.EventState, State: converter.StateRunning})
	v.handle(converter.Event{Type: converter.EventProgress, Percent: 0})
	require.NotNil(t, v.bar)
	assert.False(t, v.spinner)
	assert.Equal(t, 100, v.bar.GetMax())

	v.handle(converter.Event{Type: converter.EventLog, Line: "frame=  10 time=00:00:01.00"})
	v.handle(converter.Event{Type: converter.EventProgress, Percent: 50})

	v.handle(converter.Event{Type: converter.EventOutcome, Outcome: &converter.Outcome{
		State:   converter.StateSucceeded,
		Elapsed: 2 * time.Second,
	}})
	assert.Nil(t, v.bar)

	out := buf.String()
	assert.NotContains(t, out, "state: running")
	assert.NotContains(t, out, "frame=  10")
	assert.Contains(t, out, "succeeded in 2s")
}

func TestTerminalViewSpinner(t *testing.T) {
	var buf bytes.Buffer
	v := newView(&buf, true)
	v.tty = true

	v.handle(converter.Event{Type: converter.EventProgress, Indeterminate: true})
	require.NotNil(t, v.bar)
	assert.True(t, v.spinner)

	v.handle(converter.Event{Type: converter.EventLog, Line: "time=00:00:03.00"})
	v.handle(converter.Event{Type: converter.EventOutcome, Outcome: &converter.Outcome{
		State:  converter.StateCancelled,
		Reason: "cancelled by user",
	}})
	assert.Nil(t, v.bar)
	assert.False(t, v.spinner)

	out := buf.String()
	assert.Contains(t, out, "time=00:00:03.00")
	assert.Contains(t, out, "cancelled in 0s: cancelled by user")
}
