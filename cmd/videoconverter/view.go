// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/ZSC714725/videoconverter/internal/converter"
)

// view renders converter events on a terminal. On a TTY it draws a progress
// bar (a spinner while the duration is unknown); otherwise it prints one
// line per event.
type view struct {
	w       io.Writer
	tty     bool
	verbose bool
	bar     *progressbar.ProgressBar
	spinner bool
}

func newView(w io.Writer, verbose bool) *view {
	return &view{w: w, tty: isTerminal(w), verbose: verbose}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (v *view) handle(ev converter.Event) {
	switch ev.Type {
	case converter.EventLog:
		if v.bar != nil && v.spinner {
			v.bar.Add(1)
		}
		if v.verbose || !v.tty {
			v.print(ev.Line)
		}
	case converter.EventProgress:
		if !v.tty {
			if !ev.Indeterminate {
				v.print(fmt.Sprintf("progress: %d%%", ev.Percent))
			}
			return
		}
		if v.bar == nil {
			v.spinner = ev.Indeterminate
			v.bar = v.newBar(ev.Indeterminate)
		}
		if !ev.Indeterminate {
			v.bar.Set(ev.Percent)
		}
	case converter.EventState:
		if !v.tty {
			v.print("state: " + string(ev.State))
		}
	case converter.EventOutcome:
		if v.bar != nil {
			v.bar.Finish()
			v.bar = nil
			v.spinner = false
		}
		o := ev.Outcome
		msg := fmt.Sprintf("%s in %s", o.State, o.Elapsed.Round(time.Millisecond))
		if o.Reason != "" {
			msg += ": " + o.Reason
		}
		v.print(msg)
	}
}

func (v *view) print(line string) {
	if v.bar != nil {
		v.bar.Clear()
	}
	fmt.Fprintln(v.w, line)
}

func (v *view) newBar(indeterminate bool) *progressbar.ProgressBar {
	max := 100
	if indeterminate {
		max = -1
	}
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(v.w),
		progressbar.OptionSetDescription("Converting"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}
