// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// Logger provides a simple logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
	Named(name string) Logger
}

// Options for New
type Options struct {
	Level  string
	Output io.Writer
}

type hclogLogger struct {
	l hclog.Logger
}

// New returns a Logger named prefix writing to stderr at info level.
func New(prefix string) Logger {
	return NewWithOptions(prefix, Options{})
}

// NewWithOptions returns a Logger with an explicit level ("debug", "info",
// "error", ...) and writer. Unknown levels fall back to info.
func NewWithOptions(prefix string, opts Options) Logger {
	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return &hclogLogger{l: hclog.New(&hclog.LoggerOptions{
		Name:   prefix,
		Level:  level,
		Output: out,
	})}
}

func (l *hclogLogger) Info(format string, args ...interface{}) {
	l.l.Info(fmt.Sprintf(format, args...))
}

func (l *hclogLogger) Error(format string, args ...interface{}) {
	l.l.Error(fmt.Sprintf(format, args...))
}

func (l *hclogLogger) Debug(format string, args ...interface{}) {
	if !l.l.IsDebug() {
		return
	}
	l.l.Debug(fmt.Sprintf(format, args...))
}

func (l *hclogLogger) Named(name string) Logger {
	return &hclogLogger{l: l.l.Named(name)}
}

// Nop discards everything
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Info(format string, args ...interface{})  {}
func (nopLogger) Error(format string, args ...interface{}) {}
func (nopLogger) Debug(format string, args ...interface{}) {}
func (n nopLogger) Named(name string) Logger               { return n }
