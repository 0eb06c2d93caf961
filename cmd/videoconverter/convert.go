// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZSC714725/videoconverter/internal/converter"
	"github.com/ZSC714725/videoconverter/internal/ffmpeg"
	"github.com/ZSC714725/videoconverter/internal/logger"
	"github.com/ZSC714725/videoconverter/internal/process"
)

type convertOptions struct {
	resolution string
	container  string
	name       string
	outputDir  string
	verbose    bool
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	opts := convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert <input>",
		Short: "Convert one file and show its progress",
		Long: "Convert one file to the given resolution and container. " +
			"Ctrl-C cancels the conversion.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(args[0])
			if err != nil {
				return err
			}
			return convert(cmd.Context(), ctx, req, opts.verbose)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.resolution, "resolution", "r", "1280x720", "Output resolution WIDTHxHEIGHT")
	flags.StringVarP(&opts.container, "format", "f", string(ffmpeg.ContainerMP4), "Output container: mp4, mkv, mov, avi, webm")
	flags.StringVarP(&opts.name, "name", "n", "", "Output file name without extension (default <input>_converted)")
	flags.StringVarP(&opts.outputDir, "output-dir", "o", "", "Output directory (default: input's directory)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Print the FFmpeg log while converting")

	return cmd
}

func (o convertOptions) request(input string) (ffmpeg.Request, error) {
	res, err := ffmpeg.ParseResolution(o.resolution)
	if err != nil {
		return ffmpeg.Request{}, err
	}
	container, err := ffmpeg.ParseContainer(o.container)
	if err != nil {
		return ffmpeg.Request{}, err
	}
	name := o.name
	if name == "" {
		name = ffmpeg.DefaultBaseName(input)
	}
	return ffmpeg.Request{
		Input:      input,
		Resolution: res,
		Container:  container,
		BaseName:   name,
		OutputDir:  o.outputDir,
	}, nil
}

func convert(parent context.Context, ctx *commandContext, req ffmpeg.Request, verbose bool) error {
	log := ctx.logger()

	ff, err := ctx.ffmpeg(log)
	if err != nil {
		return err
	}

	events := make(chan converter.Event, 256)
	stopped := make(chan struct{})
	conv, err := converter.New(converter.Config{
		Builder:    ff.Builder(),
		Prober:     ff.Prober(),
		Supervisor: process.NewSupervisor(process.Config{Logger: log.Named("process")}),
		Logger:     log.Named("converter"),
		OnEvent: func(ev converter.Event) {
			select {
			case events <- ev:
			case <-stopped:
			}
		},
		LogLines: ctx.cfg.Log.MaxLines,
	})
	if err != nil {
		return err
	}
	defer conv.Close()
	defer close(stopped)

	if err := conv.Submit(req); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	view := newView(os.Stderr, verbose)
	intr := &interrupts{conv: conv, log: log}

	for {
		select {
		case <-parent.Done():
			return parent.Err()
		case <-sigCh:
			if intr.press() {
				return context.Canceled
			}
		case ev := <-events:
			intr.observe(ev)
			view.handle(ev)
			if ev.Type != converter.EventOutcome {
				continue
			}
			return outcomeErr(ev.Outcome)
		}
	}
}

// interrupts turns Ctrl-C presses into cancel requests. A press while the
// duration is still being probed is held until the transcoder runs.
type interrupts struct {
	conv    converter.Converter
	log     logger.Logger
	pressed bool
	pending bool
}

// press handles one Ctrl-C and reports whether the caller should give up
// waiting for the outcome
func (i *interrupts) press() bool {
	if i.pressed {
		return true
	}
	i.pressed = true
	i.send()
	return false
}

func (i *interrupts) observe(ev converter.Event) {
	if i.pending && ev.Type == converter.EventState && ev.State == converter.StateRunning {
		i.send()
	}
}

func (i *interrupts) send() {
	err := i.conv.Cancel()
	switch {
	case err == nil:
		i.pending = false
	case errors.Is(err, converter.ErrNotRunning):
		i.pending = true
	default:
		i.pending = false
		i.log.Error("cancel: %v", err)
	}
}

func outcomeErr(o *converter.Outcome) error {
	switch o.State {
	case converter.StateSucceeded:
		fmt.Fprintf(os.Stdout, "%s\n", o.OutputPath)
		return nil
	case converter.StateCancelled:
		return fmt.Errorf("conversion cancelled")
	default:
		return fmt.Errorf("conversion failed: %s", o.Reason)
	}
}
