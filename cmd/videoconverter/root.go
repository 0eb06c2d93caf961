// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package main

import (
	"github.com/spf13/cobra"

	"github.com/ZSC714725/videoconverter/internal/config"
	"github.com/ZSC714725/videoconverter/internal/ffmpeg"
	"github.com/ZSC714725/videoconverter/internal/logger"
)

type commandContext struct {
	configPath string
	ffmpegBin  string
	ffprobeBin string
	logLevel   string

	cfg *config.Config
}

func (c *commandContext) load() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}

	cfg := config.Default()
	if c.configPath != "" {
		var err error
		cfg, err = config.Load(c.configPath)
		if err != nil {
			return nil, err
		}
	}

	if c.ffmpegBin != "" {
		cfg.FFmpeg.Path = c.ffmpegBin
	}
	if c.ffprobeBin != "" {
		cfg.FFprobe.Path = c.ffprobeBin
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}

	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) logger() logger.Logger {
	return logger.NewWithOptions("videoconverter", logger.Options{Level: c.cfg.Log.Level})
}

func (c *commandContext) ffmpeg(log logger.Logger) (ffmpeg.FFmpeg, error) {
	validator, err := ffmpeg.NewValidator(c.cfg.Input.Allow, c.cfg.Input.Block)
	if err != nil {
		return nil, err
	}
	return ffmpeg.New(ffmpeg.Config{
		Binary:         c.cfg.FFmpeg.Path,
		ProbeBinary:    c.cfg.FFprobe.Path,
		ProbeTimeout:   c.cfg.ProbeTimeout(),
		ValidatorInput: validator,
		Logger:         log.Named("ffmpeg"),
	})
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "videoconverter",
		Short:         "Convert videos to a target resolution and container with FFmpeg",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.load()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", "", "Path to YAML config file")
	flags.StringVar(&ctx.ffmpegBin, "ffmpeg", "", "FFmpeg binary path (overrides config)")
	flags.StringVar(&ctx.ffprobeBin, "ffprobe", "", "FFprobe binary path (overrides config)")
	flags.StringVar(&ctx.logLevel, "log-level", "", "Log level: debug, info, error (overrides config)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newConvertCommand(ctx))

	return rootCmd
}
