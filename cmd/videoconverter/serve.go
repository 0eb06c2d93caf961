// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ZSC714725/videoconverter/internal/api"
	"github.com/ZSC714725/videoconverter/internal/converter"
	"github.com/ZSC714725/videoconverter/internal/process"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversion API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bind != "" {
				ctx.cfg.Server.Bind = bind
			}
			return serve(cmd.Context(), ctx)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Bind address (overrides config)")
	return cmd
}

func serve(parent context.Context, ctx *commandContext) error {
	cfg := ctx.cfg
	log := ctx.logger()

	ff, err := ctx.ffmpeg(log)
	if err != nil {
		return err
	}
	if missing := ff.Missing(); len(missing) > 0 {
		log.Error("ffmpeg lacks %v; conversions may fail", missing)
	}

	bus := converter.NewBus(cfg.Log.MaxLines)
	conv, err := converter.New(converter.Config{
		Builder:    ff.Builder(),
		Prober:     ff.Prober(),
		Supervisor: process.NewSupervisor(process.Config{Logger: log.Named("process")}),
		Logger:     log.Named("converter"),
		OnEvent:    bus.Publish,
		LogLines:   cfg.Log.MaxLines,
	})
	if err != nil {
		return err
	}
	defer conv.Close()

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Server.CORS {
		r.Use(cors.Default())
	}
	api.NewHandler(conv, bus, ff).Register(r)

	srv := &http.Server{Addr: cfg.Server.Bind, Handler: r}

	sigCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening on %s", cfg.Server.Bind)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-sigCtx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
