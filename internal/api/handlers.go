// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/videoconverter/internal/converter"
	"github.com/ZSC714725/videoconverter/internal/ffmpeg"
)

// Handler holds dependencies
type Handler struct {
	conv   converter.Converter
	bus    *converter.Bus
	ffmpeg ffmpeg.FFmpeg
}

// NewHandler creates API handler
func NewHandler(conv converter.Converter, bus *converter.Bus, ff ffmpeg.FFmpeg) *Handler {
	return &Handler{conv: conv, bus: bus, ffmpeg: ff}
}

// Register mounts the API on r
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/api/v1")
	{
		v1.GET("/presets", h.Presets)
		v1.GET("/skills", h.Skills)
		v1.POST("/skills/reload", h.ReloadSkills)

		v1.GET("/conversion", h.GetConversion)
		v1.POST("/conversion", h.Submit)
		v1.PUT("/conversion/command", h.Command)
		v1.GET("/conversion/report", h.GetReport)
		v1.GET("/conversion/events", h.Events)
	}
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

func convErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, converter.ErrInvalidRequest):
		errResp(c, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, converter.ErrBusy):
		errResp(c, http.StatusConflict, "Busy", err.Error())
	case errors.Is(err, converter.ErrNotRunning):
		errResp(c, http.StatusConflict, "Not running", err.Error())
	case errors.Is(err, converter.ErrClosed):
		errResp(c, http.StatusServiceUnavailable, "Shutting down", err.Error())
	default:
		errResp(c, http.StatusInternalServerError, "Internal error", err.Error())
	}
}

// Submit POST /api/v1/conversion
func (h *Handler) Submit(c *gin.Context) {
	var req ConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	r, err := requestToConversion(&req)
	if err != nil {
		convErr(c, err)
		return
	}

	if err := h.conv.Submit(r); err != nil {
		convErr(c, err)
		return
	}

	c.JSON(http.StatusAccepted, h.conv.Snapshot())
}

// GetConversion GET /api/v1/conversion
func (h *Handler) GetConversion(c *gin.Context) {
	c.JSON(http.StatusOK, h.conv.Snapshot())
}

// Command PUT /api/v1/conversion/command
func (h *Handler) Command(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	switch req.Command {
	case "cancel":
		if err := h.conv.Cancel(); err != nil {
			convErr(c, err)
			return
		}
	default:
		errResp(c, http.StatusBadRequest, "Unknown command", "Known: cancel")
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// GetReport GET /api/v1/conversion/report
func (h *Handler) GetReport(c *gin.Context) {
	lines := h.conv.Log()

	report := Report{Log: make([][2]string, len(lines))}
	if started := h.conv.Snapshot().Started; !started.IsZero() {
		report.CreatedAt = started.Unix()
	}
	for i, line := range lines {
		report.Log[i] = [2]string{
			line.Timestamp.Format("2006-01-02 15:04:05.000"),
			line.Data,
		}
	}

	c.JSON(http.StatusOK, report)
}

// Events GET /api/v1/conversion/events streams events as server-sent
// events, starting after ?since= or the Last-Event-ID header
func (h *Handler) Events(c *gin.Context) {
	since := c.Query("since")
	if since == "" {
		since = c.GetHeader("Last-Event-ID")
	}
	seq, _ := strconv.ParseInt(since, 10, 64)

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		updated := h.bus.Updated()
		events := h.bus.Since(seq)
		if len(events) == 0 {
			select {
			case <-updated:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, ev := range events {
			c.Render(-1, sse.Event{
				Id:    strconv.FormatInt(ev.Seq, 10),
				Event: string(ev.Type),
				Data:  ev,
			})
			seq = ev.Seq
		}
		return true
	})
}

// Presets GET /api/v1/presets
func (h *Handler) Presets(c *gin.Context) {
	p := Presets{Resolutions: ffmpeg.Presets}
	for _, ct := range ffmpeg.Containers {
		p.Containers = append(p.Containers, string(ct))
	}
	c.JSON(http.StatusOK, p)
}

// Skills GET /api/v1/skills
func (h *Handler) Skills(c *gin.Context) {
	c.JSON(http.StatusOK, skillsToAPI(h.ffmpeg.Skills(), h.ffmpeg.Missing()))
}

// ReloadSkills POST /api/v1/skills/reload
func (h *Handler) ReloadSkills(c *gin.Context) {
	if err := h.ffmpeg.ReloadSkills(); err != nil {
		errResp(c, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(h.ffmpeg.Skills(), h.ffmpeg.Missing()))
}

func requestToConversion(req *ConversionRequest) (ffmpeg.Request, error) {
	r := ffmpeg.Request{
		Input:      strings.TrimSpace(req.Input),
		Resolution: ffmpeg.Resolution{Width: req.Width, Height: req.Height},
		Container:  ffmpeg.Container(strings.ToLower(strings.TrimSpace(req.Container))),
		BaseName:   strings.TrimSpace(req.Name),
		OutputDir:  strings.TrimSpace(req.OutputDir),
	}

	if req.Resolution != "" {
		res, err := ffmpeg.ParseResolution(req.Resolution)
		if err != nil {
			return ffmpeg.Request{}, err
		}
		r.Resolution = res
	}
	if r.BaseName == "" && r.Input != "" {
		r.BaseName = ffmpeg.DefaultBaseName(r.Input)
	}

	return r, nil
}
