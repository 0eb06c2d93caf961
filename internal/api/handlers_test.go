// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/videoconverter/internal/converter"
	"github.com/ZSC714725/videoconverter/internal/ffmpeg"
	"github.com/ZSC714725/videoconverter/internal/ffmpeg/parse"
	"github.com/ZSC714725/videoconverter/internal/ffmpeg/skills"
)

type fakeConverter struct {
	submitted []ffmpeg.Request
	submitErr error
	cancelErr error
	cancels   int
	snapshot  converter.Snapshot
	log       []parse.Line
}

func (c *fakeConverter) Submit(req ffmpeg.Request) error {
	if c.submitErr != nil {
		return c.submitErr
	}
	c.submitted = append(c.submitted, req)
	c.snapshot.State = converter.StateProbing
	return nil
}

func (c *fakeConverter) Cancel() error {
	c.cancels++
	return c.cancelErr
}

func (c *fakeConverter) Snapshot() converter.Snapshot { return c.snapshot }
func (c *fakeConverter) Log() []parse.Line            { return c.log }
func (c *fakeConverter) Close() error                 { return nil }

type fakeFFmpeg struct {
	skills    skills.Skills
	reloadErr error
	reloads   int
}

func (f *fakeFFmpeg) Builder() *ffmpeg.Builder { return ffmpeg.NewBuilder("", "", nil) }
func (f *fakeFFmpeg) Prober() ffmpeg.Prober    { return nil }
func (f *fakeFFmpeg) Skills() skills.Skills    { return f.skills }
func (f *fakeFFmpeg) Missing() []string        { return []string{"muxer webm"} }

func (f *fakeFFmpeg) ReloadSkills() error {
	f.reloads++
	return f.reloadErr
}

func newTestRouter(conv converter.Converter, ff ffmpeg.FFmpeg) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(conv, converter.NewBus(10), ff).Register(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmit(t *testing.T) {
	conv := &fakeConverter{}
	r := newTestRouter(conv, &fakeFFmpeg{})

	w := do(t, r, http.MethodPost, "/api/v1/conversion", ConversionRequest{
		Input:      " /videos/holiday.mov ",
		Resolution: "1280x720 (HD)",
		Container:  "MP4",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	require.Len(t, conv.submitted, 1)
	assert.Equal(t, ffmpeg.Request{
		Input:      "/videos/holiday.mov",
		Resolution: ffmpeg.Resolution{Width: 1280, Height: 720},
		Container:  ffmpeg.ContainerMP4,
		BaseName:   "holiday_converted",
	}, conv.submitted[0])

	var snap converter.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, converter.StateProbing, snap.State)
}

func TestSubmitWidthHeight(t *testing.T) {
	conv := &fakeConverter{}
	r := newTestRouter(conv, &fakeFFmpeg{})

	w := do(t, r, http.MethodPost, "/api/v1/conversion", ConversionRequest{
		Input:     "/videos/a.mkv",
		Width:     640,
		Height:    360,
		Container: "webm",
		Name:      "small",
		OutputDir: "/out",
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, conv.submitted, 1)
	assert.Equal(t, "/out/small.webm", conv.submitted[0].OutputPath())
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name string
		body any
		err  error
		code int
	}{
		{"missing fields", map[string]string{"input": "/a.mov"}, nil, http.StatusBadRequest},
		{"bad resolution", ConversionRequest{Input: "/a.mov", Container: "mp4", Resolution: "big"}, nil, http.StatusBadRequest},
		{"invalid", ConversionRequest{Input: "/a.mov", Container: "mp4"}, converter.ErrInvalidRequest, http.StatusBadRequest},
		{"busy", ConversionRequest{Input: "/a.mov", Container: "mp4"}, converter.ErrBusy, http.StatusConflict},
		{"closed", ConversionRequest{Input: "/a.mov", Container: "mp4"}, converter.ErrClosed, http.StatusServiceUnavailable},
		{"other", ConversionRequest{Input: "/a.mov", Container: "mp4"}, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &fakeConverter{submitErr: tt.err}
			w := do(t, newTestRouter(conv, &fakeFFmpeg{}), http.MethodPost, "/api/v1/conversion", tt.body)

			assert.Equal(t, tt.code, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestCommand(t *testing.T) {
	conv := &fakeConverter{}
	r := newTestRouter(conv, &fakeFFmpeg{})

	w := do(t, r, http.MethodPut, "/api/v1/conversion/command", CommandRequest{Command: "cancel"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, conv.cancels)

	w = do(t, r, http.MethodPut, "/api/v1/conversion/command", CommandRequest{Command: "pause"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, conv.cancels)

	conv.cancelErr = converter.ErrNotRunning
	w = do(t, r, http.MethodPut, "/api/v1/conversion/command", CommandRequest{Command: "cancel"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetConversion(t *testing.T) {
	conv := &fakeConverter{snapshot: converter.Snapshot{
		ID:       "abc",
		State:    converter.StateRunning,
		Progress: 42,
		Controls: converter.ControlsFor(converter.StateRunning),
	}}
	w := do(t, newTestRouter(conv, &fakeFFmpeg{}), http.MethodGet, "/api/v1/conversion", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap converter.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "abc", snap.ID)
	assert.Equal(t, 42, snap.Progress)
	assert.True(t, snap.Controls.Cancel)
	assert.False(t, snap.Controls.Submit)
}

func TestGetReport(t *testing.T) {
	started := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	conv := &fakeConverter{
		snapshot: converter.Snapshot{Started: started},
		log: []parse.Line{
			{Timestamp: started, Data: "Starting FFmpeg with arguments:"},
			{Timestamp: started.Add(time.Second), Data: "Conversion completed successfully."},
		},
	}
	w := do(t, newTestRouter(conv, &fakeFFmpeg{}), http.MethodGet, "/api/v1/conversion/report", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, started.Unix(), report.CreatedAt)
	require.Len(t, report.Log, 2)
	assert.Equal(t, "Conversion completed successfully.", report.Log[1][1])
}

func TestPresets(t *testing.T) {
	w := do(t, newTestRouter(&fakeConverter{}, &fakeFFmpeg{}), http.MethodGet, "/api/v1/presets", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var p Presets
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, []string{"mp4", "mkv", "mov", "avi", "webm"}, p.Containers)
	assert.Len(t, p.Resolutions, 5)
	assert.Equal(t, ffmpeg.Resolution{Width: 1920, Height: 1080}, p.Resolutions[0].Resolution)
}

func TestSkills(t *testing.T) {
	ff := &fakeFFmpeg{skills: skills.Skills{
		Encoders: []skills.Encoder{{Id: "libx264", Kind: "video", Name: "H.264"}},
		Muxers:   []skills.Muxer{{Id: "mp4", Name: "MP4 (MPEG-4 Part 14)"}},
	}}
	ff.skills.FFmpeg.Version = "6.1.0"
	r := newTestRouter(&fakeConverter{}, ff)

	w := do(t, r, http.MethodGet, "/api/v1/skills", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp SkillsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "6.1.0", resp.Version)
	assert.Equal(t, []SkillsEntry{{ID: "libx264", Kind: "video", Name: "H.264"}}, resp.Encoders)
	assert.Equal(t, []string{"muxer webm"}, resp.Missing)

	w = do(t, r, http.MethodPost, "/api/v1/skills/reload", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ff.reloads)

	ff.reloadErr = errors.New("exec: not found")
	w = do(t, r, http.MethodPost, "/api/v1/skills/reload", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// frame reads one server-sent event and returns its fields
func frame(t *testing.T, r *bufio.Reader) map[string]string {
	t.Helper()

	fields := map[string]string{}
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if len(fields) == 0 {
				continue
			}
			return fields
		}
		key, value, _ := strings.Cut(line, ":")
		fields[key] = value
	}
}

func streamEvents(t *testing.T, bus *converter.Bus, query, lastEventID string) (*bufio.Reader, func()) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(&fakeConverter{}, bus, &fakeFFmpeg{}).Register(r)
	srv := httptest.NewServer(r)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/conversion/events"+query, nil)
	require.NoError(t, err)
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	return bufio.NewReader(resp.Body), func() {
		resp.Body.Close()
		srv.Close()
	}
}

func TestEventsStream(t *testing.T) {
	bus := converter.NewBus(10)
	bus.Publish(converter.Event{Seq: 1, ConversionID: "abc", Type: converter.EventLog, Line: "Starting FFmpeg with arguments:"})

	body, stop := streamEvents(t, bus, "?since=0", "")
	defer stop()

	f := frame(t, body)
	assert.Equal(t, "1", f["id"])
	assert.Equal(t, "log", f["event"])
	var ev converter.Event
	require.NoError(t, json.Unmarshal([]byte(f["data"]), &ev))
	assert.Equal(t, "Starting FFmpeg with arguments:", ev.Line)
	assert.Equal(t, "abc", ev.ConversionID)

	bus.Publish(converter.Event{Seq: 2, ConversionID: "abc", Type: converter.EventProgress, Percent: 7})

	f = frame(t, body)
	assert.Equal(t, "2", f["id"])
	assert.Equal(t, "progress", f["event"])
	require.NoError(t, json.Unmarshal([]byte(f["data"]), &ev))
	assert.Equal(t, 7, ev.Percent)
}

func TestEventsResume(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		lastEventID string
	}{
		{"since", "?since=1", ""},
		{"last event id", "", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := converter.NewBus(10)
			bus.Publish(converter.Event{Seq: 1, Type: converter.EventLog, Line: "old"})
			bus.Publish(converter.Event{Seq: 2, Type: converter.EventState, State: converter.StateRunning})

			body, stop := streamEvents(t, bus, tt.query, tt.lastEventID)
			defer stop()

			f := frame(t, body)
			assert.Equal(t, "2", f["id"])
			assert.Equal(t, "state", f["event"])
		})
	}
}
