// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具
//
// Package converter runs one FFmpeg conversion at a time: it probes the
// source duration, starts the transcoder, turns its output into log and
// progress events and reports how the conversion ended.

package converter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ZSC714725/videoconverter/internal/ffmpeg"
	"github.com/ZSC714725/videoconverter/internal/ffmpeg/parse"
	"github.com/ZSC714725/videoconverter/internal/logger"
	"github.com/ZSC714725/videoconverter/internal/process"

	"github.com/lithammer/shortuuid/v4"
)

// Converter is the caller facing side of the orchestrator
type Converter interface {
	// Submit starts a conversion. It fails with ErrInvalidRequest or ErrBusy
	// without changing state.
	Submit(req ffmpeg.Request) error
	// Cancel asks the running transcoder to stop. The conversion ends in
	// StateCancelled once the process has exited.
	Cancel() error
	Snapshot() Snapshot
	Log() []parse.Line
	Close() error
}

// Config for New
type Config struct {
	Builder    *ffmpeg.Builder
	Prober     ffmpeg.Prober
	Supervisor process.Supervisor
	Logger     logger.Logger
	// OnEvent receives every event in order, from the converter's own
	// goroutine. It must not call Submit or Cancel synchronously.
	OnEvent  func(Event)
	LogLines int
	NewID    func() string
}

type submitMsg struct {
	req   ffmpeg.Request
	reply chan error
}

type probeMsg struct {
	id     string
	result ffmpeg.ProbeResult
}

// conversion holds everything owned by one request. It is only touched by
// the loop goroutine.
type conversion struct {
	id          string
	req         ffmpeg.Request
	cmd         ffmpeg.Command
	started     time.Time
	probe       ffmpeg.ProbeResult
	tracker     *parse.Tracker
	handle      process.Handle
	events      <-chan process.Event
	cancelled   bool
	probeCancel context.CancelFunc
}

type converter struct {
	builder    *ffmpeg.Builder
	prober     ffmpeg.Prober
	supervisor process.Supervisor
	logger     logger.Logger
	onEvent    func(Event)
	newID      func() string

	submitCh chan submitMsg
	cancelCh chan chan error
	probeCh  chan probeMsg
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once

	// loop goroutine only
	active *conversion
	seq    int64

	log *parse.Log

	snap struct {
		snapshot Snapshot
		handle   process.Handle
		lock     sync.RWMutex
	}
}

// New creates a Converter and starts its loop
func New(config Config) (Converter, error) {
	if config.Builder == nil {
		return nil, fmt.Errorf("no command builder given")
	}
	if config.Prober == nil {
		return nil, fmt.Errorf("no prober given")
	}
	if config.Supervisor == nil {
		return nil, fmt.Errorf("no supervisor given")
	}

	c := &converter{
		builder:    config.Builder,
		prober:     config.Prober,
		supervisor: config.Supervisor,
		logger:     config.Logger,
		onEvent:    config.OnEvent,
		newID:      config.NewID,
		submitCh:   make(chan submitMsg),
		cancelCh:   make(chan chan error),
		probeCh:    make(chan probeMsg),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		log:        parse.NewLog(config.LogLines),
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	if c.newID == nil {
		c.newID = shortuuid.New
	}
	c.snap.snapshot = Snapshot{State: StateIdle, Indeterminate: true, Controls: ControlsFor(StateIdle)}

	go c.loop()

	return c, nil
}

func (c *converter) Submit(req ffmpeg.Request) error {
	reply := make(chan error, 1)
	select {
	case c.submitCh <- submitMsg{req: req, reply: reply}:
	case <-c.done:
		return ErrClosed
	}
	return <-reply
}

func (c *converter) Cancel() error {
	reply := make(chan error, 1)
	select {
	case c.cancelCh <- reply:
	case <-c.done:
		return ErrClosed
	}
	return <-reply
}

func (c *converter) Snapshot() Snapshot {
	c.snap.lock.RLock()
	s := c.snap.snapshot
	h := c.snap.handle
	c.snap.lock.RUnlock()

	if h != nil {
		s.PID = h.PID()
		s.CPU, s.Memory = h.Usage()
	}
	return s
}

func (c *converter) Log() []parse.Line {
	return c.log.Lines()
}

// Close cancels a running transcoder and stops the loop. No outcome is
// emitted for a conversion interrupted by Close.
func (c *converter) Close() error {
	c.once.Do(func() {
		close(c.quit)
	})
	<-c.done
	return nil
}

func (c *converter) loop() {
	defer close(c.done)

	for {
		var events <-chan process.Event
		if c.active != nil {
			events = c.active.events
		}

		select {
		case <-c.quit:
			c.shutdown()
			return
		case m := <-c.submitCh:
			m.reply <- c.submit(m.req)
		case reply := <-c.cancelCh:
			reply <- c.cancel()
		case m := <-c.probeCh:
			c.probed(m)
		case ev, ok := <-events:
			if !ok {
				c.active.events = nil
				continue
			}
			c.processEvent(ev)
		}
	}
}

func (c *converter) state() State {
	c.snap.lock.RLock()
	defer c.snap.lock.RUnlock()
	return c.snap.snapshot.State
}

func (c *converter) update(f func(s *Snapshot)) {
	c.snap.lock.Lock()
	defer c.snap.lock.Unlock()
	f(&c.snap.snapshot)
	c.snap.snapshot.Controls = ControlsFor(c.snap.snapshot.State)
}

func (c *converter) submit(req ffmpeg.Request) error {
	if c.state().Busy() {
		return ErrBusy
	}

	cmd, err := c.builder.Build(req)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	conv := &conversion{
		id:          c.newID(),
		req:         req,
		cmd:         cmd,
		started:     time.Now(),
		probeCancel: cancel,
	}
	c.active = conv
	c.log.Reset()

	c.logger.Info("conversion %s: %s -> %s", conv.id, req.Input, cmd.Output)

	c.update(func(s *Snapshot) {
		prev := s.Outcome
		*s = Snapshot{
			ID:            conv.id,
			State:         StateProbing,
			Indeterminate: true,
			Request:       &conv.req,
			Command:       &conv.cmd,
			Started:       conv.started,
			Outcome:       prev,
		}
	})
	c.emit(Event{Type: EventState, State: StateProbing})

	go func() {
		result := c.prober.Probe(ctx, req.Input)
		select {
		case c.probeCh <- probeMsg{id: conv.id, result: result}:
		case <-c.quit:
		}
	}()

	return nil
}

func (c *converter) probed(m probeMsg) {
	conv := c.active
	if conv == nil || conv.id != m.id || c.state() != StateProbing {
		return
	}
	conv.probeCancel()

	conv.probe = m.result
	if m.result.Available {
		conv.tracker = parse.NewTracker(m.result.Seconds)
		c.logger.Debug("conversion %s: duration %.2fs", conv.id, m.result.Seconds)
	} else {
		conv.tracker = parse.NewTracker(0)
		c.logger.Info("conversion %s: duration unavailable: %s", conv.id, m.result.Reason)
		c.emit(Event{Type: EventLog, Line: "[ffprobe] Unable to determine duration: " + m.result.Reason})
	}

	result := m.result
	c.update(func(s *Snapshot) {
		s.State = StateRunning
		s.Duration = &result
		s.Indeterminate = !result.Available
	})
	c.emit(Event{Type: EventState, State: StateRunning})
	c.emit(Event{Type: EventProgress, Percent: 0, Indeterminate: !result.Available})

	c.emit(Event{Type: EventLog, Line: "Starting FFmpeg with arguments:"})
	c.emit(Event{Type: EventLog, Line: conv.cmd.String()})

	conv.handle = c.supervisor.Start(conv.cmd.Binary, conv.cmd.Args)
	conv.events = conv.handle.Events()

	c.snap.lock.Lock()
	c.snap.handle = conv.handle
	c.snap.lock.Unlock()
}

func (c *converter) cancel() error {
	conv := c.active
	if conv == nil || conv.handle == nil || c.state() != StateRunning {
		return ErrNotRunning
	}
	if conv.cancelled {
		return nil
	}
	conv.cancelled = true

	c.logger.Info("conversion %s: cancelling", conv.id)
	if err := conv.handle.Cancel(); err != nil {
		c.logger.Error("conversion %s: %v", conv.id, err)
	}
	return nil
}

func (c *converter) processEvent(ev process.Event) {
	conv := c.active

	switch ev.Kind {
	case process.EventOutput:
		c.emit(Event{Type: EventLog, Line: ev.Text})
		prev := conv.tracker.Last()
		sample, ok := conv.tracker.OnLine(ev.Text)
		if ok && sample.Percent != prev {
			c.emit(Event{Type: EventProgress, Percent: sample.Percent})
		}
	case process.EventExited:
		code := ev.Code
		switch {
		case conv.cancelled:
			c.emit(Event{Type: EventLog, Line: "Conversion cancelled."})
			c.finish(StateCancelled, "cancelled by user", &code)
		case code == 0 && !ev.Abnormal:
			if conv.tracker.Known() && conv.tracker.Last() != 100 {
				c.emit(Event{Type: EventProgress, Percent: 100})
			}
			c.emit(Event{Type: EventLog, Line: "Conversion completed successfully."})
			c.finish(StateSucceeded, "", &code)
		default:
			reason := fmt.Sprintf("FFmpeg exited with code %d", code)
			if ev.Abnormal {
				reason = fmt.Sprintf("FFmpeg terminated abnormally (exit code %d)", code)
			}
			c.emit(Event{Type: EventLog, Line: reason + "."})
			c.finish(StateFailed, reason, &code)
		}
	case process.EventSpawnFailed:
		c.emit(Event{Type: EventLog, Line: "Error: Could not start FFmpeg: " + ev.Reason})
		if conv.cancelled {
			c.finish(StateCancelled, "cancelled by user", nil)
			return
		}
		c.finish(StateFailed, ev.Reason, nil)
	}
}

// finish moves into a terminal state and releases the conversion
func (c *converter) finish(state State, reason string, exitCode *int) {
	conv := c.active
	now := time.Now()

	outcome := &Outcome{
		ID:         conv.id,
		State:      state,
		Reason:     reason,
		ExitCode:   exitCode,
		OutputPath: conv.cmd.Output,
		Started:    conv.started,
		Finished:   now,
		Elapsed:    now.Sub(conv.started),
	}

	conv.probeCancel()
	c.active = nil

	c.update(func(s *Snapshot) {
		s.State = state
		s.Reason = reason
		s.Outcome = outcome
	})
	c.snap.lock.Lock()
	c.snap.handle = nil
	c.snap.lock.Unlock()

	if state == StateFailed {
		c.logger.Error("conversion %s failed: %s", conv.id, reason)
	} else {
		c.logger.Info("conversion %s %s after %s", conv.id, state, outcome.Elapsed.Round(time.Millisecond))
	}

	c.emitFor(conv.id, Event{Type: EventState, State: state, Reason: reason})
	c.emitFor(conv.id, Event{Type: EventOutcome, Outcome: outcome})
}

func (c *converter) shutdown() {
	conv := c.active
	if conv == nil {
		return
	}
	conv.probeCancel()
	if conv.handle != nil {
		if err := conv.handle.Cancel(); err != nil {
			c.logger.Error("conversion %s: %v", conv.id, err)
		}
		if conv.events != nil {
			go func(events <-chan process.Event) {
				for range events {
				}
			}(conv.events)
		}
	}
	c.active = nil
}

func (c *converter) emit(ev Event) {
	id := ""
	if c.active != nil {
		id = c.active.id
	}
	c.emitFor(id, ev)
}

func (c *converter) emitFor(id string, ev Event) {
	c.seq++
	ev.Seq = c.seq
	ev.ConversionID = id
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	switch ev.Type {
	case EventLog:
		c.log.Append(ev.Line)
	case EventProgress:
		c.update(func(s *Snapshot) {
			s.Progress = ev.Percent
			s.Indeterminate = ev.Indeterminate
		})
	}

	if c.onEvent != nil {
		c.onEvent(ev)
	}
}
