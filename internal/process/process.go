// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具
//
// Package process supervises a single external program: it streams the
// program's stdout and stderr as lines and reports how it ended.

package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ZSC714725/videoconverter/internal/logger"
)

// DefaultKillTimeout is how long a cancelled process may take to exit
// after the interrupt before it is killed
const DefaultKillTimeout = 5 * time.Second

const maxLineSize = 1024 * 1024

// Stream identifies the pipe a line was read from
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// EventKind classifies supervisor events
type EventKind int

const (
	EventOutput EventKind = iota
	EventExited
	EventSpawnFailed
)

func (k EventKind) String() string {
	switch k {
	case EventOutput:
		return "output"
	case EventExited:
		return "exited"
	case EventSpawnFailed:
		return "spawn_failed"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is either an output line or the terminal event of a process.
// Exactly one terminal event (EventExited or EventSpawnFailed) is sent,
// after which the channel is closed.
type Event struct {
	Kind EventKind
	// EventOutput
	Stream Stream
	Text   string
	// EventExited
	Code     int
	Abnormal bool
	// EventSpawnFailed
	Reason string
}

// Terminal reports whether e ends the stream
func (e Event) Terminal() bool {
	return e.Kind == EventExited || e.Kind == EventSpawnFailed
}

// Handle controls one started process
type Handle interface {
	Events() <-chan Event
	// Cancel asks the process to terminate. The outcome still arrives as
	// an EventExited with Abnormal set.
	Cancel() error
	PID() int
	// Usage returns the current CPU percentage and resident memory
	Usage() (cpu float64, memory uint64)
}

// Supervisor starts processes
type Supervisor interface {
	Start(binary string, args []string) Handle
}

// Config for a Supervisor
type Config struct {
	KillTimeout time.Duration
	// Env of the child; nil inherits the current environment
	Env        []string
	NewSampler func() Sampler
	Logger     logger.Logger
}

type supervisor struct {
	config Config
}

// NewSupervisor creates a Supervisor
func NewSupervisor(config Config) Supervisor {
	if config.KillTimeout <= 0 {
		config.KillTimeout = DefaultKillTimeout
	}
	if config.NewSampler == nil {
		config.NewSampler = NewSysSampler
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	return &supervisor{config: config}
}

func (s *supervisor) Start(binary string, args []string) Handle {
	p := &process{
		binary:      binary,
		args:        args,
		events:      make(chan Event, 64),
		sampler:     s.config.NewSampler(),
		logger:      s.config.Logger,
		killTimeout: s.config.KillTimeout,
	}
	p.start(s.config.Env)
	return p
}

type stateType string

const (
	stateStarting  stateType = "starting"
	stateRunning   stateType = "running"
	stateFinishing stateType = "finishing"
	stateExited    stateType = "exited"
	stateFailed    stateType = "failed"
)

type process struct {
	binary string
	args   []string
	cmd    *exec.Cmd
	pid    int
	events chan Event

	state struct {
		state     stateType
		cancelled bool
		lock      sync.Mutex
	}
	killTimer     *time.Timer
	killTimerLock sync.Mutex
	killTimeout   time.Duration
	sampler       Sampler
	logger        logger.Logger
}

func (p *process) Events() <-chan Event {
	return p.events
}

func (p *process) PID() int {
	return p.pid
}

func (p *process) Usage() (float64, uint64) {
	return p.sampler.Current()
}

func (p *process) setState(state stateType) stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	prev := p.state.state
	p.state.state = state
	return prev
}

func (p *process) start(env []string) {
	p.setState(stateStarting)

	p.cmd = exec.Command(p.binary, p.args...)
	p.cmd.Env = env

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		p.spawnFailed(err)
		return
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		p.spawnFailed(err)
		return
	}

	if err := p.cmd.Start(); err != nil {
		p.spawnFailed(err)
		return
	}

	p.pid = p.cmd.Process.Pid
	if err := p.sampler.Start(p.pid); err != nil {
		p.logger.Debug("usage sampler for pid %d: %v", p.pid, err)
	}
	p.setState(stateRunning)
	p.logger.Debug("started %s (pid %d)", p.binary, p.pid)

	wg := &sync.WaitGroup{}
	wg.Add(2)
	go p.reader(stdout, Stdout, wg)
	go p.reader(stderr, Stderr, wg)
	go func() {
		wg.Wait()
		p.waiter()
	}()
}

func (p *process) spawnFailed(err error) {
	p.setState(stateFailed)
	p.logger.Error("can't start %s: %v", p.binary, err)
	p.events <- Event{Kind: EventSpawnFailed, Reason: err.Error()}
	close(p.events)
}

func (p *process) Cancel() error {
	p.state.lock.Lock()
	if p.state.state != stateRunning {
		p.state.lock.Unlock()
		return nil
	}
	p.state.state = stateFinishing
	p.state.cancelled = true
	p.state.lock.Unlock()

	var err error
	if runtime.GOOS == "windows" {
		err = p.cmd.Process.Kill()
	} else {
		err = p.cmd.Process.Signal(os.Interrupt)
		if err != nil {
			err = p.cmd.Process.Kill()
		} else {
			p.killTimerLock.Lock()
			p.killTimer = time.AfterFunc(p.killTimeout, func() {
				p.cmd.Process.Kill()
			})
			p.killTimerLock.Unlock()
		}
	}

	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("cancel %s: %w", p.binary, err)
	}
	return nil
}

func (p *process) reader(r io.Reader, stream Stream, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLine)

	for scanner.Scan() {
		line := strings.ToValidUTF8(scanner.Text(), "\uFFFD")
		p.events <- Event{Kind: EventOutput, Stream: stream, Text: line}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Error("reading %s of %s: %v", stream, p.binary, err)
		// keep the pipe drained so the child never blocks on a full pipe
		io.Copy(io.Discard, r)
	}
}

func (p *process) waiter() {
	err := p.cmd.Wait()

	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	abnormal := code < 0 || (err != nil && !errors.As(err, &exitErr))

	p.killTimerLock.Lock()
	if p.killTimer != nil {
		p.killTimer.Stop()
		p.killTimer = nil
	}
	p.killTimerLock.Unlock()

	p.sampler.Stop()

	p.state.lock.Lock()
	if p.state.cancelled {
		abnormal = true
	}
	p.state.state = stateExited
	p.state.lock.Unlock()

	p.logger.Debug("%s (pid %d) exited with code %d, abnormal=%t", p.binary, p.pid, code, abnormal)

	p.events <- Event{Kind: EventExited, Code: code, Abnormal: abnormal}
	close(p.events)
}

// scanLine splits on \n and \r, dropping empty lines. FFmpeg rewrites its
// status line with a bare \r.
func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}
