// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package converter

import (
	"sync"
	"time"
)

// EventType classifies converter events
type EventType string

const (
	EventLog      EventType = "log"
	EventProgress EventType = "progress"
	EventState    EventType = "state"
	EventOutcome  EventType = "outcome"
)

// Event is delivered to the caller in the order the converter produced it
type Event struct {
	Seq          int64     `json:"seq"`
	Timestamp    time.Time `json:"timestamp"`
	ConversionID string    `json:"conversion_id"`
	Type         EventType `json:"type"`

	Line string `json:"line,omitempty"`

	Percent       int  `json:"percent"`
	Indeterminate bool `json:"indeterminate"`

	State  State  `json:"state,omitempty"`
	Reason string `json:"reason,omitempty"`

	Outcome *Outcome `json:"outcome,omitempty"`
}

// Bus keeps recent events for observers that poll or stream
type Bus struct {
	mu        sync.RWMutex
	maxEvents int
	events    []Event
	updated   chan struct{}
}

// NewBus creates a bounded in-memory event buffer
func NewBus(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = 1000
	}
	return &Bus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, 2*maxEvents),
		updated:   make(chan struct{}),
	}
}

// Publish appends an event and wakes up waiting observers
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// at most 2*maxEvents are held; Since only sees the newest maxEvents
	if len(b.events) >= 2*b.maxEvents {
		b.events = append(make([]Event, 0, 2*b.maxEvents), b.window()...)
	}
	b.events = append(b.events, event)

	close(b.updated)
	b.updated = make(chan struct{})
}

// Since returns events with sequence strictly greater than seq
func (b *Bus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	window := b.window()
	out := make([]Event, 0, len(window))
	for _, event := range window {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// window is the most recent maxEvents events
func (b *Bus) window() []Event {
	if len(b.events) > b.maxEvents {
		return b.events[len(b.events)-b.maxEvents:]
	}
	return b.events
}

// Updated returns a channel closed on the next Publish
func (b *Bus) Updated() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}
