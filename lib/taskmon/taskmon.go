// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskmon is the toolchain's task instrumentation
// collaborator: a hierarchical task-event emitter the loader calls at
// task boundaries. The loader consumes it, never owns it — callers
// construct a [Monitor] (or pass nil for none) and inject it into
// load calls, so instrumentation state is never process-global and
// parallel tests stay independent.
//
// A monitor resolves each task's parent from a hierarchy table fixed
// at construction and emits (event type, parent, task) to at most one
// subscriber. Subscribers are untrusted: the first panic a subscriber
// raises is caught and recorded, and from then on every emission from
// any goroutine is a no-op. The latch affects instrumentation only —
// it must never change the outcome of the work being instrumented.
package taskmon

import (
	"fmt"
	"sync"
)

// EventType distinguishes task-start from task-end events.
type EventType uint8

const (
	// TaskStarted is emitted when a task begins.
	TaskStarted EventType = 1

	// TaskEnded is emitted when a task finishes, on every exit path.
	TaskEnded EventType = 2
)

// String returns the human-readable name of an event type.
func (t EventType) String() string {
	switch t {
	case TaskStarted:
		return "start"
	case TaskEnded:
		return "end"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Event is one task boundary: the event type, the task, and the
// task's parent from the hierarchy table. HasParent is false for root
// tasks and for tasks absent from the table.
type Event struct {
	Type      EventType
	Task      string
	Parent    string
	HasParent bool
}

// Subscriber receives events. A subscriber that panics is latched off
// permanently; see the package comment.
type Subscriber func(Event)

// Monitor emits task events to zero or one subscriber. Safe for
// concurrent use. A nil *Monitor is valid and emits nothing.
type Monitor struct {
	parents map[string]string

	mu         sync.Mutex
	subscriber Subscriber
	failure    error
}

// New creates a monitor with the given task hierarchy (child task →
// parent task) and subscriber. Either may be nil; a nil subscriber
// means events are resolved but not delivered. The hierarchy map is
// copied.
func New(hierarchy map[string]string, subscriber Subscriber) *Monitor {
	parents := make(map[string]string, len(hierarchy))
	for child, parent := range hierarchy {
		parents[child] = parent
	}
	return &Monitor{parents: parents, subscriber: subscriber}
}

// TaskStart emits a start event for the task.
func (m *Monitor) TaskStart(task string) {
	m.emit(TaskStarted, task)
}

// TaskEnd emits an end event for the task.
func (m *Monitor) TaskEnd(task string) {
	m.emit(TaskEnded, task)
}

// Failure returns the latched subscriber failure, or nil if no
// subscriber call has panicked.
func (m *Monitor) Failure() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failure
}

func (m *Monitor) emit(eventType EventType, task string) {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil || m.subscriber == nil {
		return
	}

	event := Event{Type: eventType, Task: task}
	event.Parent, event.HasParent = m.parents[task]

	defer func() {
		if r := recover(); r != nil {
			m.failure = fmt.Errorf("task monitor subscriber panicked on %s %s: %v", event.Type, task, r)
		}
	}()
	m.subscriber(event)
}
