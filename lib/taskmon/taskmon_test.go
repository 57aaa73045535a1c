// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

package taskmon

import (
	"strings"
	"sync"
	"testing"
)

func TestEventsCarryParents(t *testing.T) {
	hierarchy := map[string]string{
		"extract": "load",
		"decode":  "load",
	}

	var events []Event
	monitor := New(hierarchy, func(event Event) {
		events = append(events, event)
	})

	monitor.TaskStart("load")
	monitor.TaskStart("extract")
	monitor.TaskEnd("extract")
	monitor.TaskEnd("load")

	want := []Event{
		{Type: TaskStarted, Task: "load"},
		{Type: TaskStarted, Task: "extract", Parent: "load", HasParent: true},
		{Type: TaskEnded, Task: "extract", Parent: "load", HasParent: true},
		{Type: TaskEnded, Task: "load"},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestSubscriberPanicLatches(t *testing.T) {
	// The first subscriber panic is caught and recorded; every later
	// emission is a no-op that reaches no subscriber and raises
	// nothing.
	calls := 0
	monitor := New(nil, func(Event) {
		calls++
		panic("subscriber bug")
	})

	monitor.TaskStart("load") // panics inside, caught
	monitor.TaskStart("load") // latched: no invocation
	monitor.TaskEnd("load")   // latched: no invocation

	if calls != 1 {
		t.Errorf("subscriber called %d times, want 1", calls)
	}
	failure := monitor.Failure()
	if failure == nil {
		t.Fatal("Failure() = nil, want the latched panic")
	}
	if !strings.Contains(failure.Error(), "subscriber bug") {
		t.Errorf("Failure() = %q, want the panic value in the message", failure)
	}
}

func TestNilMonitorAndNilSubscriber(t *testing.T) {
	var monitor *Monitor
	monitor.TaskStart("load")
	monitor.TaskEnd("load")
	if monitor.Failure() != nil {
		t.Error("nil monitor reports a failure")
	}

	silent := New(map[string]string{"a": "b"}, nil)
	silent.TaskStart("a")
	silent.TaskEnd("a")
	if silent.Failure() != nil {
		t.Error("monitor without subscriber reports a failure")
	}
}

func TestConcurrentEmission(t *testing.T) {
	// The latch is process-wide for the monitor: after one goroutine
	// trips it, emissions from every goroutine stop. The subscriber
	// itself runs under the monitor's lock, so counting is safe.
	total := 0
	monitor := New(nil, func(Event) {
		total++
		if total == 1 {
			panic("first call fails")
		}
	})

	var group sync.WaitGroup
	for i := 0; i < 8; i++ {
		group.Add(1)
		go func() {
			defer group.Done()
			for j := 0; j < 100; j++ {
				monitor.TaskStart("load")
				monitor.TaskEnd("load")
			}
		}()
	}
	group.Wait()

	if total != 1 {
		t.Errorf("subscriber called %d times, want 1", total)
	}
	if monitor.Failure() == nil {
		t.Error("Failure() = nil after a subscriber panic")
	}
}

func TestEventTypeString(t *testing.T) {
	if got := TaskStarted.String(); got != "start" {
		t.Errorf("TaskStarted.String() = %q, want start", got)
	}
	if got := TaskEnded.String(); got != "end" {
		t.Errorf("TaskEnded.String() = %q, want end", got)
	}
}
