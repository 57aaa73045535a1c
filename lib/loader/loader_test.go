// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/quill-lang/quill/lib/objfile"
	"github.com/quill-lang/quill/lib/objfile/objfiletest"
	"github.com/quill-lang/quill/lib/progtree"
	"github.com/quill-lang/quill/lib/taskmon"
	"github.com/quill-lang/quill/lib/treebin"
)

// writeContainer writes container bytes to a temp file and returns a
// locator for it.
func writeContainer(t *testing.T, data []byte) Locator {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unit.qo")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing container fixture: %v", err)
	}
	return Locator{ID: "test/unit", Path: path}
}

// treePayload encodes a small unit as a tree document.
func treePayload(t *testing.T, unit *progtree.Unit) []byte {
	t.Helper()
	payload, err := treebin.Encode(unit, treebin.CompressionNone)
	if err != nil {
		t.Fatalf("encoding tree fixture: %v", err)
	}
	return payload
}

func sampleUnit() *progtree.Unit {
	unit := progtree.NewUnit()
	unit.Namespaces = append(unit.Namespaces, progtree.Namespace{
		Name: "Foo",
		Elements: []progtree.Element{
			{Kind: progtree.ElementCallable, Callable: &progtree.Callable{
				Name:       "Main",
				ReturnType: "Unit",
			}},
		},
	})
	unit.EntryPoints = append(unit.EntryPoints,
		progtree.QualifiedName{Namespace: "Foo", Name: "Main"})
	return unit
}

func TestLoadFullTree(t *testing.T) {
	unit := sampleUnit()
	locator := writeContainer(t, objfiletest.NewBuilder().
		AddResource(objfile.TreeResourceName, treePayload(t, unit)).
		Bytes())

	result, err := Load(locator, Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.State != StateFullTree {
		t.Fatalf("state = %s, want %s", result.State, StateFullTree)
	}
	if !result.Success() {
		t.Error("Success() = false for a full-tree load")
	}
	if result.Tree == nil || !result.Tree.Equal(unit) {
		t.Error("loaded tree does not equal the encoded unit")
	}
	if result.ArtifactID != "test/unit" {
		t.Errorf("artifact ID = %q, want test/unit", result.ArtifactID)
	}
	if result.ContentID == "" {
		t.Error("content ID is empty")
	}
	if result.Facts != nil {
		t.Error("full-tree result carries header facts")
	}
}

func TestLoadNotFound(t *testing.T) {
	locator := Locator{ID: "missing", Path: filepath.Join(t.TempDir(), "absent.qo")}

	result, err := Load(locator, Options{AllowHeaderFallback: true})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load = %v, want ErrNotFound", err)
	}
	if result.State != StateFailed {
		t.Errorf("state = %s, want %s", result.State, StateFailed)
	}
	if result.Success() {
		t.Error("Success() = true for a failed load")
	}
}

func TestLoadHeaderOnly(t *testing.T) {
	// A container with no resource directory and two reserved
	// attributes loads header-only with exactly those facts, in
	// table order.
	locator := writeContainer(t, objfiletest.NewBuilder().
		AddStringAttribute(objfile.AttributeNamespacePrefix, "EntryPoint", "Foo.Bar").
		AddStringAttribute(objfile.AttributeNamespacePrefix, "Deprecated", "v1").
		Bytes())

	result, err := Load(locator, Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.State != StateHeaderOnly {
		t.Fatalf("state = %s, want %s", result.State, StateHeaderOnly)
	}

	want := []objfile.Fact{
		{Name: "EntryPoint", Payload: "Foo.Bar"},
		{Name: "Deprecated", Payload: "v1"},
	}
	if len(result.Facts) != len(want) {
		t.Fatalf("got %d facts %v, want %d", len(result.Facts), result.Facts, len(want))
	}
	for i := range want {
		if result.Facts[i] != want[i] {
			t.Errorf("fact %d = %+v, want %+v", i, result.Facts[i], want[i])
		}
	}
}

func TestLoadHeaderOnlyEmpty(t *testing.T) {
	// Zero facts is not an error: the caller reads an empty list as
	// "no references". The tri-state plus the fact count keeps this
	// distinguishable from both failure and a facts-bearing result.
	locator := writeContainer(t, objfiletest.NewBuilder().Bytes())

	result, err := Load(locator, Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.State != StateHeaderOnly {
		t.Fatalf("state = %s, want %s", result.State, StateHeaderOnly)
	}
	if result.Facts == nil || len(result.Facts) != 0 {
		t.Errorf("facts = %v, want empty slice", result.Facts)
	}
}

func TestLoadSkipTree(t *testing.T) {
	// SkipTree forces the header-only path even when a perfectly
	// good tree resource is embedded.
	locator := writeContainer(t, objfiletest.NewBuilder().
		AddResource(objfile.TreeResourceName, treePayload(t, sampleUnit())).
		AddStringAttribute(objfile.AttributeNamespacePrefix, "EntryPoint", "Foo.Main").
		Bytes())

	result, err := Load(locator, Options{SkipTree: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.State != StateHeaderOnly {
		t.Fatalf("state = %s, want %s", result.State, StateHeaderOnly)
	}
	if result.Tree != nil {
		t.Error("skip-tree result carries a tree")
	}
	if len(result.Facts) != 1 {
		t.Errorf("got %d facts, want 1", len(result.Facts))
	}
}

func TestLoadDecodeFailureTerminal(t *testing.T) {
	// A present-but-undecodable tree resource without fallback: the
	// callback fires, the load fails, no partial tree escapes.
	locator := writeContainer(t, objfiletest.NewBuilder().
		AddResource(objfile.TreeResourceName, []byte("not a tree document")).
		Bytes())

	var callbackErr error
	result, err := Load(locator, Options{
		OnDecodeFailure: func(err error) { callbackErr = err },
	})
	if err == nil {
		t.Fatal("Load = nil error, want decode failure")
	}
	if result.State != StateFailed {
		t.Errorf("state = %s, want %s", result.State, StateFailed)
	}
	if result.Tree != nil {
		t.Error("failed load carries a tree")
	}
	if callbackErr == nil {
		t.Error("decode-failure callback was not invoked")
	}
}

func TestLoadDecodeFailureFallsBack(t *testing.T) {
	locator := writeContainer(t, objfiletest.NewBuilder().
		AddResource(objfile.TreeResourceName, []byte("not a tree document")).
		AddStringAttribute(objfile.AttributeNamespacePrefix, "Deprecated", "v1").
		Bytes())

	var callbackErr error
	result, err := Load(locator, Options{
		AllowHeaderFallback: true,
		OnDecodeFailure:     func(err error) { callbackErr = err },
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.State != StateHeaderOnly {
		t.Fatalf("state = %s, want %s", result.State, StateHeaderOnly)
	}
	if callbackErr == nil {
		t.Error("decode-failure callback was not invoked before fallback")
	}
	if len(result.Facts) != 1 || result.Facts[0].Payload != "v1" {
		t.Errorf("facts = %v, want the Deprecated fact", result.Facts)
	}
}

func TestLoadOldFormatVersion(t *testing.T) {
	// An artifact from an incompatible producer surfaces the version
	// mismatch through the callback, then falls back when permitted.
	payload := treePayload(t, sampleUnit())
	payload[5] = 99 // tree document version byte

	locator := writeContainer(t, objfiletest.NewBuilder().
		AddResource(objfile.TreeResourceName, payload).
		Bytes())

	var callbackErr error
	result, err := Load(locator, Options{
		AllowHeaderFallback: true,
		OnDecodeFailure:     func(err error) { callbackErr = err },
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.State != StateHeaderOnly {
		t.Errorf("state = %s, want %s", result.State, StateHeaderOnly)
	}
	if !errors.Is(callbackErr, treebin.ErrUnsupportedVersion) {
		t.Errorf("callback error = %v, want ErrUnsupportedVersion", callbackErr)
	}
}

func TestLoadMalformedContainerIsTerminal(t *testing.T) {
	// Structural corruption (resource payload past the container end)
	// aborts the load even when header fallback is permitted: the
	// container's integrity is gone, not just the tree's.
	locator := writeContainer(t, objfiletest.NewBuilder().
		AddResourceDeclaredLength(objfile.TreeResourceName, []byte("short"), 1<<20).
		AddStringAttribute(objfile.AttributeNamespacePrefix, "Deprecated", "v1").
		Bytes())

	callbackInvoked := false
	result, err := Load(locator, Options{
		AllowHeaderFallback: true,
		OnDecodeFailure:     func(error) { callbackInvoked = true },
	})
	if !errors.Is(err, objfile.ErrMalformed) {
		t.Fatalf("Load = %v, want ErrMalformed", err)
	}
	if result.State != StateFailed {
		t.Errorf("state = %s, want %s", result.State, StateFailed)
	}
	if callbackInvoked {
		t.Error("decode-failure callback invoked for container corruption")
	}
}

func TestLoadInstrumentation(t *testing.T) {
	var events []taskmon.Event
	monitor := taskmon.New(TaskHierarchy, func(event taskmon.Event) {
		events = append(events, event)
	})

	locator := writeContainer(t, objfiletest.NewBuilder().
		AddResource(objfile.TreeResourceName, treePayload(t, sampleUnit())).
		Bytes())

	if _, err := Load(locator, Options{Monitor: monitor}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []taskmon.Event{
		{Type: taskmon.TaskStarted, Task: TaskLoad},
		{Type: taskmon.TaskStarted, Task: TaskExtract, Parent: TaskLoad, HasParent: true},
		{Type: taskmon.TaskEnded, Task: TaskExtract, Parent: TaskLoad, HasParent: true},
		{Type: taskmon.TaskStarted, Task: TaskDecode, Parent: TaskLoad, HasParent: true},
		{Type: taskmon.TaskEnded, Task: TaskDecode, Parent: TaskLoad, HasParent: true},
		{Type: taskmon.TaskEnded, Task: TaskLoad},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events %v, want %d", len(events), events, len(want))
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestLoadOutcomeUnaffectedByInstrumentationFailure(t *testing.T) {
	// A panicking subscriber latches the monitor off but must never
	// change what the load returns.
	monitor := taskmon.New(TaskHierarchy, func(taskmon.Event) {
		panic("broken subscriber")
	})

	unit := sampleUnit()
	locator := writeContainer(t, objfiletest.NewBuilder().
		AddResource(objfile.TreeResourceName, treePayload(t, unit)).
		Bytes())

	result, err := Load(locator, Options{Monitor: monitor})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.State != StateFullTree || !result.Tree.Equal(unit) {
		t.Error("load outcome changed under a failing subscriber")
	}
	if monitor.Failure() == nil {
		t.Error("monitor did not latch the subscriber failure")
	}

	// Later loads with the same latched monitor still work.
	result, err = Load(locator, Options{Monitor: monitor})
	if err != nil || result.State != StateFullTree {
		t.Errorf("second load = (%s, %v), want full tree", result.State, err)
	}
}
