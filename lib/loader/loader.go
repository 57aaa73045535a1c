// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/quill-lang/quill/lib/objfile"
	"github.com/quill-lang/quill/lib/progtree"
	"github.com/quill-lang/quill/lib/taskmon"
	"github.com/quill-lang/quill/lib/treebin"
)

// Task names the loader reports to its instrumentation collaborator,
// and the fixed hierarchy relating them. Callers construct their
// monitor with this table:
//
//	monitor := taskmon.New(loader.TaskHierarchy, subscriber)
const (
	TaskLoad       = "artifact.load"
	TaskExtract    = "artifact.extract"
	TaskDecode     = "artifact.decode"
	TaskHeaderScan = "artifact.headerscan"
)

// TaskHierarchy maps each loader task to its parent task.
var TaskHierarchy = map[string]string{
	TaskExtract:    TaskLoad,
	TaskDecode:     TaskLoad,
	TaskHeaderScan: TaskLoad,
}

// ErrNotFound is returned when a locator does not resolve to a
// readable byte source. It is raised before any container parsing and
// is never retried — distinct from a malformed container and from an
// old-format tree document.
var ErrNotFound = errors.New("artifact not found")

// Locator identifies one artifact to load: an opaque caller-supplied
// ID and the path of the container on the local filesystem. Locators
// are immutable and live for a single load call.
type Locator struct {
	ID   string
	Path string
}

// State is the terminal state of a load.
type State int

const (
	// StateFailed is the terminal state when the load could not
	// produce a tree or header facts.
	StateFailed State = iota

	// StateFullTree means the embedded tree document decoded cleanly.
	StateFullTree

	// StateHeaderOnly means the result carries header facts instead
	// of a tree. The fact list may be empty ("no references").
	StateHeaderOnly
)

// String returns the human-readable name of a load state.
func (s State) String() string {
	switch s {
	case StateFailed:
		return "failed"
	case StateFullTree:
		return "full tree"
	case StateHeaderOnly:
		return "header only"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Result is the outcome of one load.
type Result struct {
	// State is the terminal state. Tree is non-nil exactly when State
	// is StateFullTree; Facts is non-nil exactly when State is
	// StateHeaderOnly.
	State State

	// ArtifactID echoes the locator's ID.
	ArtifactID string

	// ContentID is the container's content identity (objfile
	// ContentID form), for log correlation and cache keying. Empty
	// when the container could not be opened.
	ContentID string

	// Tree is the decoded canonical program tree.
	Tree *progtree.Unit

	// Facts are the header facts recovered by the attribute scan, in
	// source-table order.
	Facts []objfile.Fact
}

// Success reports whether the load reached a usable terminal state.
func (r Result) Success() bool {
	return r.State != StateFailed
}

// Options control one load call. The zero value attempts full-tree
// extraction with no fallback, no instrumentation, and default
// logging.
type Options struct {
	// SkipTree skips resource extraction entirely and goes straight
	// to the header-only path.
	SkipTree bool

	// AllowHeaderFallback permits falling back to the header-only
	// path when the tree resource is present but fails to decode.
	// Without it, a decode failure is terminal.
	AllowHeaderFallback bool

	// OnDecodeFailure, if set, is invoked with the decode error when
	// the tree resource is present but undecodable (typically an
	// incompatible producer version), before fallback or failure.
	OnDecodeFailure func(error)

	// Monitor receives task start/end events. Nil means no
	// instrumentation.
	Monitor *taskmon.Monitor

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Load runs the load state machine for one artifact. The container
// byte source is opened at the start and released on every exit path.
// The returned error is non-nil exactly when Result.State is
// StateFailed.
func Load(locator Locator, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("artifact", locator.ID)

	opts.Monitor.TaskStart(TaskLoad)
	defer opts.Monitor.TaskEnd(TaskLoad)

	failed := Result{State: StateFailed, ArtifactID: locator.ID}

	data, err := readSource(locator.Path)
	if err != nil {
		return failed, fmt.Errorf("loading artifact %s: %w", locator.ID, err)
	}

	file, err := objfile.New(data)
	if err != nil {
		return failed, fmt.Errorf("loading artifact %s: %w", locator.ID, err)
	}

	contentID := file.ContentID()
	failed.ContentID = contentID
	logger = logger.With("content_id", contentID)

	if !opts.SkipTree {
		opts.Monitor.TaskStart(TaskExtract)
		payload, present, err := file.Resource(objfile.TreeResourceName)
		opts.Monitor.TaskEnd(TaskExtract)
		if err != nil {
			return failed, fmt.Errorf("loading artifact %s: %w", locator.ID, err)
		}

		if present {
			opts.Monitor.TaskStart(TaskDecode)
			tree, err := treebin.Decode(payload)
			opts.Monitor.TaskEnd(TaskDecode)
			if err == nil {
				logger.Debug("loaded full tree", "namespaces", len(tree.Namespaces))
				return Result{
					State:      StateFullTree,
					ArtifactID: locator.ID,
					ContentID:  contentID,
					Tree:       tree,
				}, nil
			}

			if opts.OnDecodeFailure != nil {
				opts.OnDecodeFailure(err)
			}
			if !opts.AllowHeaderFallback {
				return failed, fmt.Errorf("loading artifact %s: decoding tree resource: %w", locator.ID, err)
			}
			logger.Debug("tree decode failed, falling back to header scan", "error", err)
		} else {
			logger.Debug("tree resource absent, scanning header attributes")
		}
	}

	opts.Monitor.TaskStart(TaskHeaderScan)
	facts, err := file.ScanAttributes()
	opts.Monitor.TaskEnd(TaskHeaderScan)
	if err != nil {
		return failed, fmt.Errorf("loading artifact %s: scanning header attributes: %w", locator.ID, err)
	}

	logger.Debug("loaded header facts", "facts", len(facts))
	return Result{
		State:      StateHeaderOnly,
		ArtifactID: locator.ID,
		ContentID:  contentID,
		Facts:      facts,
	}, nil
}

// readSource opens and fully reads the container byte source, with
// scoped acquisition: the file handle is released before returning on
// every path. A path that cannot be opened or read wraps ErrNotFound.
func readSource(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrNotFound, path, err)
	}
	return data, nil
}
