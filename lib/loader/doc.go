// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

// Package loader orchestrates loading a precompiled Quill artifact:
// open the object-file container, extract and decode the embedded
// tree document, and fall back to header attribute facts when the
// full tree is unavailable. It is the facade over lib/objfile and
// lib/treebin that the rest of the toolchain calls.
//
// Each load is a synchronous, self-contained state machine with three
// terminal states:
//
//   - [StateFullTree]: the container embeds a tree resource and it
//     decoded cleanly.
//   - [StateHeaderOnly]: the tree resource is absent, extraction was
//     skipped, or decoding failed with header fallback permitted; the
//     result carries the container's reserved-namespace attribute
//     facts instead. Zero facts is not an error — callers read an
//     empty fact list as "no references".
//   - [StateFailed]: the tree resource exists but did not decode, and
//     the caller did not permit fallback.
//
// The error taxonomy is explicit: a locator that does not resolve to
// a readable byte source fails immediately with [ErrNotFound];
// structural container corruption propagates objfile.ErrMalformed; a
// tree document from an incompatible producer surfaces through the
// optional decode-failure callback before fallback or failure. A load
// never yields a partially filled tree.
//
// Independent loads may run concurrently; each opens and releases its
// own byte source. The only shared collaborator is the injected
// taskmon.Monitor, whose first-failure latch affects instrumentation
// only and never a load outcome.
package loader
