// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

// Package objfile reads the object-file containers the Quill compiler
// emits. The container is a generic carrier: a fixed header pointing
// at a resource directory, type-definition and type-reference tables,
// and a declarative-attribute table. This package never interprets the
// embedded payloads — it locates bytes and hands them to the codecs.
//
// Two read paths serve the artifact loader:
//
//   - Resource extraction ([File.Resource]): follow the resource
//     directory to a named embedded resource and return its
//     length-prefixed payload. Absence — no directory, no entry of
//     that name, or an externally linked implementation — is a normal
//     outcome, reported as a false second return, not an error.
//   - Attribute scanning ([File.ScanAttributes]): enumerate the
//     attribute table, resolve each attribute's constructor to a
//     namespace-qualified type name through the typedef or typeref
//     table, keep the ones under the reserved Quill namespace, and
//     parse their value blobs into (name, payload) facts.
//
// The error split follows the container's integrity model: anything
// structurally inconsistent — offsets or lengths past the container
// end, an unresolvable constructor reference — wraps [ErrMalformed]
// and aborts the operation. A single attribute whose value blob does
// not parse is dropped and the scan continues; unknown future blob
// shapes must not abort a scan.
//
// All multi-byte fields are little-endian. Offsets are absolute file
// offsets. Every read is explicitly bounds-checked against the
// container size; nothing relies on a runtime fault to catch a bad
// offset.
package objfile
