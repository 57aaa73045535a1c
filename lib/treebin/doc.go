// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

// Package treebin implements the canonical binary encoding of the
// Quill program tree: the format the compiler embeds in object-file
// containers and the loader decodes back into a progtree.Unit.
//
// A tree document is a fixed 48-byte header followed by a body:
//
//   - 8-byte magic: "QTREE" + format version byte + 2 reserved bytes
//   - 1-byte compression tag (none, LZ4, or zstd) + 3 reserved bytes
//   - 4-byte little-endian uncompressed body size
//   - 32-byte BLAKE3 keyed digest of the uncompressed body
//
// The body is a streamed document: uvarint counts and lengths, UTF-8
// string bytes, field order fixed by the format version. Reading is
// fully bounds-checked — a count or length that runs past the document
// produces an error rather than relying on a runtime fault. The digest
// is verified on every decode, so a corrupted body is always detected
// before any tree value escapes.
//
// A magic match with an unknown version byte yields
// [ErrUnsupportedVersion], distinct from corruption errors, so callers
// can treat artifacts from older or newer toolchains as a version
// mismatch rather than damage.
//
// Decoding enforces the tree's explicit-state invariant: the two
// top-level collections (namespaces, entry points) are materialized as
// empty slices when their counts are zero, and a decode that would
// leave either unset fails.
package treebin
