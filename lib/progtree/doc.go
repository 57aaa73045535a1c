// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

// Package progtree defines the canonical in-memory representation of a
// compiled Quill unit: the program tree the compiler front end produces
// and the artifact loader reconstructs from precompiled containers.
//
// The tree is a plain value graph. A [Unit] holds an ordered sequence
// of namespaces, each namespace an ordered sequence of elements, where
// an element is exactly one of a callable or a custom type (selected by
// an explicit kind discriminant). Positions, spans, and qualified names
// are small value types copied field-by-field by every consumer —
// nothing in this package transforms them.
//
// Two invariants matter to consumers:
//
//   - Unit.Namespaces and Unit.EntryPoints are always in an explicit
//     state: an empty unit carries empty (non-nil) slices, never nil.
//     Codecs treat a nil collection after decode as a decode failure.
//   - An [Element] has exactly one payload populated, matching its
//     Kind. [Element.Validate] checks this; codec and conversion paths
//     fail fast on a mismatch rather than silently correcting it.
//
// Binary codecs for the tree live elsewhere: lib/treebin implements the
// canonical streamed-document encoding, lib/wiretree the field-numbered
// wire schema and the mapping between the two. This package has no
// dependencies on other Quill packages.
package progtree
