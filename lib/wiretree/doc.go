// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

// Package wiretree implements the field-numbered wire schema for the
// Quill program tree: the alternate, evolution-friendly codec path
// alongside lib/treebin's canonical streamed-document encoding.
//
// The schema is a hierarchy of structs declared independently from
// lib/progtree — deliberately duplicative, so each side's invariants
// stay statically checkable instead of being derived from the other
// via reflection. Every field carries an explicit integer field
// number (CBOR integer keys via keyasint tags). Field numbers are
// stable once assigned: decoders skip numbers they do not know and
// default the ones a document does not carry, giving forward and
// backward compatibility across toolchain versions.
//
// The wire schema implements a representative subset of the canonical
// tree. Canonical fields without a wire counterpart (callable
// comments, custom-type fields) are dropped by [FromCanonical] and
// reconstructed as documented defaults (empty collections) by
// [ToCanonical]; their absence never fails a decode and never
// disturbs the round trip of implemented fields.
//
// Encoding uses CBOR Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length
// items. Same logical tree always produces identical bytes.
package wiretree
