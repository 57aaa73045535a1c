// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

// Package objfiletest assembles object-file container bytes for
// tests. Writing containers is not part of the shipped loader surface
// (the compiler back end owns that), so the writer lives here as test
// support, including knobs for producing deliberately inconsistent
// containers that exercise the reader's corruption handling.
package objfiletest

import (
	"encoding/binary"
)

// Constructor-reference kinds as stored in the attribute table. These
// mirror the container format constants; tests pass them to
// [Builder.AddAttribute].
const (
	KindDirectDefinition uint8 = 1
	KindCrossReference   uint8 = 2
)

type resource struct {
	name     string
	payload  []byte
	external bool

	// declaredLength overrides the payload length prefix when
	// overrideLength is set, for bounds-violation fixtures.
	declaredLength int32
	overrideLength bool
}

type typeEntry struct {
	namespace string
	name      string
}

type attribute struct {
	kind  uint8
	index uint32
	blob  []byte
}

// Builder accumulates container contents and assembles the byte
// layout: header, resource payloads, resource directory, typedef
// table, typeref table, attribute table. Tables the builder holds no
// entries for are omitted (zero offset in the header).
type Builder struct {
	resources  []resource
	typeDefs   []typeEntry
	typeRefs   []typeEntry
	attributes []attribute
}

// NewBuilder creates an empty container builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddResource embeds a named resource with the given payload.
func (b *Builder) AddResource(name string, payload []byte) *Builder {
	b.resources = append(b.resources, resource{name: name, payload: payload})
	return b
}

// AddExternalResource adds a directory entry flagged as externally
// linked: the name is known but no payload is embedded.
func (b *Builder) AddExternalResource(name string) *Builder {
	b.resources = append(b.resources, resource{name: name, external: true})
	return b
}

// AddResourceDeclaredLength embeds a resource whose length prefix
// declares declaredLength regardless of the actual payload size. Use
// it to fabricate out-of-bounds and negative-length corruption.
func (b *Builder) AddResourceDeclaredLength(name string, payload []byte, declaredLength int32) *Builder {
	b.resources = append(b.resources, resource{
		name: name, payload: payload,
		declaredLength: declaredLength, overrideLength: true,
	})
	return b
}

// DefineType appends a typedef table entry and returns its index.
func (b *Builder) DefineType(namespace, name string) uint32 {
	b.typeDefs = append(b.typeDefs, typeEntry{namespace: namespace, name: name})
	return uint32(len(b.typeDefs) - 1)
}

// ReferType appends a typeref table entry and returns its index.
func (b *Builder) ReferType(namespace, name string) uint32 {
	b.typeRefs = append(b.typeRefs, typeEntry{namespace: namespace, name: name})
	return uint32(len(b.typeRefs) - 1)
}

// AddAttribute appends an attribute-table entry with an arbitrary
// constructor kind, constructor index, and value blob.
func (b *Builder) AddAttribute(kind uint8, index uint32, blob []byte) *Builder {
	b.attributes = append(b.attributes, attribute{kind: kind, index: index, blob: blob})
	return b
}

// AddStringAttribute defines an attribute type in the typedef table
// and attaches one attribute with a well-formed string blob — the
// common case for header-fact fixtures.
func (b *Builder) AddStringAttribute(namespace, name, payload string) *Builder {
	index := b.DefineType(namespace, name)
	return b.AddAttribute(KindDirectDefinition, index, StringBlob(payload))
}

// StringBlob builds a well-formed attribute value blob: the 2-byte
// prolog, a uvarint length, and the payload's UTF-8 bytes.
func StringBlob(payload string) []byte {
	blob := []byte{0x01, 0x00}
	blob = binary.AppendUvarint(blob, uint64(len(payload)))
	return append(blob, payload...)
}

// Bytes assembles the container.
func (b *Builder) Bytes() []byte {
	out := make([]byte, 24)
	copy(out, []byte{'Q', 'O', 'B', 'J', 1, 0, 0, 0})

	// Resource payloads directly after the header, recording where
	// each lands for the directory entries.
	dataOffsets := make([]uint32, len(b.resources))
	for i, res := range b.resources {
		if res.external {
			continue
		}
		dataOffsets[i] = uint32(len(out))
		length := int32(len(res.payload))
		if res.overrideLength {
			length = res.declaredLength
		}
		out = binary.LittleEndian.AppendUint32(out, uint32(length))
		out = append(out, res.payload...)
	}

	var resourceDirOffset uint32
	if len(b.resources) > 0 {
		resourceDirOffset = uint32(len(out))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(b.resources)))
		for i, res := range b.resources {
			out = appendName(out, res.name)
			out = binary.LittleEndian.AppendUint32(out, dataOffsets[i])
			var flags uint32
			if res.external {
				flags = 1
			}
			out = binary.LittleEndian.AppendUint32(out, flags)
		}
	}

	typeDefOffset, withDefs := appendTypeTable(out, b.typeDefs)
	out = withDefs
	typeRefOffset, withRefs := appendTypeTable(out, b.typeRefs)
	out = withRefs

	var attrTableOffset uint32
	if len(b.attributes) > 0 {
		attrTableOffset = uint32(len(out))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(b.attributes)))
		for _, attr := range b.attributes {
			out = append(out, attr.kind)
			out = binary.LittleEndian.AppendUint32(out, attr.index)
			out = binary.LittleEndian.AppendUint32(out, uint32(len(attr.blob)))
			out = append(out, attr.blob...)
		}
	}

	binary.LittleEndian.PutUint32(out[8:12], resourceDirOffset)
	binary.LittleEndian.PutUint32(out[12:16], typeDefOffset)
	binary.LittleEndian.PutUint32(out[16:20], typeRefOffset)
	binary.LittleEndian.PutUint32(out[20:24], attrTableOffset)
	return out
}

func appendTypeTable(out []byte, entries []typeEntry) (uint32, []byte) {
	if len(entries) == 0 {
		return 0, out
	}
	offset := uint32(len(out))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(entries)))
	for _, entry := range entries {
		out = appendName(out, entry.namespace)
		out = appendName(out, entry.name)
	}
	return offset, out
}

func appendName(out []byte, name string) []byte {
	out = binary.LittleEndian.AppendUint16(out, uint16(len(name)))
	return append(out, name...)
}
