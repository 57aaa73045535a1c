// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

package objfile

import (
	"encoding/binary"
	"fmt"
)

// resourceEntry is one parsed resource-directory entry.
type resourceEntry struct {
	name       string
	dataOffset uint32
	flags      uint32
}

// Resource locates the named resource and returns its payload bytes.
// The second return reports presence: (nil, false, nil) means the
// container declares no resource directory, no resource of that name
// exists, or the entry is externally linked — all normal outcomes.
// Structural problems (a directory or payload running past the
// container end, a negative payload length) are errors wrapping
// [ErrMalformed]: they signal corruption, never absence.
//
// The payload is length-prefixed at the entry's data offset: a 4-byte
// little-endian signed length followed by exactly that many bytes.
// The returned slice aliases the container data.
func (f *File) Resource(name string) ([]byte, bool, error) {
	if f.resourceDirOffset == 0 {
		return nil, false, nil
	}

	entries, err := f.readResourceDirectory()
	if err != nil {
		return nil, false, err
	}

	for _, entry := range entries {
		if entry.name != name {
			continue
		}
		if entry.flags&resourceFlagExternal != 0 {
			// Externally linked implementation: the directory knows
			// the resource but this container does not embed it.
			return nil, false, nil
		}
		payload, err := f.readResourcePayload(entry)
		if err != nil {
			return nil, false, err
		}
		return payload, true, nil
	}

	return nil, false, nil
}

// readResourceDirectory parses the directory: uint32 count, then
// entries of {name, data offset, flags}.
func (f *File) readResourceDirectory() ([]resourceEntry, error) {
	r, err := f.newTableReader(f.resourceDirOffset, "resource directory")
	if err != nil {
		return nil, err
	}
	count, err := r.readUint32("resource count")
	if err != nil {
		return nil, err
	}
	entries := make([]resourceEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var entry resourceEntry
		if entry.name, err = r.readName(fmt.Sprintf("resource %d name", i)); err != nil {
			return nil, err
		}
		if entry.dataOffset, err = r.readUint32(fmt.Sprintf("resource %d data offset", i)); err != nil {
			return nil, err
		}
		if entry.flags, err = r.readUint32(fmt.Sprintf("resource %d flags", i)); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// readResourcePayload reads the length-prefixed payload at the
// entry's data offset.
func (f *File) readResourcePayload(entry resourceEntry) ([]byte, error) {
	offset := int64(entry.dataOffset)
	if offset+4 > int64(len(f.data)) {
		return nil, fmt.Errorf("resource %q length prefix at offset %d is past the container end (%d bytes): %w",
			entry.name, offset, len(f.data), ErrMalformed)
	}

	length := int32(binary.LittleEndian.Uint32(f.data[offset : offset+4]))
	if length < 0 {
		return nil, fmt.Errorf("resource %q declares negative length %d: %w", entry.name, length, ErrMalformed)
	}

	start := offset + 4
	if start+int64(length) > int64(len(f.data)) {
		return nil, fmt.Errorf("resource %q payload (%d bytes at offset %d) runs past the container end (%d bytes): %w",
			entry.name, length, start, len(f.data), ErrMalformed)
	}

	return f.data[start : start+int64(length)], nil
}
