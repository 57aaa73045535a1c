// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

package treebin

import (
	"encoding/binary"
	"fmt"
	"math"
)

// maxStringLen caps a single string field. A length beyond this is
// treated as corruption before any allocation happens.
const maxStringLen = 16 << 20 // 16 MiB

// docWriter builds a streamed document body in memory.
type docWriter struct {
	buf []byte
}

func (w *docWriter) writeUvarint(v uint64) {
	w.buf = binary.AppendUvarint(w.buf, v)
}

func (w *docWriter) writeString(s string) {
	w.writeUvarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *docWriter) writeByte(b byte) {
	w.buf = append(w.buf, b)
}

// docReader consumes a streamed document body with explicit bounds
// checks. Every read error names the field being read so corruption
// reports point at a location in the document.
type docReader struct {
	data []byte
	pos  int
}

func (r *docReader) readUvarint(field string) (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("reading %s: truncated or malformed varint at offset %d", field, r.pos)
	}
	r.pos += n
	return v, nil
}

// readCount reads a uvarint and verifies it fits in an int and cannot
// exceed the remaining document (each counted item needs at least one
// byte), so a corrupt count fails before any allocation.
func (r *docReader) readCount(field string) (int, error) {
	v, err := r.readUvarint(field)
	if err != nil {
		return 0, err
	}
	if v > uint64(math.MaxInt) || int(v) > len(r.data)-r.pos {
		return 0, fmt.Errorf("reading %s: count %d exceeds remaining document (%d bytes)",
			field, v, len(r.data)-r.pos)
	}
	return int(v), nil
}

func (r *docReader) readString(field string) (string, error) {
	length, err := r.readUvarint(field)
	if err != nil {
		return "", err
	}
	if length > maxStringLen {
		return "", fmt.Errorf("reading %s: string length %d exceeds limit", field, length)
	}
	if int(length) > len(r.data)-r.pos {
		return "", fmt.Errorf("reading %s: string length %d exceeds remaining document (%d bytes)",
			field, length, len(r.data)-r.pos)
	}
	s := string(r.data[r.pos : r.pos+int(length)])
	r.pos += int(length)
	return s, nil
}

func (r *docReader) readByte(field string) (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("reading %s: document truncated at offset %d", field, r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// remaining returns the number of unconsumed body bytes.
func (r *docReader) remaining() int {
	return len(r.data) - r.pos
}
