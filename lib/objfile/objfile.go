// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

package objfile

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

// Container format constants.
const (
	// containerVersion is the container format version carried in the
	// magic. Version 1 is the initial format.
	containerVersion = 1

	// headerSize is the fixed header: 8-byte magic + four 4-byte
	// little-endian table offsets (resource directory, typedef table,
	// typeref table, attribute table). A zero offset means the table
	// is absent.
	headerSize = 24

	// TreeResourceName is the reserved resource name under which the
	// compiler embeds the canonical tree document.
	TreeResourceName = "quill.tree"

	// AttributeNamespacePrefix is the reserved namespace prefix for
	// toolchain attributes. ScanAttributes keeps only attributes
	// whose declaring type's namespace starts with this prefix.
	AttributeNamespacePrefix = "Quill.Metadata"
)

// containerMagic is the 8-byte container file signature: "QOBJ" +
// version byte + 3 reserved bytes.
var containerMagic = [8]byte{'Q', 'O', 'B', 'J', containerVersion, 0, 0, 0}

// resourceFlagExternal marks a resource whose implementation lives
// outside this container. The directory entry exists but there is no
// embedded payload to extract.
const resourceFlagExternal uint32 = 1 << 0

// ErrMalformed marks structural inconsistency in a container: a
// truncated header or table, an offset or length running past the
// container end, or an attribute constructor that cannot be resolved.
// Distinct from "resource absent", which is a normal outcome of
// extraction, and from decode failures of the embedded payload, which
// belong to the codec layers.
var ErrMalformed = errors.New("malformed container")

// contentIDKey is the 32-byte BLAKE3 key for container content IDs
// (ASCII domain name, zero-padded), keeping container IDs separate
// from tree-document digests over the same bytes.
var contentIDKey = [32]byte{
	'q', 'u', 'i', 'l', 'l', '.', 'o', 'b', 'j', 'f', 'i', 'l', 'e', '.',
	'c', 'o', 'n', 't', 'a', 'i', 'n', 'e', 'r', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// File is an opened container. It holds the full container bytes;
// table parsing happens on access so that opening stays cheap for the
// header-only path.
type File struct {
	data []byte

	resourceDirOffset uint32
	typeDefOffset     uint32
	typeRefOffset     uint32
	attrTableOffset   uint32
}

// New parses the container header over data. The slice is retained,
// not copied — the caller must not modify it while the File is in
// use. Returns an error wrapping [ErrMalformed] for data that is not
// a supported container.
func New(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("container is %d bytes, shorter than the %d-byte header: %w",
			len(data), headerSize, ErrMalformed)
	}

	var magic [8]byte
	copy(magic[:], data[:8])
	if magic != containerMagic {
		if magic[0] == 'Q' && magic[1] == 'O' && magic[2] == 'B' && magic[3] == 'J' {
			return nil, fmt.Errorf("container version %d is not supported (this code supports version %d): %w",
				magic[4], containerVersion, ErrMalformed)
		}
		return nil, fmt.Errorf("not a Quill container (invalid magic bytes): %w", ErrMalformed)
	}

	return &File{
		data:              data,
		resourceDirOffset: binary.LittleEndian.Uint32(data[8:12]),
		typeDefOffset:     binary.LittleEndian.Uint32(data[12:16]),
		typeRefOffset:     binary.LittleEndian.Uint32(data[16:20]),
		attrTableOffset:   binary.LittleEndian.Uint32(data[20:24]),
	}, nil
}

// Size returns the container size in bytes.
func (f *File) Size() int {
	return len(f.data)
}

// ContentID returns the container's content identity: "obj-" followed
// by the first 12 hex characters of the container-domain BLAKE3 hash
// of the full container bytes. Used for log correlation and cache
// keying, never for lookup inside the container.
func (f *File) ContentID() string {
	hasher, err := blake3.NewKeyed(contentIDKey[:])
	if err != nil {
		panic("objfile: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(f.data)
	sum := hasher.Sum(nil)
	return "obj-" + hex.EncodeToString(sum[:6])
}

// tableReader walks a table region of the container with explicit
// bounds checks. Every failure wraps ErrMalformed and names the field
// being read.
type tableReader struct {
	data []byte
	pos  int
}

// newTableReader positions a reader at an absolute container offset.
func (f *File) newTableReader(offset uint32, table string) (*tableReader, error) {
	if int64(offset) >= int64(len(f.data)) {
		return nil, fmt.Errorf("%s offset %d is past the container end (%d bytes): %w",
			table, offset, len(f.data), ErrMalformed)
	}
	return &tableReader{data: f.data, pos: int(offset)}, nil
}

func (r *tableReader) readUint8(field string) (uint8, error) {
	if r.pos+1 > len(r.data) {
		return 0, fmt.Errorf("reading %s: container truncated at offset %d: %w", field, r.pos, ErrMalformed)
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *tableReader) readUint16(field string) (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, fmt.Errorf("reading %s: container truncated at offset %d: %w", field, r.pos, ErrMalformed)
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *tableReader) readUint32(field string) (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("reading %s: container truncated at offset %d: %w", field, r.pos, ErrMalformed)
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *tableReader) readBytes(length int, field string) ([]byte, error) {
	if length > len(r.data)-r.pos {
		return nil, fmt.Errorf("reading %s: %d bytes requested with %d remaining: %w",
			field, length, len(r.data)-r.pos, ErrMalformed)
	}
	b := r.data[r.pos : r.pos+length]
	r.pos += length
	return b, nil
}

// readName reads a uint16-length-prefixed string.
func (r *tableReader) readName(field string) (string, error) {
	length, err := r.readUint16(field + " length")
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(int(length), field)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readTypeTable reads a typedef or typeref table: uint32 count, then
// {namespace, name} string pairs.
func (f *File) readTypeTable(offset uint32, table string) ([]typeName, error) {
	if offset == 0 {
		return nil, nil
	}
	r, err := f.newTableReader(offset, table)
	if err != nil {
		return nil, err
	}
	count, err := r.readUint32(table + " count")
	if err != nil {
		return nil, err
	}
	entries := make([]typeName, 0, count)
	for i := uint32(0); i < count; i++ {
		var entry typeName
		if entry.namespace, err = r.readName(fmt.Sprintf("%s %d namespace", table, i)); err != nil {
			return nil, err
		}
		if entry.name, err = r.readName(fmt.Sprintf("%s %d name", table, i)); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// typeName is a resolved (namespace, name) pair from the typedef or
// typeref table.
type typeName struct {
	namespace string
	name      string
}
