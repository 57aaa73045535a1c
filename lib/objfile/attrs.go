// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

package objfile

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ctorKind identifies how an attribute-table entry references its
// constructor's declaring type.
type ctorKind uint8

const (
	// ctorDirectDefinition indexes the typedef table: the attribute
	// type is defined in this container.
	ctorDirectDefinition ctorKind = 1

	// ctorCrossReference indexes the typeref table: the attribute
	// type is imported from another container.
	ctorCrossReference ctorKind = 2
)

// attrBlobProlog is the fixed 2-byte prolog every attribute value
// blob starts with.
var attrBlobProlog = [2]byte{0x01, 0x00}

// Fact is one recovered header fact: the attribute type's name and
// its string payload. Duplicates are permitted; a fact has no
// identity beyond its position in the scan result.
type Fact struct {
	Name    string
	Payload string
}

// ScanAttributes enumerates the container's declarative attributes and
// returns the facts recoverable without decoding the full tree, in
// attribute-table order.
//
// For each attribute the declaring type is resolved through its
// constructor reference: a direct definition resolves via the typedef
// table, a cross reference via the typeref table. Any other
// constructor kind — or an index past its table — means the container
// is non-conformant and the whole scan fails with an error wrapping
// [ErrMalformed]. Silently skipping such entries would mask future
// format additions.
//
// Only attributes whose namespace carries the reserved
// [AttributeNamespacePrefix] are kept. Each kept attribute's value
// blob must be the 2-byte prolog followed by a uvarint-length-prefixed
// UTF-8 string with nothing trailing; a blob that does not parse in
// that shape is dropped and the scan continues, so unknown attribute
// shapes from newer toolchains never abort a scan.
func (f *File) ScanAttributes() ([]Fact, error) {
	if f.attrTableOffset == 0 {
		return []Fact{}, nil
	}

	typeDefs, err := f.readTypeTable(f.typeDefOffset, "typedef table")
	if err != nil {
		return nil, err
	}
	typeRefs, err := f.readTypeTable(f.typeRefOffset, "typeref table")
	if err != nil {
		return nil, err
	}

	r, err := f.newTableReader(f.attrTableOffset, "attribute table")
	if err != nil {
		return nil, err
	}
	count, err := r.readUint32("attribute count")
	if err != nil {
		return nil, err
	}

	facts := []Fact{}
	for i := uint32(0); i < count; i++ {
		kindByte, err := r.readUint8(fmt.Sprintf("attribute %d constructor kind", i))
		if err != nil {
			return nil, err
		}
		index, err := r.readUint32(fmt.Sprintf("attribute %d constructor index", i))
		if err != nil {
			return nil, err
		}
		blobLen, err := r.readUint32(fmt.Sprintf("attribute %d blob length", i))
		if err != nil {
			return nil, err
		}
		blob, err := r.readBytes(int(blobLen), fmt.Sprintf("attribute %d blob", i))
		if err != nil {
			return nil, err
		}

		var declaring typeName
		switch kind := ctorKind(kindByte); kind {
		case ctorDirectDefinition:
			if int(index) >= len(typeDefs) {
				return nil, fmt.Errorf("attribute %d references typedef %d of %d: %w",
					i, index, len(typeDefs), ErrMalformed)
			}
			declaring = typeDefs[index]
		case ctorCrossReference:
			if int(index) >= len(typeRefs) {
				return nil, fmt.Errorf("attribute %d references typeref %d of %d: %w",
					i, index, len(typeRefs), ErrMalformed)
			}
			declaring = typeRefs[index]
		default:
			// An unknown constructor kind means the whole container
			// follows rules this code does not know.
			return nil, fmt.Errorf("attribute %d has unsupported constructor kind %d: %w",
				i, kindByte, ErrMalformed)
		}

		if !strings.HasPrefix(declaring.namespace, AttributeNamespacePrefix) {
			continue
		}

		payload, ok := parseAttributeBlob(blob)
		if !ok {
			// Lenient per-item: an unparseable value blob drops this
			// attribute only.
			continue
		}
		facts = append(facts, Fact{Name: declaring.name, Payload: payload})
	}

	return facts, nil
}

// parseAttributeBlob parses a value blob: 2-byte prolog, uvarint
// string length, UTF-8 string bytes, nothing trailing.
func parseAttributeBlob(blob []byte) (string, bool) {
	if len(blob) < 2 || blob[0] != attrBlobProlog[0] || blob[1] != attrBlobProlog[1] {
		return "", false
	}
	rest := blob[2:]

	length, n := binary.Uvarint(rest)
	if n <= 0 {
		return "", false
	}
	rest = rest[n:]

	if uint64(len(rest)) != length {
		return "", false
	}
	if !utf8.Valid(rest) {
		return "", false
	}
	return string(rest), true
}
