// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

package treebin

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/quill-lang/quill/lib/progtree"
)

// Format constants.
const (
	// formatVersion is the tree document format version carried in
	// the magic. Version 1 is the initial format.
	formatVersion = 1

	// headerSize is the fixed document header: 8-byte magic + 1-byte
	// compression tag + 3 reserved bytes + 4-byte uncompressed size
	// + 32-byte body digest.
	headerSize = 48
)

// documentMagic is the 8-byte tree document signature.
var documentMagic = [8]byte{'Q', 'T', 'R', 'E', 'E', formatVersion, 0, 0}

// digestKey is the 32-byte BLAKE3 key for the document-body digest.
// Domain separation keeps tree-document digests from colliding with
// hashes of the same bytes in other Quill contexts. The byte values
// are the ASCII encoding of the domain name, zero-padded to 32 bytes.
var digestKey = [32]byte{
	'q', 'u', 'i', 'l', 'l', '.', 't', 'r', 'e', 'e', 'b', 'i', 'n', '.',
	'd', 'o', 'c', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// ErrUnsupportedVersion is returned by [Decode] when the document
// magic matches but the format version byte is one this code does not
// support — an artifact produced by an incompatible toolchain, not a
// corrupted one.
var ErrUnsupportedVersion = errors.New("unsupported tree document version")

// Digest is the 32-byte BLAKE3 keyed digest of a document body.
type Digest [32]byte

// bodyDigest computes the document-domain digest of an uncompressed
// body.
func bodyDigest(body []byte) Digest {
	// NewKeyed requires exactly 32 bytes, which the fixed-size key
	// guarantees, so the error path is unreachable.
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("treebin: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(body)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// Encode serializes the unit as a tree document. The unit must satisfy
// its structural invariants ([progtree.Unit.Validate]); violations are
// reported before any bytes are produced. The requested compression is
// applied only when it actually shrinks the body — otherwise the body
// is stored raw with [CompressionNone].
func Encode(unit *progtree.Unit, compression CompressionTag) ([]byte, error) {
	if unit == nil {
		return nil, fmt.Errorf("encoding tree document: unit is nil")
	}
	if err := unit.Validate(); err != nil {
		return nil, fmt.Errorf("encoding tree document: %w", err)
	}

	var w docWriter
	encodeUnit(&w, unit)
	body := w.buf

	digest := bodyDigest(body)

	stored, tag, err := compressBody(body, compression)
	if err != nil {
		return nil, fmt.Errorf("encoding tree document: %w", err)
	}

	out := make([]byte, 0, headerSize+len(stored))
	out = append(out, documentMagic[:]...)
	out = append(out, byte(tag), 0, 0, 0)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(body)))
	out = append(out, digest[:]...)
	out = append(out, stored...)
	return out, nil
}

// Decode parses a tree document and reconstructs the unit. Returns
// [ErrUnsupportedVersion] for documents with a recognized magic but an
// incompatible version byte. Any structural inconsistency — truncated
// header, digest mismatch, malformed body, or a decoded unit violating
// the explicit-state invariant — is an error; Decode never returns a
// partially filled unit.
func Decode(data []byte) (*progtree.Unit, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("tree document is %d bytes, shorter than the %d-byte header", len(data), headerSize)
	}

	var magic [8]byte
	copy(magic[:], data[:8])
	if magic != documentMagic {
		if magic[0] == 'Q' && magic[1] == 'T' && magic[2] == 'R' &&
			magic[3] == 'E' && magic[4] == 'E' {
			return nil, fmt.Errorf("tree document version %d (this code supports version %d): %w",
				magic[5], formatVersion, ErrUnsupportedVersion)
		}
		return nil, fmt.Errorf("not a tree document (invalid magic bytes)")
	}

	tag := CompressionTag(data[8])
	uncompressedSize := binary.LittleEndian.Uint32(data[12:16])
	var digest Digest
	copy(digest[:], data[16:headerSize])

	body, err := decompressBody(data[headerSize:], tag, int(uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("decoding tree document body: %w", err)
	}

	if actual := bodyDigest(body); actual != digest {
		return nil, fmt.Errorf("tree document digest mismatch: header %x, body %x", digest[:6], actual[:6])
	}

	r := &docReader{data: body}
	unit, err := decodeUnit(r)
	if err != nil {
		return nil, fmt.Errorf("decoding tree document: %w", err)
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("decoding tree document: %d trailing bytes after unit", r.remaining())
	}
	if err := unit.Validate(); err != nil {
		return nil, fmt.Errorf("decoded tree document is inconsistent: %w", err)
	}
	return unit, nil
}

// encodeUnit writes the unit body. Field order here is the format:
// namespaces, documentation (sorted by file name so identical units
// always produce identical bytes), entry points.
func encodeUnit(w *docWriter, unit *progtree.Unit) {
	w.writeUvarint(uint64(len(unit.Namespaces)))
	for _, ns := range unit.Namespaces {
		w.writeString(ns.Name)
		w.writeUvarint(uint64(len(ns.Elements)))
		for _, element := range ns.Elements {
			encodeElement(w, element)
		}
	}

	files := make([]string, 0, len(unit.Documentation))
	for file := range unit.Documentation {
		files = append(files, file)
	}
	sort.Strings(files)
	w.writeUvarint(uint64(len(files)))
	for _, file := range files {
		w.writeString(file)
		w.writeString(unit.Documentation[file])
	}

	w.writeUvarint(uint64(len(unit.EntryPoints)))
	for _, entry := range unit.EntryPoints {
		w.writeString(entry.Namespace)
		w.writeString(entry.Name)
	}
}

func encodeElement(w *docWriter, element progtree.Element) {
	w.writeByte(byte(element.Kind))
	switch element.Kind {
	case progtree.ElementCallable:
		c := element.Callable
		w.writeString(c.Name)
		encodeSpan(w, c.Span)
		w.writeUvarint(uint64(c.Modifiers))
		w.writeUvarint(uint64(len(c.Parameters)))
		for _, p := range c.Parameters {
			w.writeString(p.Name)
			w.writeString(p.TypeName)
		}
		w.writeString(c.ReturnType)
		w.writeUvarint(uint64(len(c.Comments)))
		for _, comment := range c.Comments {
			w.writeString(comment)
		}
	case progtree.ElementCustomType:
		t := element.CustomType
		w.writeString(t.Name)
		encodeSpan(w, t.Span)
		w.writeUvarint(uint64(t.Modifiers))
		w.writeString(t.BaseName)
		w.writeUvarint(uint64(len(t.Fields)))
		for _, f := range t.Fields {
			w.writeString(f.Name)
			w.writeString(f.TypeName)
		}
	}
}

func encodeSpan(w *docWriter, span progtree.Span) {
	w.writeUvarint(uint64(span.Start.Line))
	w.writeUvarint(uint64(span.Start.Column))
	w.writeUvarint(uint64(span.End.Line))
	w.writeUvarint(uint64(span.End.Column))
}

func decodeUnit(r *docReader) (*progtree.Unit, error) {
	unit := progtree.NewUnit()

	namespaceCount, err := r.readCount("namespace count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < namespaceCount; i++ {
		ns := progtree.Namespace{Elements: []progtree.Element{}}
		if ns.Name, err = r.readString("namespace name"); err != nil {
			return nil, err
		}
		elementCount, err := r.readCount("element count")
		if err != nil {
			return nil, err
		}
		for j := 0; j < elementCount; j++ {
			element, err := decodeElement(r)
			if err != nil {
				return nil, fmt.Errorf("namespace %s: %w", ns.Name, err)
			}
			ns.Elements = append(ns.Elements, element)
		}
		unit.Namespaces = append(unit.Namespaces, ns)
	}

	docCount, err := r.readCount("documentation count")
	if err != nil {
		return nil, err
	}
	if docCount > 0 {
		unit.Documentation = make(map[string]string, docCount)
	}
	for i := 0; i < docCount; i++ {
		file, err := r.readString("documentation file name")
		if err != nil {
			return nil, err
		}
		text, err := r.readString("documentation text")
		if err != nil {
			return nil, err
		}
		unit.Documentation[file] = text
	}

	entryCount, err := r.readCount("entry point count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < entryCount; i++ {
		var entry progtree.QualifiedName
		if entry.Namespace, err = r.readString("entry point namespace"); err != nil {
			return nil, err
		}
		if entry.Name, err = r.readString("entry point name"); err != nil {
			return nil, err
		}
		unit.EntryPoints = append(unit.EntryPoints, entry)
	}

	return unit, nil
}

func decodeElement(r *docReader) (progtree.Element, error) {
	kindByte, err := r.readByte("element kind")
	if err != nil {
		return progtree.Element{}, err
	}

	switch kind := progtree.ElementKind(kindByte); kind {
	case progtree.ElementCallable:
		c := &progtree.Callable{Parameters: []progtree.Parameter{}, Comments: []string{}}
		if c.Name, err = r.readString("callable name"); err != nil {
			return progtree.Element{}, err
		}
		if c.Span, err = decodeSpan(r); err != nil {
			return progtree.Element{}, err
		}
		modifiers, err := r.readUvarint("callable modifiers")
		if err != nil {
			return progtree.Element{}, err
		}
		c.Modifiers = progtree.Modifiers(modifiers)
		paramCount, err := r.readCount("parameter count")
		if err != nil {
			return progtree.Element{}, err
		}
		for i := 0; i < paramCount; i++ {
			var p progtree.Parameter
			if p.Name, err = r.readString("parameter name"); err != nil {
				return progtree.Element{}, err
			}
			if p.TypeName, err = r.readString("parameter type"); err != nil {
				return progtree.Element{}, err
			}
			c.Parameters = append(c.Parameters, p)
		}
		if c.ReturnType, err = r.readString("return type"); err != nil {
			return progtree.Element{}, err
		}
		commentCount, err := r.readCount("comment count")
		if err != nil {
			return progtree.Element{}, err
		}
		for i := 0; i < commentCount; i++ {
			comment, err := r.readString("comment")
			if err != nil {
				return progtree.Element{}, err
			}
			c.Comments = append(c.Comments, comment)
		}
		return progtree.Element{Kind: kind, Callable: c}, nil

	case progtree.ElementCustomType:
		t := &progtree.CustomType{Fields: []progtree.Field{}}
		if t.Name, err = r.readString("custom type name"); err != nil {
			return progtree.Element{}, err
		}
		if t.Span, err = decodeSpan(r); err != nil {
			return progtree.Element{}, err
		}
		modifiers, err := r.readUvarint("custom type modifiers")
		if err != nil {
			return progtree.Element{}, err
		}
		t.Modifiers = progtree.Modifiers(modifiers)
		if t.BaseName, err = r.readString("base type name"); err != nil {
			return progtree.Element{}, err
		}
		fieldCount, err := r.readCount("field count")
		if err != nil {
			return progtree.Element{}, err
		}
		for i := 0; i < fieldCount; i++ {
			var f progtree.Field
			if f.Name, err = r.readString("field name"); err != nil {
				return progtree.Element{}, err
			}
			if f.TypeName, err = r.readString("field type"); err != nil {
				return progtree.Element{}, err
			}
			t.Fields = append(t.Fields, f)
		}
		return progtree.Element{Kind: kind, CustomType: t}, nil

	default:
		return progtree.Element{}, fmt.Errorf("unknown element kind %d", kindByte)
	}
}

func decodeSpan(r *docReader) (progtree.Span, error) {
	var span progtree.Span
	fields := []struct {
		name string
		dst  *int
	}{
		{"span start line", &span.Start.Line},
		{"span start column", &span.Start.Column},
		{"span end line", &span.End.Line},
		{"span end column", &span.End.Column},
	}
	for _, f := range fields {
		v, err := r.readUvarint(f.name)
		if err != nil {
			return progtree.Span{}, err
		}
		*f.dst = int(v)
	}
	return span, nil
}
