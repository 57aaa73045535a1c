// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

package treebin

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/quill-lang/quill/lib/progtree"
)

// sampleUnit builds a tree exercising every encoded field.
func sampleUnit() *progtree.Unit {
	unit := progtree.NewUnit()
	unit.Namespaces = append(unit.Namespaces,
		progtree.Namespace{
			Name: "Foo.Core",
			Elements: []progtree.Element{
				{Kind: progtree.ElementCallable, Callable: &progtree.Callable{
					Name: "Run",
					Span: progtree.Span{
						Start: progtree.Position{Line: 10, Column: 1},
						End:   progtree.Position{Line: 42, Column: 2},
					},
					Modifiers: progtree.ModifierPublic | progtree.ModifierStatic,
					Parameters: []progtree.Parameter{
						{Name: "input", TypeName: "String"},
						{Name: "count", TypeName: "Int"},
					},
					ReturnType: "Unit",
					Comments:   []string{"Entry point.", "Second line."},
				}},
				{Kind: progtree.ElementCustomType, CustomType: &progtree.CustomType{
					Name: "Widget",
					Span: progtree.Span{
						Start: progtree.Position{Line: 50, Column: 1},
						End:   progtree.Position{Line: 60, Column: 2},
					},
					Modifiers: progtree.ModifierPublic,
					BaseName:  "Object",
					Fields: []progtree.Field{
						{Name: "size", TypeName: "Int"},
						{Name: "label", TypeName: "String"},
					},
				}},
			},
		},
		progtree.Namespace{Name: "Foo.Empty", Elements: []progtree.Element{}},
	)
	unit.Documentation = map[string]string{
		"core.ql":   "Core module documentation.",
		"widget.ql": "Widget documentation.",
	}
	unit.EntryPoints = append(unit.EntryPoints,
		progtree.QualifiedName{Namespace: "Foo.Core", Name: "Run"})
	return unit
}

func TestRoundTrip(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			unit := sampleUnit()
			data, err := Encode(unit, tag)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !decoded.Equal(unit) {
				t.Error("decoded unit does not equal the original")
			}
		})
	}
}

func TestRoundTripEmptyUnit(t *testing.T) {
	data, err := Encode(progtree.NewUnit(), CompressionNone)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	// The explicit-state invariant: zero counts decode to empty, not
	// nil, collections.
	if decoded.Namespaces == nil {
		t.Error("decoded namespaces are nil, want empty slice")
	}
	if decoded.EntryPoints == nil {
		t.Error("decoded entry points are nil, want empty slice")
	}
}

func TestDecodeIdempotence(t *testing.T) {
	// Decoding identical bytes twice yields structurally equal trees.
	data, err := Encode(sampleUnit(), CompressionZstd)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	first, err := Decode(data)
	if err != nil {
		t.Fatalf("first Decode failed: %v", err)
	}
	second, err := Decode(data)
	if err != nil {
		t.Fatalf("second Decode failed: %v", err)
	}
	if !first.Equal(second) {
		t.Error("two decodes of the same bytes are not structurally equal")
	}
}

func TestEncodeDeterministic(t *testing.T) {
	// Documentation is a map; encoding must still be byte-stable.
	a, err := Encode(sampleUnit(), CompressionNone)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	b, err := Encode(sampleUnit(), CompressionNone)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("two encodes of the same unit produced different bytes")
	}
}

func TestEncodeRejectsUnsetCollections(t *testing.T) {
	_, err := Encode(&progtree.Unit{}, CompressionNone)
	if err == nil {
		t.Fatal("Encode accepted a unit with unset top-level collections")
	}
}

func TestEncodeIncompressibleFallsBackToNone(t *testing.T) {
	// A tiny unit cannot benefit from compression; the stored tag
	// must degrade to none so old readers never see useless framing.
	data, err := Encode(progtree.NewUnit(), CompressionZstd)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if got := CompressionTag(data[8]); got != CompressionNone {
		t.Errorf("stored compression tag = %s, want %s", got, CompressionNone)
	}
}

func TestEncodeCompressibleKeepsRequestedTag(t *testing.T) {
	unit := progtree.NewUnit()
	unit.Documentation = map[string]string{
		"big.ql": strings.Repeat("highly compressible documentation text ", 512),
	}
	data, err := Encode(unit, CompressionZstd)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if got := CompressionTag(data[8]); got != CompressionZstd {
		t.Errorf("stored compression tag = %s, want %s", got, CompressionZstd)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !decoded.Equal(unit) {
		t.Error("decoded unit does not equal the original")
	}
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	data, err := Encode(sampleUnit(), CompressionNone)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	data[5] = 99 // version byte inside the magic

	_, err = Decode(data)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("Decode = %v, want ErrUnsupportedVersion", err)
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	valid, err := Encode(sampleUnit(), CompressionNone)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	tests := []struct {
		name    string
		corrupt func([]byte) []byte
	}{
		{
			name:    "not a tree document",
			corrupt: func(d []byte) []byte { d[0] = 'X'; return d },
		},
		{
			name:    "shorter than header",
			corrupt: func(d []byte) []byte { return d[:headerSize-1] },
		},
		{
			name:    "truncated body",
			corrupt: func(d []byte) []byte { return d[:len(d)-5] },
		},
		{
			name:    "flipped body byte fails digest",
			corrupt: func(d []byte) []byte { d[len(d)-1] ^= 0xFF; return d },
		},
		{
			name: "trailing bytes after unit",
			corrupt: func(d []byte) []byte {
				// Appending to the body changes its length and digest,
				// so rebuild a document whose declared body includes
				// junk past the unit.
				return appendBodyJunk(t, d)
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data := test.corrupt(bytes.Clone(valid))
			if _, err := Decode(data); err == nil {
				t.Fatal("Decode accepted a corrupted document")
			}
		})
	}
}

// appendBodyJunk rebuilds an uncompressed document with extra bytes
// after the encoded unit, keeping the size and digest headers
// consistent so only the trailing-bytes check can reject it.
func appendBodyJunk(t *testing.T, doc []byte) []byte {
	t.Helper()
	if CompressionTag(doc[8]) != CompressionNone {
		t.Fatal("fixture must be uncompressed")
	}
	body := append(bytes.Clone(doc[headerSize:]), 0xAB, 0xCD)
	digest := bodyDigest(body)

	out := bytes.Clone(doc[:headerSize])
	out[12] = byte(len(body))
	out[13] = byte(len(body) >> 8)
	out[14] = byte(len(body) >> 16)
	out[15] = byte(len(body) >> 24)
	copy(out[16:headerSize], digest[:])
	return append(out, body...)
}

func TestDecodeRejectsUnknownElementKind(t *testing.T) {
	// An in-range but unknown element kind byte must fail the decode,
	// not silently skip the element.
	unit := progtree.NewUnit()
	unit.Namespaces = append(unit.Namespaces, progtree.Namespace{
		Name: "Foo",
		Elements: []progtree.Element{
			{Kind: progtree.ElementCallable, Callable: &progtree.Callable{Name: "Run"}},
		},
	})
	doc, err := Encode(unit, CompressionNone)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Body layout: namespace count, name, element count, then the
	// element kind byte.
	body := bytes.Clone(doc[headerSize:])
	kindOffset := 1 + 1 + len("Foo") + 1
	if body[kindOffset] != byte(progtree.ElementCallable) {
		t.Fatalf("fixture drift: byte at %d is %d, want the element kind", kindOffset, body[kindOffset])
	}
	body[kindOffset] = 0x7E
	digest := bodyDigest(body)

	data := bytes.Clone(doc[:headerSize])
	copy(data[16:headerSize], digest[:])
	data = append(data, body...)

	_, err = Decode(data)
	if err == nil || !strings.Contains(err.Error(), "unknown element kind") {
		t.Fatalf("Decode = %v, want unknown element kind error", err)
	}
}
