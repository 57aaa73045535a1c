// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

package wiretree

// Element kind discriminants. Declared here rather than reusing
// lib/progtree's constants so the wire schema remains self-contained;
// the mapping in convert.go is the only place the two vocabularies
// meet.
const (
	// KindCallable selects the Callable payload of an Element.
	KindCallable uint8 = 1

	// KindCustomType selects the CustomType payload of an Element.
	KindCustomType uint8 = 2
)

// Position is a line/column source location.
type Position struct {
	Line   int `cbor:"1,keyasint,omitempty"`
	Column int `cbor:"2,keyasint,omitempty"`
}

// Span is a source range.
type Span struct {
	Start Position `cbor:"1,keyasint,omitempty"`
	End   Position `cbor:"2,keyasint,omitempty"`
}

// QualifiedName is a namespace-qualified identifier.
type QualifiedName struct {
	Namespace string `cbor:"1,keyasint,omitempty"`
	Name      string `cbor:"2,keyasint,omitempty"`
}

// Parameter is a single callable parameter.
type Parameter struct {
	Name     string `cbor:"1,keyasint,omitempty"`
	TypeName string `cbor:"2,keyasint,omitempty"`
}

// Callable mirrors progtree.Callable minus the comment list, which
// the wire schema does not implement.
type Callable struct {
	Name       string      `cbor:"1,keyasint,omitempty"`
	Span       Span        `cbor:"2,keyasint,omitempty"`
	Modifiers  uint32      `cbor:"3,keyasint,omitempty"`
	Parameters []Parameter `cbor:"4,keyasint,omitempty"`
	ReturnType string      `cbor:"5,keyasint,omitempty"`
}

// CustomType mirrors progtree.CustomType minus the field list, which
// the wire schema does not implement.
type CustomType struct {
	Name      string `cbor:"1,keyasint,omitempty"`
	Span      Span   `cbor:"2,keyasint,omitempty"`
	Modifiers uint32 `cbor:"3,keyasint,omitempty"`
	BaseName  string `cbor:"4,keyasint,omitempty"`
}

// Element is the wire form of the namespace-element tagged union.
// Kind must match the one populated payload pointer; the conversion
// layer enforces this on both directions.
type Element struct {
	Kind       uint8       `cbor:"1,keyasint"`
	Callable   *Callable   `cbor:"2,keyasint,omitempty"`
	CustomType *CustomType `cbor:"3,keyasint,omitempty"`
}

// Namespace is an ordered group of elements.
type Namespace struct {
	Name     string    `cbor:"1,keyasint,omitempty"`
	Elements []Element `cbor:"2,keyasint,omitempty"`
}

// Unit is the wire form of a compiled unit's program tree.
type Unit struct {
	Namespaces    []Namespace       `cbor:"1,keyasint,omitempty"`
	Documentation map[string]string `cbor:"2,keyasint,omitempty"`
	EntryPoints   []QualifiedName   `cbor:"3,keyasint,omitempty"`
}
