// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

package progtree

import (
	"fmt"
	"maps"
	"slices"
)

// Position is a 1-based line/column location in a source file. The
// zero value means "no position recorded".
type Position struct {
	Line   int
	Column int
}

// Span is a half-open source range from Start up to End.
type Span struct {
	Start Position
	End   Position
}

// QualifiedName is a namespace-qualified identifier, e.g.
// {Namespace: "Foo.Collections", Name: "RingBuffer"}.
type QualifiedName struct {
	Namespace string
	Name      string
}

// String returns the dotted form of the qualified name.
func (q QualifiedName) String() string {
	if q.Namespace == "" {
		return q.Name
	}
	return q.Namespace + "." + q.Name
}

// Modifiers is a bit set of declaration modifiers. The bit values are
// format constants shared with the codecs — changing them breaks
// compatibility with existing tree documents.
type Modifiers uint32

const (
	ModifierPublic Modifiers = 1 << iota
	ModifierPrivate
	ModifierStatic
	ModifierAbstract
	ModifierExtern
)

// Has reports whether all bits in m2 are set in m.
func (m Modifiers) Has(m2 Modifiers) bool {
	return m&m2 == m2
}

// Parameter is a single callable parameter.
type Parameter struct {
	Name     string
	TypeName string
}

// Field is a single custom-type field.
type Field struct {
	Name     string
	TypeName string
}

// Callable is a function or method declaration.
type Callable struct {
	Name       string
	Span       Span
	Modifiers  Modifiers
	Parameters []Parameter
	ReturnType string

	// Comments are the declaration's leading comment lines. The wire
	// schema does not carry this field; reconstruction from wire form
	// yields an empty slice.
	Comments []string
}

// CustomType is a user-defined type declaration.
type CustomType struct {
	Name      string
	Span      Span
	Modifiers Modifiers
	BaseName  string

	// Fields are the type's declared fields. The wire schema does not
	// carry this field; reconstruction from wire form yields an empty
	// slice.
	Fields []Field
}

// ElementKind discriminates the payload of an [Element].
type ElementKind uint8

const (
	// ElementCallable selects the Callable payload.
	ElementCallable ElementKind = 1

	// ElementCustomType selects the CustomType payload.
	ElementCustomType ElementKind = 2
)

// String returns the human-readable name of an element kind.
func (k ElementKind) String() string {
	switch k {
	case ElementCallable:
		return "callable"
	case ElementCustomType:
		return "custom type"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Element is a tagged union: exactly one of Callable or CustomType is
// non-nil, selected by Kind.
type Element struct {
	Kind       ElementKind
	Callable   *Callable
	CustomType *CustomType
}

// Validate checks the discriminant rule: Kind must be a known kind and
// must select the one populated payload. A mismatch is a contract
// violation in whatever produced the element.
func (e Element) Validate() error {
	switch e.Kind {
	case ElementCallable:
		if e.Callable == nil {
			return fmt.Errorf("element kind is callable but the callable payload is nil")
		}
		if e.CustomType != nil {
			return fmt.Errorf("element kind is callable but the custom type payload is also set")
		}
	case ElementCustomType:
		if e.CustomType == nil {
			return fmt.Errorf("element kind is custom type but the custom type payload is nil")
		}
		if e.Callable != nil {
			return fmt.Errorf("element kind is custom type but the callable payload is also set")
		}
	default:
		return fmt.Errorf("unknown element kind %d", uint8(e.Kind))
	}
	return nil
}

// Namespace is an ordered group of elements declared under one name.
type Namespace struct {
	Name     string
	Elements []Element
}

// Unit is the root of the program tree for one compiled unit.
type Unit struct {
	// Namespaces, in declaration order. Always explicit: an empty unit
	// carries an empty slice, never nil.
	Namespaces []Namespace

	// Documentation maps source-file names to their documentation
	// text.
	Documentation map[string]string

	// EntryPoints lists the unit's entry points in declaration order.
	// Always explicit, like Namespaces.
	EntryPoints []QualifiedName
}

// NewUnit returns an empty unit with both top-level collections in
// their explicit empty state.
func NewUnit() *Unit {
	return &Unit{
		Namespaces:  []Namespace{},
		EntryPoints: []QualifiedName{},
	}
}

// Validate checks the unit's explicit-state invariant and every
// element's discriminant rule.
func (u *Unit) Validate() error {
	if u.Namespaces == nil {
		return fmt.Errorf("unit namespaces are unset (must be an explicit, possibly empty, sequence)")
	}
	if u.EntryPoints == nil {
		return fmt.Errorf("unit entry points are unset (must be an explicit, possibly empty, sequence)")
	}
	for i, ns := range u.Namespaces {
		for j, element := range ns.Elements {
			if err := element.Validate(); err != nil {
				return fmt.Errorf("namespace %d (%s) element %d: %w", i, ns.Name, j, err)
			}
		}
	}
	return nil
}

// Equal reports structural equality of two units. Nil and empty
// collections compare as different at the top level (the explicit-state
// invariant makes that distinction meaningful) and as equal below it.
func (u *Unit) Equal(other *Unit) bool {
	if u == nil || other == nil {
		return u == other
	}
	if (u.Namespaces == nil) != (other.Namespaces == nil) {
		return false
	}
	if (u.EntryPoints == nil) != (other.EntryPoints == nil) {
		return false
	}
	if !slices.EqualFunc(u.Namespaces, other.Namespaces, Namespace.Equal) {
		return false
	}
	if !slices.Equal(u.EntryPoints, other.EntryPoints) {
		return false
	}
	return maps.Equal(u.Documentation, other.Documentation)
}

// Equal reports structural equality of two namespaces.
func (n Namespace) Equal(other Namespace) bool {
	return n.Name == other.Name &&
		slices.EqualFunc(n.Elements, other.Elements, Element.Equal)
}

// Equal reports structural equality of two elements.
func (e Element) Equal(other Element) bool {
	if e.Kind != other.Kind {
		return false
	}
	if (e.Callable == nil) != (other.Callable == nil) {
		return false
	}
	if e.Callable != nil && !e.Callable.Equal(other.Callable) {
		return false
	}
	if (e.CustomType == nil) != (other.CustomType == nil) {
		return false
	}
	if e.CustomType != nil && !e.CustomType.Equal(other.CustomType) {
		return false
	}
	return true
}

// Equal reports structural equality of two callables. Empty and nil
// parameter and comment slices compare as equal.
func (c *Callable) Equal(other *Callable) bool {
	return c.Name == other.Name &&
		c.Span == other.Span &&
		c.Modifiers == other.Modifiers &&
		slices.Equal(c.Parameters, other.Parameters) &&
		c.ReturnType == other.ReturnType &&
		slices.Equal(c.Comments, other.Comments)
}

// Equal reports structural equality of two custom types. Empty and nil
// field slices compare as equal.
func (t *CustomType) Equal(other *CustomType) bool {
	return t.Name == other.Name &&
		t.Span == other.Span &&
		t.Modifiers == other.Modifiers &&
		t.BaseName == other.BaseName &&
		slices.Equal(t.Fields, other.Fields)
}
