// Copyright 2026 The Quill Authors
// SPDX-License-Identifier: Apache-2.0

package wiretree

import (
	"fmt"

	"github.com/quill-lang/quill/lib/progtree"
)

// FromCanonical converts a canonical unit into its wire form. The
// conversion is total over implemented fields and copies positions,
// spans, and qualified names field-by-field with no transformation.
// Canonical-only fields (callable comments, custom-type fields) are
// dropped. The input unit must satisfy its structural invariants.
func FromCanonical(unit *progtree.Unit) (*Unit, error) {
	if unit == nil {
		return nil, fmt.Errorf("converting to wire tree: unit is nil")
	}
	if err := unit.Validate(); err != nil {
		return nil, fmt.Errorf("converting to wire tree: %w", err)
	}

	out := &Unit{}

	for _, ns := range unit.Namespaces {
		wireNS := Namespace{Name: ns.Name}
		for _, element := range ns.Elements {
			wireElement, err := elementFromCanonical(element)
			if err != nil {
				return nil, fmt.Errorf("converting namespace %s: %w", ns.Name, err)
			}
			wireNS.Elements = append(wireNS.Elements, wireElement)
		}
		out.Namespaces = append(out.Namespaces, wireNS)
	}

	if len(unit.Documentation) > 0 {
		out.Documentation = make(map[string]string, len(unit.Documentation))
		for file, text := range unit.Documentation {
			out.Documentation[file] = text
		}
	}

	for _, entry := range unit.EntryPoints {
		out.EntryPoints = append(out.EntryPoints, QualifiedName{
			Namespace: entry.Namespace,
			Name:      entry.Name,
		})
	}

	return out, nil
}

// ToCanonical converts a wire unit back into the canonical form. The
// two top-level collections are always reconstructed in their explicit
// state (empty, never nil), regardless of what the wire form carried.
// Fields the wire schema does not implement come back as their
// documented defaults: empty comment lists on callables, empty field
// lists on custom types. A discriminant that does not match the
// populated payload is a contract violation and fails the conversion.
func ToCanonical(unit *Unit) (*progtree.Unit, error) {
	if unit == nil {
		return nil, fmt.Errorf("converting from wire tree: unit is nil")
	}

	out := progtree.NewUnit()

	for _, wireNS := range unit.Namespaces {
		ns := progtree.Namespace{Name: wireNS.Name, Elements: []progtree.Element{}}
		for i, wireElement := range wireNS.Elements {
			element, err := elementToCanonical(wireElement)
			if err != nil {
				return nil, fmt.Errorf("converting namespace %s element %d: %w", wireNS.Name, i, err)
			}
			ns.Elements = append(ns.Elements, element)
		}
		out.Namespaces = append(out.Namespaces, ns)
	}

	if len(unit.Documentation) > 0 {
		out.Documentation = make(map[string]string, len(unit.Documentation))
		for file, text := range unit.Documentation {
			out.Documentation[file] = text
		}
	}

	for _, entry := range unit.EntryPoints {
		out.EntryPoints = append(out.EntryPoints, progtree.QualifiedName{
			Namespace: entry.Namespace,
			Name:      entry.Name,
		})
	}

	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("converted unit is inconsistent: %w", err)
	}
	return out, nil
}

func elementFromCanonical(element progtree.Element) (Element, error) {
	if err := element.Validate(); err != nil {
		return Element{}, err
	}

	switch element.Kind {
	case progtree.ElementCallable:
		c := element.Callable
		wire := &Callable{
			Name:       c.Name,
			Span:       spanFromCanonical(c.Span),
			Modifiers:  uint32(c.Modifiers),
			ReturnType: c.ReturnType,
		}
		for _, p := range c.Parameters {
			wire.Parameters = append(wire.Parameters, Parameter{Name: p.Name, TypeName: p.TypeName})
		}
		// c.Comments is not implemented wire-side and is dropped.
		return Element{Kind: KindCallable, Callable: wire}, nil

	case progtree.ElementCustomType:
		t := element.CustomType
		// t.Fields is not implemented wire-side and is dropped.
		return Element{Kind: KindCustomType, CustomType: &CustomType{
			Name:      t.Name,
			Span:      spanFromCanonical(t.Span),
			Modifiers: uint32(t.Modifiers),
			BaseName:  t.BaseName,
		}}, nil

	default:
		return Element{}, fmt.Errorf("unknown element kind %d", uint8(element.Kind))
	}
}

func elementToCanonical(element Element) (progtree.Element, error) {
	switch element.Kind {
	case KindCallable:
		if element.Callable == nil {
			return progtree.Element{}, fmt.Errorf("element kind is callable but the callable payload is nil")
		}
		if element.CustomType != nil {
			return progtree.Element{}, fmt.Errorf("element kind is callable but the custom type payload is also set")
		}
		wire := element.Callable
		c := &progtree.Callable{
			Name:       wire.Name,
			Span:       spanToCanonical(wire.Span),
			Modifiers:  progtree.Modifiers(wire.Modifiers),
			Parameters: []progtree.Parameter{},
			ReturnType: wire.ReturnType,
			Comments:   []string{},
		}
		for _, p := range wire.Parameters {
			c.Parameters = append(c.Parameters, progtree.Parameter{Name: p.Name, TypeName: p.TypeName})
		}
		return progtree.Element{Kind: progtree.ElementCallable, Callable: c}, nil

	case KindCustomType:
		if element.CustomType == nil {
			return progtree.Element{}, fmt.Errorf("element kind is custom type but the custom type payload is nil")
		}
		if element.Callable != nil {
			return progtree.Element{}, fmt.Errorf("element kind is custom type but the callable payload is also set")
		}
		wire := element.CustomType
		return progtree.Element{Kind: progtree.ElementCustomType, CustomType: &progtree.CustomType{
			Name:      wire.Name,
			Span:      spanToCanonical(wire.Span),
			Modifiers: progtree.Modifiers(wire.Modifiers),
			BaseName:  wire.BaseName,
			Fields:    []progtree.Field{},
		}}, nil

	default:
		return progtree.Element{}, fmt.Errorf("unknown element kind %d", element.Kind)
	}
}

func spanFromCanonical(span progtree.Span) Span {
	return Span{
		Start: Position{Line: span.Start.Line, Column: span.Start.Column},
		End:   Position{Line: span.End.Line, Column: span.End.Column},
	}
}

func spanToCanonical(span Span) progtree.Span {
	return progtree.Span{
		Start: progtree.Position{Line: span.Start.Line, Column: span.Start.Column},
		End:   progtree.Position{Line: span.End.Line, Column: span.End.Column},
	}
}
