// Package types defines the core type system for goviz.
//
// This package contains type definitions for:
//   - Type: the closed set of expression types
//   - Color, FadeValue, Feature: host-side values
//   - Metadata, Column: dataset description used by expression compilation
//   - Error types: Structured errors with codes
package types

import "fmt"

// Type identifies the type of an expression.
type Type string

// Expression types. TypeUnknown is the type of a node whose type can only be
// resolved against dataset metadata (a property before compile).
const (
	TypeUnknown           Type = ""
	TypeNumber            Type = "number"
	TypeCategory          Type = "category"
	TypeColor             Type = "color"
	TypeDate              Type = "date"
	TypePalette           Type = "palette"
	TypeCustomPalette     Type = "customPalette"
	TypeFade              Type = "fade"
	TypeOrderer           Type = "orderer"
	TypePropertyReference Type = "propertyReference"
)

// String returns the type name, "unknown" for TypeUnknown.
func (t Type) String() string {
	if t == TypeUnknown {
		return "unknown"
	}
	return string(t)
}

// Is reports whether t is one of the given types.
func (t Type) Is(types ...Type) bool {
	for _, other := range types {
		if t == other {
			return true
		}
	}
	return false
}

// ParseType converts a column type name into a Type.
func ParseType(name string) (Type, error) {
	switch t := Type(name); t {
	case TypeNumber, TypeCategory, TypeDate:
		return t, nil
	}
	return TypeUnknown, fmt.Errorf("unsupported column type %q", name)
}
