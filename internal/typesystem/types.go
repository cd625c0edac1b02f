package typesystem

import (
	"fmt"
	"strings"
)

// Kind classifies a Type for the oracles.
type Kind int

const (
	KindReference Kind = iota // named reference types (classes, structs, messages)
	KindPrimitive             // value types subject to widening and boxing
	KindUniversal             // the universal object type, assignable from every reference
	KindVoid                  // absence of a value (return types only)
)

func (k Kind) String() string {
	switch k {
	case KindReference:
		return "reference"
	case KindPrimitive:
		return "primitive"
	case KindUniversal:
		return "universal"
	case KindVoid:
		return "void"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Type is the semantic identity of a host type. Two types are identical
// when their names are equal; the kind only steers the oracles.
type Type struct {
	Name string
	Kind Kind
}

// Well-known types of the default model.
var (
	Object   = Type{Name: "Object", Kind: KindUniversal}
	Void     = Type{Name: "void", Kind: KindVoid}
	String   = Type{Name: "String", Kind: KindReference}
	TypeHint = Type{Name: "Type", Kind: KindReference}
)

// Ref returns a reference type with the given name.
func Ref(name string) Type { return Type{Name: name, Kind: KindReference} }

// Primitive returns a primitive type with the given name.
func Primitive(name string) Type { return Type{Name: name, Kind: KindPrimitive} }

// SliceOf returns the slice type with element elem.
func SliceOf(elem Type) Type { return Ref("[]" + elem.Name) }

// ElementOf returns the element type of a slice type. The element kind is
// recovered from its name: the universal object, a built-in primitive or a
// reference.
func ElementOf(t Type) (Type, bool) {
	name, ok := strings.CutPrefix(t.Name, "[]")
	if !ok || name == "" {
		return Type{}, false
	}
	switch {
	case name == Object.Name:
		return Object, true
	case isPrimitiveName(name):
		return Primitive(name), true
	}
	return Ref(name), true
}

func (t Type) String() string {
	if t.Name == "" {
		return "<none>"
	}
	return t.Name
}

func (t Type) Equal(other Type) bool { return t.Name == other.Name }
func (t Type) IsZero() bool { return t.Name == "" }
func (t Type) IsVoid() bool { return t.Kind == KindVoid }
func (t Type) IsUniversal() bool { return t.Kind == KindUniversal }
func (t Type) IsPrimitive() bool { return t.Kind == KindPrimitive }

// Descriptor renders a parameter list and return type as "(A,B)R".
// It is the identity used for synthetic members and cache keys.
func Descriptor(params []Type, ret Type) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.Name)
	}
	sb.WriteByte(')')
	if ret.IsZero() {
		sb.WriteString(Void.Name)
	} else {
		sb.WriteString(ret.Name)
	}
	return sb.String()
}

// Visibility is the declared access level of a member.
type Visibility int

const (
	Public Visibility = iota
	Protected
	PackagePrivate
	Private
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case PackagePrivate:
		return "package"
	case Private:
		return "private"
	default:
		return fmt.Sprintf("Visibility(%d)", int(v))
	}
}

// ParseVisibility maps the textual form used in configuration files.
// An empty string means public.
func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "public":
		return Public, nil
	case "protected":
		return Protected, nil
	case "package", "package-private":
		return PackagePrivate, nil
	case "private":
		return Private, nil
	}
	return Public, fmt.Errorf("unknown visibility %q", s)
}

// Scope is the point of view of a generation unit: the package it is
// emitted into and the type it defines.
type Scope struct {
	Package string
	Type    Type
}

// Member identifies a declared method or field for visibility checks.
type Member struct {
	Name       string
	Owner      Type
	Package    string
	Visibility Visibility
}

func (m Member) String() string {
	return m.Owner.Name + "." + m.Name
}

// Field is a declared field of a type.
type Field struct {
	Name       string
	Type       Type
	Owner      Type
	Package    string
	Visibility Visibility
	Final      bool
	Static     bool
}

func (f Field) Member() Member {
	return Member{Name: f.Name, Owner: f.Owner, Package: f.Package, Visibility: f.Visibility}
}

func (f Field) String() string {
	return fmt.Sprintf("%s.%s %s", f.Owner.Name, f.Name, f.Type.Name)
}
