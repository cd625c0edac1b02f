package typesystem

import (
	"fmt"
	"sort"
	"strings"
)

// Hierarchy is an in-memory Oracle over a declared type model. It knows
// the supertypes and fields of every declared type plus a fixed table of
// primitive widening and boxing pairs.
type Hierarchy struct {
	supers map[string][]Type
	fields map[string][]Field

	// widening[src] lists the primitives src widens to.
	widening map[string]map[string]bool
	// boxes maps a primitive to its reference counterpart and back.
	boxes   map[string]Type
	unboxes map[string]Type
}

// NewHierarchy returns a hierarchy preloaded with the primitive table.
func NewHierarchy() *Hierarchy {
	h := &Hierarchy{
		supers:   make(map[string][]Type),
		fields:   make(map[string][]Field),
		widening: make(map[string]map[string]bool),
		boxes:    make(map[string]Type),
		unboxes:  make(map[string]Type),
	}
	for _, p := range defaultPrimitives {
		prim := Primitive(p.name)
		box := Ref(p.box)
		h.boxes[prim.Name] = box
		h.unboxes[box.Name] = prim
		h.widening[prim.Name] = make(map[string]bool)
		for _, w := range p.widensTo {
			h.widening[prim.Name][w] = true
		}
	}
	return h
}

var defaultPrimitives = []struct {
	name     string
	box      string
	widensTo []string
}{
	{"boolean", "Boolean", nil},
	{"byte", "Byte", []string{"short", "int", "long", "float", "double"}},
	{"short", "Short", []string{"int", "long", "float", "double"}},
	{"char", "Character", []string{"int", "long", "float", "double"}},
	{"int", "Integer", []string{"long", "float", "double"}},
	{"long", "Long", []string{"float", "double"}},
	{"float", "Float", []string{"double"}},
	{"double", "Double", nil},
}

func isPrimitiveName(name string) bool {
	for _, p := range defaultPrimitives {
		if p.name == name {
			return true
		}
	}
	return false
}

// Declare registers t with its direct supertypes. Declaring a type twice
// appends the new supertypes.
func (h *Hierarchy) Declare(t Type, supers ...Type) {
	h.supers[t.Name] = append(h.supers[t.Name], supers...)
}

// DeclareField registers a field on its owner.
func (h *Hierarchy) DeclareField(f Field) {
	h.fields[f.Owner.Name] = append(h.fields[f.Owner.Name], f)
}

// Fields returns the fields declared directly on owner.
func (h *Hierarchy) Fields(owner Type) []Field {
	return append([]Field(nil), h.fields[owner.Name]...)
}

// Supertypes returns the direct supertypes of t.
func (h *Hierarchy) Supertypes(t Type) []Type {
	return append([]Type(nil), h.supers[t.Name]...)
}

// LookupPrimitive reports whether name is one of the built-in primitives.
func (h *Hierarchy) LookupPrimitive(name string) (Type, bool) {
	if _, ok := h.boxes[name]; ok {
		return Primitive(name), true
	}
	return Type{}, false
}

// Named maps a textual type name onto the model: the universal object,
// void, a built-in primitive or otherwise a reference type.
func (h *Hierarchy) Named(name string) Type {
	switch name {
	case "":
		return Type{}
	case Object.Name:
		return Object
	case Void.Name:
		return Void
	}
	if p, ok := h.LookupPrimitive(name); ok {
		return p
	}
	return Ref(name)
}

func (h *Hierarchy) IsAssignable(src, dst Type) bool {
	if src.Equal(dst) {
		return true
	}
	if src.IsPrimitive() || dst.IsPrimitive() || src.IsVoid() || dst.IsVoid() {
		return false
	}
	if dst.IsUniversal() {
		return true
	}
	seen := map[string]bool{src.Name: true}
	queue := []Type{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, s := range h.supers[cur.Name] {
			if s.Equal(dst) {
				return true
			}
			if !seen[s.Name] {
				seen[s.Name] = true
				queue = append(queue, s)
			}
		}
	}
	return false
}

func (h *Hierarchy) IsBoxingEquivalent(src, dst Type) bool {
	switch {
	case src.IsPrimitive() && dst.IsPrimitive():
		return h.widening[src.Name][dst.Name]
	case src.IsPrimitive():
		box, ok := h.boxes[src.Name]
		return ok && h.IsAssignable(box, dst)
	case dst.IsPrimitive():
		prim, ok := h.unboxes[src.Name]
		if !ok {
			return false
		}
		return prim.Equal(dst) || h.widening[prim.Name][dst.Name]
	}
	return false
}

func (h *Hierarchy) IsVisibleFrom(m Member, scope Scope) bool {
	switch m.Visibility {
	case Public:
		return true
	case Protected:
		return m.Package == scope.Package || h.IsAssignable(scope.Type, m.Owner)
	case PackagePrivate:
		return m.Package == scope.Package
	case Private:
		return m.Owner.Equal(scope.Type)
	}
	return false
}

// LookupField searches owner and then its supertypes breadth first.
// Private fields of supertypes are skipped since they are not inherited.
func (h *Hierarchy) LookupField(owner Type, name string) (Field, bool) {
	seen := map[string]bool{owner.Name: true}
	queue := []Type{owner}
	for depth := 0; len(queue) > 0; depth++ {
		next := []Type(nil)
		for _, cur := range queue {
			for _, f := range h.fields[cur.Name] {
				if f.Name != name {
					continue
				}
				if depth > 0 && f.Visibility == Private {
					continue
				}
				return f, true
			}
			for _, s := range h.supers[cur.Name] {
				if !seen[s.Name] {
					seen[s.Name] = true
					next = append(next, s)
				}
			}
		}
		queue = next
	}
	return Field{}, false
}

// Fingerprint renders every declared supertype edge and field as sorted
// text. Two hierarchies with equal fingerprints answer every query alike.
func (h *Hierarchy) Fingerprint() string {
	var lines []string
	for t, supers := range h.supers {
		for _, s := range supers {
			lines = append(lines, "super "+t+" "+s.Name)
		}
	}
	for _, fields := range h.fields {
		for _, f := range fields {
			lines = append(lines, fmt.Sprintf("field %s.%s %s %s %s %t %t",
				f.Owner.Name, f.Name, f.Type.Name, f.Package, f.Visibility, f.Final, f.Static))
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
