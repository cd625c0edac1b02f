package inspect

import (
	"go/types"
	"sort"
	"strings"

	"github.com/funvibe/bindsmith/internal/typesystem"
)

// Oracle answers compatibility questions with go/types for every type seen
// while extracting Go packages, and falls back to the declared hierarchy for
// types that only exist in the configuration.
type Oracle struct {
	hierarchy *typesystem.Hierarchy
	goTypes   map[string]types.Type
}

// NewOracle returns an oracle over h with no Go types registered yet.
func NewOracle(h *typesystem.Hierarchy) *Oracle {
	return &Oracle{hierarchy: h, goTypes: make(map[string]types.Type)}
}

// Hierarchy returns the declared model the oracle falls back to.
func (o *Oracle) Hierarchy() *typesystem.Hierarchy { return o.hierarchy }

// Type converts t to a model type and remembers the Go type behind it.
func (o *Oracle) Type(t types.Type) typesystem.Type {
	name := typeName(t)
	switch {
	case name == typesystem.Object.Name:
		return typesystem.Object
	case name == typesystem.String.Name:
		o.goTypes[name] = t
		return typesystem.String
	}
	if _, ok := goBasicNames[name]; ok {
		o.goTypes[name] = t
		return typesystem.Primitive(name)
	}
	if _, ok := o.goTypes[name]; !ok {
		o.goTypes[name] = t
	}
	return typesystem.Ref(name)
}

// GoType returns the Go type registered under a model name.
func (o *Oracle) GoType(name string) (types.Type, bool) {
	t, ok := o.goTypes[name]
	return t, ok
}

// Fingerprint extends the hierarchy fingerprint with the underlying type
// and method set of every registered Go type.
func (o *Oracle) Fingerprint() string {
	names := make([]string, 0, len(o.goTypes))
	for name := range o.goTypes {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(o.hierarchy.Fingerprint())
	for _, name := range names {
		t := o.goTypes[name]
		sb.WriteString("\ngo ")
		sb.WriteString(name)
		sb.WriteByte(' ')
		sb.WriteString(types.TypeString(t.Underlying(), nil))
		if _, isPtr := t.(*types.Pointer); !isPtr && !types.IsInterface(t) {
			t = types.NewPointer(t)
		}
		mset := types.NewMethodSet(t)
		for i := 0; i < mset.Len(); i++ {
			sb.WriteString("\n  ")
			sb.WriteString(mset.At(i).String())
		}
	}
	return sb.String()
}

func (o *Oracle) IsAssignable(src, dst typesystem.Type) bool {
	if src.IsVoid() || dst.IsVoid() {
		return false
	}
	if dst.IsUniversal() {
		return true
	}
	s, sok := o.goTypes[src.Name]
	d, dok := o.goTypes[dst.Name]
	if sok && dok {
		return types.AssignableTo(s, d)
	}
	return o.hierarchy.IsAssignable(src, dst)
}

// IsBoxingEquivalent is false between Go types: Go has no implicit boxing
// or widening, and the emitter never inserts conversions.
func (o *Oracle) IsBoxingEquivalent(src, dst typesystem.Type) bool {
	_, sok := o.goTypes[src.Name]
	_, dok := o.goTypes[dst.Name]
	if sok || dok {
		return false
	}
	return o.hierarchy.IsBoxingEquivalent(src, dst)
}

func (o *Oracle) IsVisibleFrom(m typesystem.Member, scope typesystem.Scope) bool {
	return o.hierarchy.IsVisibleFrom(m, scope)
}

// LookupField resolves fields through embedded structs. Pointer owners are
// looked up on their element type.
func (o *Oracle) LookupField(owner typesystem.Type, name string) (typesystem.Field, bool) {
	if strings.HasPrefix(owner.Name, "*") {
		owner = typesystem.Ref(strings.TrimPrefix(owner.Name, "*"))
	}
	return o.hierarchy.LookupField(owner, name)
}

// goBasicNames maps model primitive names to the Go basic kinds they stand
// for. Go basics without a model primitive keep their Go name.
var goBasicNames = map[string]types.BasicKind{
	"boolean": types.Bool,
	"byte":    types.Uint8,
	"short":   types.Int16,
	"int":     types.Int,
	"long":    types.Int64,
	"float":   types.Float32,
	"double":  types.Float64,
}

// typeName is the model name of a Go type: primitives use the model's
// primitive names, named types are qualified by import path
// ("example.com/app.Store"), the empty interface is the universal type.
func typeName(t types.Type) string {
	t = types.Unalias(t)
	switch t := t.(type) {
	case *types.Basic:
		for name, kind := range goBasicNames {
			if t.Kind() == kind {
				return name
			}
		}
		if t.Kind() == types.String {
			return typesystem.String.Name
		}
		// rune and int32 are one type
		return types.Typ[t.Kind()].Name()
	case *types.Named:
		obj := t.Obj()
		if obj.Pkg() == nil {
			return obj.Name()
		}
		return obj.Pkg().Path() + "." + obj.Name()
	case *types.Pointer:
		return "*" + typeName(t.Elem())
	case *types.Slice:
		return "[]" + typeName(t.Elem())
	case *types.Interface:
		if t.Empty() {
			return typesystem.Object.Name
		}
	}
	return types.TypeString(t, func(p *types.Package) string { return p.Path() })
}
