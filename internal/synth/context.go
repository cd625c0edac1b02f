// Package synth keeps the table of synthetic members a generation unit adds
// to realize its bindings: accessor shims and cached value slots.
//
// Members are addressed by Handle, a stable index into the table. Accessors
// are shared per target and kind; cached fields are always fresh.
package synth

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/funvibe/bindsmith/internal/diagnostics"
	"github.com/funvibe/bindsmith/internal/typesystem"
)

const (
	AccessorPrefix    = "accessor"
	CachedFieldPrefix = "cachedValue"
)

// Kind is the role of a synthetic member.
type Kind int

const (
	MethodAccessor Kind = iota // invokes a method the unit cannot call directly
	FieldGetter                // reads a field the unit cannot see
	FieldSetter                // writes a field the unit cannot see
	CachedField                // holds a value computed once per unit
)

func (k Kind) String() string {
	switch k {
	case MethodAccessor:
		return "method-accessor"
	case FieldGetter:
		return "field-getter"
	case FieldSetter:
		return "field-setter"
	case CachedField:
		return "cached-field"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// TargetIdentity names what an accessor reaches: a method (by owner, name
// and descriptor) or a field (by owner, name and type).
type TargetIdentity struct {
	Owner      typesystem.Type
	Name       string
	Descriptor string
	Type       typesystem.Type
}

// MethodTarget identifies a method. ret is the method's return type.
func MethodTarget(owner typesystem.Type, name, descriptor string, ret typesystem.Type) TargetIdentity {
	return TargetIdentity{Owner: owner, Name: name, Descriptor: descriptor, Type: ret}
}

// FieldTarget identifies a field.
func FieldTarget(f typesystem.Field) TargetIdentity {
	return TargetIdentity{Owner: f.Owner, Name: f.Name, Descriptor: f.Type.Name, Type: f.Type}
}

func (t TargetIdentity) IsZero() bool { return t.Owner.IsZero() || t.Name == "" }

func (t TargetIdentity) String() string {
	return t.Owner.Name + "." + t.Name + t.Descriptor
}

// Handle is a stable index into a Context. NoHandle marks the absence of a
// synthetic member.
type Handle int

const NoHandle Handle = -1

func (h Handle) Valid() bool { return h >= 0 }

// Member is one synthetic member.
type Member struct {
	Handle     Handle
	Name       string
	Descriptor string
	Kind       Kind
	Target     TargetIdentity
	ValueType  typesystem.Type
}

func (m Member) String() string {
	return fmt.Sprintf("%s %s%s", m.Kind, m.Name, m.Descriptor)
}

type accessorKey struct {
	target TargetIdentity
	kind   Kind
}

// Context is the synthetic member table of one generation unit. It has a
// single writer and is never shared between units.
type Context struct {
	suffix    string
	members   []Member
	accessors map[accessorKey]Handle
	closed    bool
}

// New returns an open context whose member names carry suffix.
func New(suffix string) *Context {
	return &Context{
		suffix:    sanitize(suffix),
		accessors: make(map[accessorKey]Handle),
	}
}

// Suffix returns the unit component of every member name.
func (c *Context) Suffix() string { return c.suffix }

// RequestAccessor returns the accessor of the given kind for target,
// allocating it on first request.
func (c *Context) RequestAccessor(target TargetIdentity, kind Kind) (Member, error) {
	if c.closed {
		return Member{}, diagnostics.IllegalState("accessor for %s requested after the context was closed", target)
	}
	if kind == CachedField {
		return Member{}, diagnostics.IllegalArgument("cached fields are allocated with RequestCachedField")
	}
	if target.IsZero() {
		return Member{}, diagnostics.IllegalArgument("accessor target has no owner or name")
	}
	key := accessorKey{target: target, kind: kind}
	if h, ok := c.accessors[key]; ok {
		return c.members[h], nil
	}

	m := Member{
		Handle: Handle(len(c.members)),
		Name:   c.name(AccessorPrefix, target.Name, kind),
		Kind:   kind,
		Target: target,
	}
	switch kind {
	case MethodAccessor:
		m.Descriptor = target.Descriptor
		m.ValueType = target.Type
	case FieldGetter:
		m.Descriptor = typesystem.Descriptor(nil, target.Type)
		m.ValueType = target.Type
	case FieldSetter:
		m.Descriptor = typesystem.Descriptor([]typesystem.Type{target.Type}, typesystem.Void)
		m.ValueType = target.Type
	default:
		return Member{}, diagnostics.IllegalArgument("unknown accessor kind %s", kind)
	}
	c.members = append(c.members, m)
	c.accessors[key] = m.Handle
	return m, nil
}

// RequestCachedField allocates a new slot holding a value of valueType.
// Slots are never shared, even for equal value types.
func (c *Context) RequestCachedField(valueType typesystem.Type) (Member, error) {
	if c.closed {
		return Member{}, diagnostics.IllegalState("cached field of %s requested after the context was closed", valueType)
	}
	if valueType.IsZero() || valueType.IsVoid() {
		return Member{}, diagnostics.IllegalArgument("cached field needs a value type")
	}
	m := Member{
		Handle:     Handle(len(c.members)),
		Name:       c.name(CachedFieldPrefix, "", CachedField),
		Descriptor: valueType.Name,
		Kind:       CachedField,
		ValueType:  valueType,
	}
	c.members = append(c.members, m)
	return m, nil
}

// Member returns the member behind h.
func (c *Context) Member(h Handle) (Member, bool) {
	if !h.Valid() || int(h) >= len(c.members) {
		return Member{}, false
	}
	return c.members[h], true
}

// Members returns every member in allocation order.
func (c *Context) Members() []Member {
	return append([]Member(nil), c.members...)
}

func (c *Context) Len() int { return len(c.members) }

func (c *Context) Closed() bool { return c.closed }

// Close finalizes the table. No member can be requested afterwards.
func (c *Context) Close() ([]Member, error) {
	if c.closed {
		return nil, diagnostics.IllegalState("synthetic context %q closed twice", c.suffix)
	}
	c.closed = true
	return c.Members(), nil
}

// name builds prefix_[target_[kind_]]suffix_counter. The counter is the
// member's table index, so names never collide within a context.
func (c *Context) name(prefix, target string, kind Kind) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	if target != "" {
		sb.WriteByte('_')
		sb.WriteString(sanitize(target))
	}
	switch kind {
	case FieldGetter:
		sb.WriteString("_get")
	case FieldSetter:
		sb.WriteString("_set")
	}
	if c.suffix != "" {
		sb.WriteByte('_')
		sb.WriteString(c.suffix)
	}
	sb.WriteByte('_')
	sb.WriteString(strconv.Itoa(len(c.members)))
	return sb.String()
}

// sanitize keeps letters, digits and underscores so names stay valid
// identifiers in the emitted source.
func sanitize(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
