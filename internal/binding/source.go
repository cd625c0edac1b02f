package binding

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/funvibe/bindsmith/internal/typesystem"
)

// SourceKind enumerates where a delegate argument value comes from.
type SourceKind int

const (
	SourceIllegal  SourceKind = iota // no value can be supplied
	SourceArgument                   // a receiver argument slot
	SourceReceiver                   // the receiver instance itself
	SourceConstant                   // a constant known at generation time
	SourceField                      // a field read from the receiver
	SourceAllArguments               // several receiver argument slots as one slice
)

func (k SourceKind) String() string {
	switch k {
	case SourceArgument:
		return "argument"
	case SourceReceiver:
		return "receiver"
	case SourceConstant:
		return "constant"
	case SourceField:
		return "field"
	case SourceAllArguments:
		return "all-arguments"
	default:
		return "illegal"
	}
}

// ArgumentSource describes how one delegate parameter is supplied. The
// zero value is the illegal source; its payload accessors all report false.
type ArgumentSource struct {
	kind     SourceKind
	slot     int
	slots    []int
	constant string
	field    typesystem.Field
	typ      typesystem.Type
}

func ArgumentSlot(slot int, typ typesystem.Type) ArgumentSource {
	return ArgumentSource{kind: SourceArgument, slot: slot, typ: typ}
}

// AllArgumentSlots supplies the given receiver slots, in order, as a value
// of slice type typ.
func AllArgumentSlots(slots []int, typ typesystem.Type) ArgumentSource {
	return ArgumentSource{kind: SourceAllArguments, slots: append([]int{}, slots...), typ: typ}
}

func ReceiverInstance(typ typesystem.Type) ArgumentSource {
	return ArgumentSource{kind: SourceReceiver, typ: typ}
}

func Constant(value string, typ typesystem.Type) ArgumentSource {
	return ArgumentSource{kind: SourceConstant, constant: value, typ: typ}
}

func FieldRead(f typesystem.Field) ArgumentSource {
	return ArgumentSource{kind: SourceField, field: f, typ: f.Type}
}

func (s ArgumentSource) Kind() SourceKind { return s.kind }
func (s ArgumentSource) Valid() bool { return s.kind != SourceIllegal }

// Type is the static type of the supplied value.
func (s ArgumentSource) Type() (typesystem.Type, bool) {
	if s.kind == SourceIllegal {
		return typesystem.Type{}, false
	}
	return s.typ, true
}

// Slot returns the receiver argument index of an argument source.
func (s ArgumentSource) Slot() (int, bool) {
	if s.kind != SourceArgument {
		return 0, false
	}
	return s.slot, true
}

// Slots returns the receiver slots collected by an all-arguments source.
func (s ArgumentSource) Slots() ([]int, bool) {
	if s.kind != SourceAllArguments {
		return nil, false
	}
	return append([]int{}, s.slots...), true
}

// Value returns the literal of a constant source.
func (s ArgumentSource) Value() (string, bool) {
	if s.kind != SourceConstant {
		return "", false
	}
	return s.constant, true
}

// Field returns the field read by a field source.
func (s ArgumentSource) Field() (typesystem.Field, bool) {
	if s.kind != SourceField {
		return typesystem.Field{}, false
	}
	return s.field, true
}

func (s ArgumentSource) String() string {
	switch s.kind {
	case SourceArgument:
		return fmt.Sprintf("arg[%d]", s.slot)
	case SourceReceiver:
		return "this"
	case SourceConstant:
		return fmt.Sprintf("const(%q)", s.constant)
	case SourceField:
		return "this." + s.field.Name
	case SourceAllArguments:
		parts := make([]string, len(s.slots))
		for i, slot := range s.slots {
			parts[i] = strconv.Itoa(slot)
		}
		return "args[" + strings.Join(parts, ",") + "]"
	default:
		return "illegal"
	}
}
