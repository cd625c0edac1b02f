package accessor

import (
	"fmt"

	"github.com/funvibe/bindsmith/internal/diagnostics"
	"github.com/funvibe/bindsmith/internal/typesystem"
)

// State is the lifecycle position of a FieldAccessor.
type State int

const (
	Unprepared State = iota
	Prepared
	Applied
)

func (s State) String() string {
	switch s {
	case Unprepared:
		return "unprepared"
	case Prepared:
		return "prepared"
	case Applied:
		return "applied"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// FieldDefiner adds a field to a generation unit. Defining a field that is
// already present with the same shape returns the existing definition.
type FieldDefiner interface {
	DefineField(f typesystem.Field) (typesystem.Field, error)
}

// Body is one generated accessor method. Write bodies assign their single
// argument to Field; read bodies return it.
type Body struct {
	Method string
	Field  typesystem.Field
	Write  bool
}

func (b Body) Descriptor() string {
	if b.Write {
		return typesystem.Descriptor([]typesystem.Type{b.Field.Type}, typesystem.Void)
	}
	return typesystem.Descriptor(nil, b.Field.Type)
}

// FieldAccessor turns a Plan into accessor bodies inside one unit.
type FieldAccessor struct {
	plan    Plan
	defines bool
	state   State
	definer FieldDefiner
	field   typesystem.Field
}

// Reuse returns an accessor over a field the unit already has.
func Reuse(plan Plan) *FieldAccessor {
	return &FieldAccessor{plan: plan}
}

// Define returns an accessor that adds plan.Field to the unit when it is
// prepared.
func Define(plan Plan) *FieldAccessor {
	return &FieldAccessor{plan: plan, defines: true}
}

func (a *FieldAccessor) State() State { return a.state }
func (a *FieldAccessor) Plan() Plan { return a.plan }

// Prepare binds the accessor to a unit, defining the backing field when
// needed. Preparing again against the same unit is a no-op.
func (a *FieldAccessor) Prepare(d FieldDefiner) error {
	switch a.state {
	case Prepared:
		if a.definer == d {
			return nil
		}
		return diagnostics.IllegalState("field accessor for %q is already prepared for another unit", a.plan.Field.Name)
	case Applied:
		return diagnostics.IllegalState("field accessor for %q was already applied", a.plan.Field.Name)
	}
	a.field = a.plan.Field
	if a.defines {
		f, err := d.DefineField(a.plan.Field)
		if err != nil {
			return err
		}
		a.field = f
	}
	a.definer = d
	a.state = Prepared
	return nil
}

// Apply produces the getter and setter bodies. It is the terminal step.
func (a *FieldAccessor) Apply() ([]Body, error) {
	if a.state != Prepared {
		return nil, diagnostics.IllegalState("field accessor for %q cannot be applied while %s", a.plan.Field.Name, a.state)
	}
	var bodies []Body
	if a.plan.Getter != "" {
		bodies = append(bodies, Body{Method: a.plan.Getter, Field: a.field})
	}
	if a.plan.Setter != "" {
		bodies = append(bodies, Body{Method: a.plan.Setter, Field: a.field, Write: true})
	}
	a.state = Applied
	return bodies, nil
}
