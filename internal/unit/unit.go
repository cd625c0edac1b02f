// Package unit builds one generation unit: it selects a delegate for every
// receiver operation, realizes the winning plans into synthetic members and
// hands the collected result to an emitter.
package unit

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/funvibe/bindsmith/internal/accessor"
	"github.com/funvibe/bindsmith/internal/binding"
	"github.com/funvibe/bindsmith/internal/diagnostics"
	"github.com/funvibe/bindsmith/internal/synth"
	"github.com/funvibe/bindsmith/internal/typesystem"
)

// Argument is one realized argument of a delegation. Via points at the
// synthetic member that supplies the value, or is synth.NoHandle when the
// source is read directly.
type Argument struct {
	Source binding.ArgumentSource
	Via    synth.Handle
}

// Delegation is the realized binding of one receiver operation.
type Delegation struct {
	Receiver binding.Receiver
	Target   binding.Candidate
	Score    binding.Score
	Args     []Argument
	// Invoke is the accessor used to call Target, or synth.NoHandle for a
	// direct call.
	Invoke synth.Handle
	// Instance is the cached field holding the delegate instance when the
	// receiver instance cannot serve as one.
	Instance synth.Handle
	// ViaReceiver marks instance delegates called on the receiver itself.
	ViaReceiver bool
	Drop        bool
}

// Output is everything an emitter needs to render a closed unit.
type Output struct {
	ID          uuid.UUID
	Name        string
	Scope       typesystem.Scope
	Members     []synth.Member
	Fields      []typesystem.Field
	Accessors   []accessor.Body
	Delegations []Delegation
}

// Unit is a single generation unit. It is not safe for concurrent use;
// independent units share nothing and may be built in parallel.
type Unit struct {
	id     uuid.UUID
	name   string
	scope  typesystem.Scope
	ctx    *synth.Context
	logger *slog.Logger

	fields      []typesystem.Field
	accessors   []accessor.Body
	delegations []Delegation
	closed      bool
}

// Option configures a Unit.
type Option func(*Unit)

// WithID fixes the unit identifier, which otherwise is a random uuid.
func WithID(id uuid.UUID) Option {
	return func(u *Unit) { u.id = id }
}

func WithLogger(l *slog.Logger) Option {
	return func(u *Unit) { u.logger = l }
}

// New creates an open unit emitting into scope.
func New(name string, scope typesystem.Scope, opts ...Option) *Unit {
	u := &Unit{
		id:     uuid.New(),
		name:   name,
		scope:  scope,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.ctx = synth.New(NameSuffix(u.id))
	u.logger = u.logger.With("unit", name, "unit_id", u.id.String())
	return u
}

// NameSuffix is the per-unit component of synthetic member names.
func NameSuffix(id uuid.UUID) string {
	return id.String()[:8]
}

func (u *Unit) ID() uuid.UUID { return u.id }
func (u *Unit) Name() string { return u.name }
func (u *Unit) Scope() typesystem.Scope { return u.scope }

// Context exposes the unit's synthetic member table.
func (u *Unit) Context() *synth.Context { return u.ctx }

// Bind selects a delegate for recv among candidates and realizes the plan.
func (u *Unit) Bind(sel *binding.Selector, recv *binding.Receiver, candidates []binding.Candidate) (*Delegation, error) {
	if u.closed {
		return nil, diagnostics.IllegalState("unit %s is closed; cannot bind %s", u.name, recv)
	}
	plan, err := sel.Select(recv, candidates)
	if err != nil {
		return nil, err
	}
	d, err := u.realize(sel.Resolver(), recv, plan)
	if err != nil {
		return nil, fmt.Errorf("realize %s -> %s: %w", recv, plan.Candidate, err)
	}
	u.delegations = append(u.delegations, *d)
	u.logger.Debug("receiver bound", "receiver", recv.String(), "target", plan.Candidate.String(),
		"score", plan.Score.String(), "synthetic_members", u.ctx.Len())
	return d, nil
}

func (u *Unit) realize(res *binding.Resolver, recv *binding.Receiver, plan *binding.Plan) (*Delegation, error) {
	reg := res.Registry()
	oracle := reg.Oracle()
	c := plan.Candidate

	// Nothing may be allocated in the synthetic context before every
	// target is known to be addressable.
	if err := checkRealizable(c, plan, oracle, u.scope); err != nil {
		return nil, err
	}

	d := &Delegation{
		Receiver: *recv,
		Target:   *c,
		Score:    plan.Score,
		Invoke:   synth.NoHandle,
		Instance: synth.NoHandle,
		Drop:     res.Termination() == binding.Dropping,
	}

	if c.Special {
		m, err := u.ctx.RequestAccessor(synth.MethodTarget(c.Declaring, c.Name, c.Descriptor(), c.Return), synth.MethodAccessor)
		if err != nil {
			return nil, err
		}
		d.Invoke = m.Handle
	}

	if !c.Static {
		if !recv.Static && (recv.Declaring.Equal(c.Declaring) || oracle.IsAssignable(recv.Declaring, c.Declaring)) {
			d.ViaReceiver = true
		} else {
			m, err := u.ctx.RequestCachedField(c.Declaring)
			if err != nil {
				return nil, err
			}
			d.Instance = m.Handle
		}
	}

	d.Args = make([]Argument, len(plan.Sources))
	for i, src := range plan.Sources {
		arg := Argument{Source: src, Via: synth.NoHandle}
		switch src.Kind() {
		case binding.SourceField:
			f, _ := src.Field()
			if !oracle.IsVisibleFrom(f.Member(), u.scope) {
				m, err := u.ctx.RequestAccessor(synth.FieldTarget(f), synth.FieldGetter)
				if err != nil {
					return nil, err
				}
				arg.Via = m.Handle
			}
		case binding.SourceConstant:
			if typ, _ := src.Type(); typ.Equal(reg.HintType()) {
				m, err := u.ctx.RequestCachedField(typ)
				if err != nil {
					return nil, err
				}
				arg.Via = m.Handle
			}
		}
		d.Args[i] = arg
	}
	return d, nil
}

func checkRealizable(c *binding.Candidate, plan *binding.Plan, oracle typesystem.Oracle, scope typesystem.Scope) error {
	if c.Declaring.IsZero() || c.Declaring.IsVoid() || c.Name == "" {
		return diagnostics.IllegalArgument("candidate %s has no declaring type or name", c)
	}
	for i, src := range plan.Sources {
		switch src.Kind() {
		case binding.SourceIllegal:
			return diagnostics.IllegalState("parameter %d of %s has no source", i, c)
		case binding.SourceField:
			f, _ := src.Field()
			if !oracle.IsVisibleFrom(f.Member(), scope) && synth.FieldTarget(f).IsZero() {
				return diagnostics.IllegalArgument("field source %d of %s has no owner or name", i, c)
			}
		}
	}
	return nil
}

// DefineField adds a field to the unit's type. Defining an identical field
// again returns the existing one; a conflicting definition fails.
func (u *Unit) DefineField(f typesystem.Field) (typesystem.Field, error) {
	if u.closed {
		return typesystem.Field{}, diagnostics.IllegalState("unit %s is closed; cannot define field %q", u.name, f.Name)
	}
	if f.Owner.IsZero() {
		f.Owner = u.scope.Type
	}
	if f.Package == "" {
		f.Package = u.scope.Package
	}
	for _, existing := range u.fields {
		if existing.Name != f.Name {
			continue
		}
		if existing == f {
			return existing, nil
		}
		return typesystem.Field{}, diagnostics.IllegalState("field %q already defined as %s %s", f.Name, existing.Visibility, existing.Type)
	}
	u.fields = append(u.fields, f)
	return f, nil
}

// AddAccessor prepares fa against this unit and records its bodies.
func (u *Unit) AddAccessor(fa *accessor.FieldAccessor) error {
	if u.closed {
		return diagnostics.IllegalState("unit %s is closed; cannot add accessor", u.name)
	}
	if err := fa.Prepare(u); err != nil {
		return err
	}
	bodies, err := fa.Apply()
	if err != nil {
		return err
	}
	u.accessors = append(u.accessors, bodies...)
	return nil
}

// Close finalizes the synthetic context and returns the emitter input.
func (u *Unit) Close() (*Output, error) {
	members, err := u.ctx.Close()
	if err != nil {
		return nil, err
	}
	u.closed = true
	u.logger.Info("unit closed", "delegations", len(u.delegations), "synthetic_members", len(members),
		"fields", len(u.fields), "accessors", len(u.accessors))
	return &Output{
		ID:          u.id,
		Name:        u.name,
		Scope:       u.scope,
		Members:     members,
		Fields:      append([]typesystem.Field(nil), u.fields...),
		Accessors:   append([]accessor.Body(nil), u.accessors...),
		Delegations: append([]Delegation(nil), u.delegations...),
	}, nil
}
