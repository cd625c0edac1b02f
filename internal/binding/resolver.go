package binding

import (
	"github.com/funvibe/bindsmith/internal/typesystem"
)

// Termination decides what happens to the delegate's return value.
type Termination int

const (
	// Returning passes the delegate's result back; it must be compatible
	// with the receiver's return type unless the receiver returns void.
	Returning Termination = iota
	// Dropping discards the delegate's result.
	Dropping
)

func (t Termination) String() string {
	if t == Dropping {
		return "drop"
	}
	return "return"
}

// Resolver builds a Plan for one (receiver, candidate) pair.
type Resolver struct {
	registry    *Registry
	scope       typesystem.Scope
	termination Termination
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithTermination sets the return value handling. Defaults to Returning.
func WithTermination(t Termination) ResolverOption {
	return func(r *Resolver) { r.termination = t }
}

// NewResolver returns a resolver that judges visibility from scope.
func NewResolver(reg *Registry, scope typesystem.Scope, opts ...ResolverOption) *Resolver {
	r := &Resolver{registry: reg, scope: scope}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the binder registry.
func (r *Resolver) Registry() *Registry { return r.registry }

// Scope returns the generation unit scope used for visibility.
func (r *Resolver) Scope() typesystem.Scope { return r.scope }

// Termination returns how the delegate's result is handled.
func (r *Resolver) Termination() Termination { return r.termination }

// Attempt binds c against recv. Rejections produce an invalid plan, never an
// error; the error return is reserved for registry misconfiguration.
func (r *Resolver) Attempt(recv *Receiver, c *Candidate) (*Plan, error) {
	if c.Ignored {
		return invalidPlan(c, 0, "excluded from binding"), nil
	}
	oracle := r.registry.Oracle()
	if !oracle.IsVisibleFrom(c.Member(), r.scope) {
		return invalidPlan(c, 0, "not visible from %s", r.scope.Package), nil
	}
	if !c.Static && recv.Static {
		return invalidPlan(c, 0, "instance method needs an instance receiver"), nil
	}
	if reason, ok := r.checkTermination(recv, c); !ok {
		return invalidPlan(c, 0, "%s", reason), nil
	}

	s := NewSession(recv)
	for i, p := range c.Params {
		slot, ok := p.Tag.Index()
		if !ok {
			continue
		}
		if s.Claimed(slot) {
			return invalidPlan(c, 0, "receiver argument %d bound twice (parameter %d)", slot, i), nil
		}
		s.Claim(slot)
	}

	plan := &Plan{Candidate: c, Sources: make([]ArgumentSource, 0, len(c.Params))}
	for i, p := range c.Params {
		b, err := r.registry.Resolve(s, p.Tag, i, p.Type)
		if err != nil {
			return nil, err
		}
		if !b.Bound() {
			return invalidPlan(c, plan.Bound, "parameter %d (%s) is not bindable", i, p.Type), nil
		}
		plan.Sources = append(plan.Sources, b.Source)
		plan.Score.Total += b.Weight()
		if b.Match == typesystem.ExactMatch {
			plan.Score.Exact++
		}
		plan.Bound++
	}
	plan.valid = true
	return plan, nil
}

func (r *Resolver) checkTermination(recv *Receiver, c *Candidate) (string, bool) {
	if r.termination == Dropping || recv.Return.IsZero() || recv.Return.IsVoid() {
		return "", true
	}
	ret := c.Return
	if ret.IsZero() || ret.IsVoid() {
		return "returns void but " + recv.Return.Name + " is required", false
	}
	if typesystem.Compatibility(r.registry.Oracle(), ret, recv.Return) == typesystem.NoMatch {
		return "return type " + ret.Name + " is not assignable to " + recv.Return.Name, false
	}
	return "", true
}
