package typesystem

// Assignability answers type compatibility questions. The binding core
// never inspects types itself; every compatibility decision goes through it.
type Assignability interface {
	// IsAssignable reports identity or reference widening from src to dst.
	IsAssignable(src, dst Type) bool
	// IsBoxingEquivalent reports a loose conversion: boxing, unboxing or
	// primitive widening.
	IsBoxingEquivalent(src, dst Type) bool
}

// VisibilityOracle decides whether a member can be referenced from the code
// of a generation unit.
type VisibilityOracle interface {
	IsVisibleFrom(m Member, scope Scope) bool
}

// FieldLocator finds declared fields, walking supertypes where the host
// type system allows inheritance of fields.
type FieldLocator interface {
	LookupField(owner Type, name string) (Field, bool)
}

// Oracle bundles every collaborator the binder consumes.
type Oracle interface {
	Assignability
	VisibilityOracle
	FieldLocator
}

// Match grades how well a source type fits a target type.
type Match int

const (
	NoMatch Match = iota
	LooseMatch
	AssignableMatch
	ExactMatch
)

func (m Match) String() string {
	switch m {
	case ExactMatch:
		return "exact"
	case AssignableMatch:
		return "assignable"
	case LooseMatch:
		return "loose"
	default:
		return "none"
	}
}

// Compatibility grades src against dst using the oracle.
func Compatibility(o Assignability, src, dst Type) Match {
	switch {
	case src.Equal(dst):
		return ExactMatch
	case o.IsAssignable(src, dst):
		return AssignableMatch
	case o.IsBoxingEquivalent(src, dst):
		return LooseMatch
	default:
		return NoMatch
	}
}

// Order is the outcome of comparing two types by specificity.
type Order int

const (
	Incomparable Order = iota
	Same
	Narrower
	Wider
)

// Specificity compares a and b. Narrower means a is a strict subtype of b.
// Types that are mutually assignable without being identical are reported
// as Incomparable; callers treat that as undecided.
func Specificity(o Assignability, a, b Type) Order {
	if a.Equal(b) {
		return Same
	}
	ab := o.IsAssignable(a, b)
	ba := o.IsAssignable(b, a)
	switch {
	case ab && !ba:
		return Narrower
	case ba && !ab:
		return Wider
	default:
		return Incomparable
	}
}
