package binding

import (
	"github.com/funvibe/bindsmith/internal/diagnostics"
	"github.com/funvibe/bindsmith/internal/typesystem"
)

// ParameterBinding is the result of binding a single delegate parameter.
// The zero value means the parameter is not bindable.
type ParameterBinding struct {
	Source ArgumentSource
	Match  typesystem.Match
}

// Bound reports whether a source was produced.
func (b ParameterBinding) Bound() bool { return b.Source.Valid() && b.Match != typesystem.NoMatch }

// Weight is the parameter's contribution to the plan score.
func (b ParameterBinding) Weight() int {
	if !b.Bound() {
		return 0
	}
	return int(b.Match)
}

var notBindable = ParameterBinding{}

// Session is the per-attempt state shared by the binders: which receiver
// argument slots are already claimed.
type Session struct {
	receiver *Receiver
	claimed  []bool
}

// NewSession starts binding against r with no claimed slots.
func NewSession(r *Receiver) *Session {
	return &Session{receiver: r, claimed: make([]bool, len(r.Params))}
}

// Claim marks slot as taken. Out of range slots are ignored.
func (s *Session) Claim(slot int) {
	if slot >= 0 && slot < len(s.claimed) {
		s.claimed[slot] = true
	}
}

// Claimed reports whether slot is already taken.
func (s *Session) Claimed(slot int) bool {
	return slot >= 0 && slot < len(s.claimed) && s.claimed[slot]
}

func (s *Session) nextUnclaimed() (int, bool) {
	for i, taken := range s.claimed {
		if !taken {
			return i, true
		}
	}
	return 0, false
}

// binder produces a value for one tag kind. The set is closed: Registry
// only ever holds the built-in binders below.
type binder interface {
	claims(k TagKind) bool
	bind(reg *Registry, s *Session, tag Tag, index int, target typesystem.Type) ParameterBinding
}

// Registry is the ordered, immutable list of binders. It is safe to share
// between generation units.
type Registry struct {
	oracle  typesystem.Oracle
	binders []binder

	hintType typesystem.Type
	nameType typesystem.Type
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithOriginTypes sets the parameter types the origin binder can supply:
// hint receives the declaring type name, name receives the operation name.
func WithOriginTypes(hint, name typesystem.Type) RegistryOption {
	return func(r *Registry) { r.hintType = hint; r.nameType = name }
}

// WithoutTag drops the binder that claims kind. Binding a parameter with
// that tag then fails as a configuration error.
func WithoutTag(kind TagKind) RegistryOption {
	return func(r *Registry) {
		kept := r.binders[:0:0]
		for _, b := range r.binders {
			if !b.claims(kind) {
				kept = append(kept, b)
			}
		}
		r.binders = kept
	}
}

// NewRegistry returns the default binder order: argument, all arguments,
// this, origin, field and finally the untagged binder.
func NewRegistry(oracle typesystem.Oracle, opts ...RegistryOption) *Registry {
	r := &Registry{
		oracle: oracle,
		binders: []binder{
			argumentBinder{},
			allArgumentsBinder{},
			thisBinder{},
			originBinder{},
			fieldBinder{},
			untaggedBinder{},
		},
		hintType: typesystem.TypeHint,
		nameType: typesystem.String,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Oracle returns the oracle the binders consult.
func (r *Registry) Oracle() typesystem.Oracle { return r.oracle }

// HintType is the parameter type the origin binder fills with the declaring
// type of the receiver.
func (r *Registry) HintType() typesystem.Type { return r.hintType }

// Resolve binds the delegate parameter at index with the given tag. An
// unbindable parameter is not an error; a tag that no binder claims is.
func (r *Registry) Resolve(s *Session, tag Tag, index int, target typesystem.Type) (ParameterBinding, error) {
	for _, b := range r.binders {
		if b.claims(tag.Kind()) {
			return b.bind(r, s, tag, index, target), nil
		}
	}
	return notBindable, diagnostics.Configuration("no binder claims tag %q on parameter %d of %s",
		tag.Kind(), index, s.receiver)
}

type argumentBinder struct{}

func (argumentBinder) claims(k TagKind) bool { return k == TagArgument }

func (argumentBinder) bind(reg *Registry, s *Session, tag Tag, _ int, target typesystem.Type) ParameterBinding {
	slot, _ := tag.Index()
	if slot < 0 || slot >= len(s.receiver.Params) {
		return notBindable
	}
	return bindSlot(reg, s.receiver, slot, target)
}

type allArgumentsBinder struct{}

func (allArgumentsBinder) claims(k TagKind) bool { return k == TagAllArguments }

// bind grades the slice by its weakest element; an empty slice is exact.
func (allArgumentsBinder) bind(reg *Registry, s *Session, tag Tag, _ int, target typesystem.Type) ParameterBinding {
	elem, ok := typesystem.ElementOf(target)
	if !ok {
		return notBindable
	}
	match := typesystem.ExactMatch
	slots := make([]int, 0, len(s.receiver.Params))
	for i, p := range s.receiver.Params {
		m := typesystem.Compatibility(reg.oracle, p, elem)
		if m == typesystem.NoMatch {
			if tag.Slack() {
				continue
			}
			return notBindable
		}
		slots = append(slots, i)
		if m < match {
			match = m
		}
	}
	return ParameterBinding{Source: AllArgumentSlots(slots, target), Match: match}
}

type untaggedBinder struct{}

func (untaggedBinder) claims(k TagKind) bool { return k == TagNone }

func (untaggedBinder) bind(reg *Registry, s *Session, _ Tag, _ int, target typesystem.Type) ParameterBinding {
	slot, ok := s.nextUnclaimed()
	if !ok {
		return notBindable
	}
	b := bindSlot(reg, s.receiver, slot, target)
	if b.Bound() {
		s.Claim(slot)
	}
	return b
}

func bindSlot(reg *Registry, r *Receiver, slot int, target typesystem.Type) ParameterBinding {
	src := r.Params[slot]
	m := typesystem.Compatibility(reg.oracle, src, target)
	if m == typesystem.NoMatch {
		return notBindable
	}
	return ParameterBinding{Source: ArgumentSlot(slot, src), Match: m}
}

type thisBinder struct{}

func (thisBinder) claims(k TagKind) bool { return k == TagThis }

func (thisBinder) bind(reg *Registry, s *Session, _ Tag, _ int, target typesystem.Type) ParameterBinding {
	r := s.receiver
	if r.Static {
		return notBindable
	}
	var m typesystem.Match
	switch {
	case r.Declaring.Equal(target):
		m = typesystem.ExactMatch
	case target.IsUniversal():
		m = typesystem.LooseMatch
	case reg.oracle.IsAssignable(r.Declaring, target):
		m = typesystem.AssignableMatch
	default:
		return notBindable
	}
	return ParameterBinding{Source: ReceiverInstance(r.Declaring), Match: m}
}

type originBinder struct{}

func (originBinder) claims(k TagKind) bool { return k == TagOrigin }

func (originBinder) bind(reg *Registry, s *Session, _ Tag, _ int, target typesystem.Type) ParameterBinding {
	switch {
	case target.Equal(reg.hintType):
		return ParameterBinding{Source: Constant(s.receiver.Declaring.Name, target), Match: typesystem.ExactMatch}
	case target.Equal(reg.nameType):
		return ParameterBinding{Source: Constant(s.receiver.Name, target), Match: typesystem.ExactMatch}
	}
	return notBindable
}

type fieldBinder struct{}

func (fieldBinder) claims(k TagKind) bool { return k == TagField }

func (fieldBinder) bind(reg *Registry, s *Session, tag Tag, _ int, target typesystem.Type) ParameterBinding {
	name, _ := tag.Field()
	f, ok := reg.oracle.LookupField(s.receiver.Declaring, name)
	if !ok {
		return notBindable
	}
	if !f.Static && s.receiver.Static {
		return notBindable
	}
	m := typesystem.Compatibility(reg.oracle, f.Type, target)
	if m == typesystem.NoMatch {
		return notBindable
	}
	return ParameterBinding{Source: FieldRead(f), Match: m}
}
