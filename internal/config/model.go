package config

import (
	"fmt"
	"log/slog"

	"github.com/funvibe/bindsmith/internal/accessor"
	"github.com/funvibe/bindsmith/internal/binding"
	"github.com/funvibe/bindsmith/internal/typesystem"
)

// Model is the resolved form of a Config: a declared type hierarchy plus
// receivers and candidates expressed in it.
type Model struct {
	Scope       typesystem.Scope
	Hierarchy   *typesystem.Hierarchy
	Receivers   []binding.Receiver
	Candidates  []binding.Candidate
	Accessors   []AccessorSpec
	Rules       []binding.Rule
	Termination binding.Termination
	Disabled    []binding.TagKind
}

// Model resolves type names and tags. Sources are not read here.
func (c *Config) Model() (*Model, error) {
	h := typesystem.NewHierarchy()
	scope := typesystem.Scope{Package: c.Unit.Package, Type: typesystem.Ref(c.Unit.Name)}

	m := &Model{
		Scope:     scope,
		Hierarchy: h,
		Accessors: append([]AccessorSpec(nil), c.Accessors...),
	}
	if c.Termination == "drop" {
		m.Termination = binding.Dropping
	}
	for _, name := range c.TieBreakers {
		r, err := binding.ParseRule(name)
		if err != nil {
			return nil, err
		}
		m.Rules = append(m.Rules, r)
	}
	for _, name := range c.Disable {
		k, err := parseTagKind(name)
		if err != nil {
			return nil, err
		}
		m.Disabled = append(m.Disabled, k)
	}

	h.Declare(scope.Type, named(h, c.Unit.Extends)...)
	for _, t := range c.Types {
		owner := h.Named(t.Name)
		h.Declare(owner, named(h, t.Supers)...)
		for _, f := range t.Fields {
			vis, err := typesystem.ParseVisibility(f.Visibility)
			if err != nil {
				return nil, fmt.Errorf("type %s field %s: %w", t.Name, f.Name, err)
			}
			h.DeclareField(typesystem.Field{
				Name:       f.Name,
				Type:       h.Named(f.Type),
				Owner:      owner,
				Package:    f.Package,
				Visibility: vis,
				Final:      f.Final,
				Static:     f.Static,
			})
		}
	}

	for _, r := range c.Receivers {
		m.Receivers = append(m.Receivers, binding.Receiver{
			Name:      r.Name,
			Params:    named(h, r.Params),
			Return:    returnType(h, r.Return),
			Declaring: h.Named(r.Declaring),
			Static:    r.Static,
		})
	}

	for _, cs := range c.Candidates {
		vis, err := typesystem.ParseVisibility(cs.Visibility)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", cs.Name, err)
		}
		cand := binding.Candidate{
			Name:       cs.Name,
			Return:     returnType(h, cs.Return),
			Declaring:  h.Named(cs.Declaring),
			Package:    cs.Package,
			Visibility: vis,
			Static:     cs.Static,
			Ignored:    cs.Ignored,
			Special:    cs.Special,
			Priority:   cs.Priority,
		}
		for j, p := range cs.Params {
			tag, err := binding.ParseTag(p.Tag)
			if err != nil {
				return nil, fmt.Errorf("candidate %s parameter %d: %w", cs.Name, j, err)
			}
			cand.Params = append(cand.Params, binding.Parameter{Type: h.Named(p.Type), Tag: tag})
		}
		m.Candidates = append(m.Candidates, cand)
	}
	return m, nil
}

// Registry builds the binder registry with the disabled tags removed.
func (m *Model) Registry(oracle typesystem.Oracle) *binding.Registry {
	opts := make([]binding.RegistryOption, 0, len(m.Disabled))
	for _, k := range m.Disabled {
		opts = append(opts, binding.WithoutTag(k))
	}
	return binding.NewRegistry(oracle, opts...)
}

// Selector wires registry, resolver and ambiguity chain for oracle.
func (m *Model) Selector(oracle typesystem.Oracle, logger *slog.Logger) *binding.Selector {
	res := binding.NewResolver(m.Registry(oracle), m.Scope, binding.WithTermination(m.Termination))
	var opts []binding.SelectorOption
	if logger != nil {
		opts = append(opts, binding.WithLogger(logger))
	}
	return binding.NewSelector(res, binding.ExtendedChain(oracle, m.Rules...), opts...)
}

// FieldAccessors plans every configured accessor. Planning happens before
// anything is added to a unit, so a failure leaves no partial members.
func (m *Model) FieldAccessors(oracle typesystem.VisibilityOracle) ([]*accessor.FieldAccessor, error) {
	planner := accessor.NewPlanner(oracle, m.Scope)
	out := make([]*accessor.FieldAccessor, 0, len(m.Accessors))
	for i, spec := range m.Accessors {
		fields := m.Hierarchy.Fields(m.Hierarchy.Named(spec.Owner))
		var (
			plan accessor.Plan
			err  error
		)
		if spec.Method != "" {
			plan, err = planner.FromMethod(spec.Method, fields)
		} else {
			access, perr := accessor.ParseAccess(spec.Access)
			if perr != nil {
				return nil, perr
			}
			plan, err = planner.Explicit(spec.Field, fields, access)
		}
		if err != nil {
			return nil, fmt.Errorf("accessors[%d] (%s): %w", i, spec.Owner, err)
		}
		if spec.Define {
			out = append(out, accessor.Define(plan))
		} else {
			out = append(out, accessor.Reuse(plan))
		}
	}
	return out, nil
}

func named(h *typesystem.Hierarchy, names []string) []typesystem.Type {
	if len(names) == 0 {
		return nil
	}
	out := make([]typesystem.Type, len(names))
	for i, n := range names {
		out[i] = h.Named(n)
	}
	return out
}

func returnType(h *typesystem.Hierarchy, name string) typesystem.Type {
	if name == "" {
		return typesystem.Void
	}
	return h.Named(name)
}
