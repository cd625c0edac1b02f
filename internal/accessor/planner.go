// Package accessor plans getter and setter pairs for fields and drives the
// FieldAccessor through its preparation and application phases.
package accessor

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/funvibe/bindsmith/internal/diagnostics"
	"github.com/funvibe/bindsmith/internal/typesystem"
)

// Access selects which halves of a field plan are wanted.
type Access int

const (
	Get Access = 1 << iota
	Set

	GetSet = Get | Set
)

func (a Access) String() string {
	switch a {
	case Get:
		return "get"
	case Set:
		return "set"
	case GetSet:
		return "get/set"
	}
	return "none"
}

// ParseAccess maps the configuration names "get", "set" and "getset".
func ParseAccess(s string) (Access, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "getset", "get/set", "both":
		return GetSet, nil
	case "get", "getter":
		return Get, nil
	case "set", "setter":
		return Set, nil
	}
	return 0, diagnostics.Configuration("unknown field access %q", s)
}

// Plan names a field and the accessor methods generated for it. An empty
// Getter or Setter means that half is not generated.
type Plan struct {
	Field  typesystem.Field
	Getter string
	Setter string
}

func (p Plan) Access() Access {
	var a Access
	if p.Getter != "" {
		a |= Get
	}
	if p.Setter != "" {
		a |= Set
	}
	return a
}

// Planner resolves field names against declared fields as seen from one
// generation unit scope.
type Planner struct {
	oracle typesystem.VisibilityOracle
	scope  typesystem.Scope
}

func NewPlanner(oracle typesystem.VisibilityOracle, scope typesystem.Scope) *Planner {
	return &Planner{oracle: oracle, scope: scope}
}

// Explicit plans access to the field called name.
func (p *Planner) Explicit(name string, fields []typesystem.Field, access Access) (Plan, error) {
	if access&GetSet == 0 {
		return Plan{}, diagnostics.IllegalArgument("no access requested for field %q", name)
	}
	f, ok := findField(fields, name)
	if !ok {
		return Plan{}, diagnostics.IllegalArgument("no field named %q", name)
	}
	return p.plan(f, access)
}

// FromMethod derives the field from a bean style method name: getFoo and
// isFoo plan a getter for foo, setFoo plans a setter.
func (p *Planner) FromMethod(method string, fields []typesystem.Field) (Plan, error) {
	prefix, property, ok := splitBeanName(method)
	if !ok {
		return Plan{}, diagnostics.IllegalArgument("%q does not follow the get/is/set naming convention", method)
	}
	f, found := findField(fields, property)
	if !found {
		return Plan{}, diagnostics.IllegalArgument("%q implies field %q, which does not exist", method, property)
	}
	access := Get
	switch prefix {
	case "set":
		access = Set
	case "is":
		if !isBoolean(f.Type) {
			return Plan{}, diagnostics.IllegalArgument("%q implies a boolean field but %q is %s", method, property, f.Type)
		}
	}
	return p.plan(f, access)
}

func (p *Planner) plan(f typesystem.Field, access Access) (Plan, error) {
	if !p.oracle.IsVisibleFrom(f.Member(), p.scope) {
		return Plan{}, diagnostics.IllegalArgument("field %s.%s is %s and not visible from %s",
			f.Owner, f.Name, f.Visibility, p.scope.Package)
	}
	if access&Set != 0 && f.Final {
		return Plan{}, diagnostics.IllegalArgument("cannot plan a setter for final field %s.%s", f.Owner, f.Name)
	}
	plan := Plan{Field: f}
	property := capitalize(f.Name)
	if access&Get != 0 {
		if isBoolean(f.Type) {
			plan.Getter = "is" + property
		} else {
			plan.Getter = "get" + property
		}
	}
	if access&Set != 0 {
		plan.Setter = "set" + property
	}
	return plan, nil
}

func findField(fields []typesystem.Field, name string) (typesystem.Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return typesystem.Field{}, false
}

func isBoolean(t typesystem.Type) bool {
	return t.IsPrimitive() && (t.Name == "boolean" || t.Name == "bool")
}

var beanPrefixes = []string{"get", "set", "is"}

func splitBeanName(method string) (prefix, property string, ok bool) {
	for _, pre := range beanPrefixes {
		rest, found := strings.CutPrefix(method, pre)
		if !found || rest == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(rest)
		if !unicode.IsUpper(r) {
			continue
		}
		return pre, decapitalize(rest), true
	}
	return "", "", false
}

// decapitalize lowers the first letter unless the name starts with two
// capitals, so getURL maps to URL and getName to name.
func decapitalize(s string) string {
	first, n := utf8.DecodeRuneInString(s)
	if second, _ := utf8.DecodeRuneInString(s[n:]); unicode.IsUpper(first) && unicode.IsUpper(second) {
		return s
	}
	return string(unicode.ToLower(first)) + s[n:]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	first, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + s[n:]
}
