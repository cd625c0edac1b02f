package binding

import (
	"strings"

	"github.com/funvibe/bindsmith/internal/typesystem"
)

// Receiver is the operation whose behavior is being synthesized.
type Receiver struct {
	Name      string
	Params    []typesystem.Type
	Return    typesystem.Type
	Declaring typesystem.Type
	Static    bool
}

// Descriptor returns "(params)return".
func (r *Receiver) Descriptor() string {
	return typesystem.Descriptor(r.Params, r.Return)
}

func (r *Receiver) String() string {
	return r.Declaring.Name + "." + r.Name + r.Descriptor()
}

// Parameter is one delegate parameter with its optional role tag.
type Parameter struct {
	Type typesystem.Type
	Tag  Tag
}

// Candidate is a callable that may supply the receiver's behavior.
type Candidate struct {
	Name       string
	Params     []Parameter
	Return     typesystem.Type
	Declaring  typesystem.Type
	Package    string
	Visibility typesystem.Visibility
	Static     bool

	// Ignored excludes the candidate before any scoring.
	Ignored bool
	// Special marks a candidate that cannot be invoked directly from the
	// generated unit (a super call, for instance) and therefore needs an
	// accessor shim.
	Special bool
	// Priority only matters when the priority tie breaker is enabled.
	Priority int
}

// ParamTypes returns the declared parameter types in order.
func (c *Candidate) ParamTypes() []typesystem.Type {
	types := make([]typesystem.Type, len(c.Params))
	for i, p := range c.Params {
		types[i] = p.Type
	}
	return types
}

func (c *Candidate) Descriptor() string {
	return typesystem.Descriptor(c.ParamTypes(), c.Return)
}

// Member returns the candidate as seen by the visibility oracle.
func (c *Candidate) Member() typesystem.Member {
	return typesystem.Member{
		Name:       c.Name,
		Owner:      c.Declaring,
		Package:    c.Package,
		Visibility: c.Visibility,
	}
}

func (c *Candidate) String() string {
	var sb strings.Builder
	sb.WriteString(c.Declaring.Name)
	sb.WriteByte('.')
	sb.WriteString(c.Name)
	sb.WriteByte('(')
	for i, p := range c.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if tag := p.Tag.String(); tag != "" {
			sb.WriteString(tag)
			sb.WriteByte(' ')
		}
		sb.WriteString(p.Type.Name)
	}
	sb.WriteByte(')')
	if !c.Return.IsZero() {
		sb.WriteByte(' ')
		sb.WriteString(c.Return.Name)
	}
	return sb.String()
}
