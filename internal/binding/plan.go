package binding

import (
	"fmt"
	"strings"
)

// Score orders plans; fields are compared in declaration order and higher
// is better.
type Score struct {
	// Total is the sum of parameter weights (exact 3, assignable 2, loose 1).
	Total int
	// Exact counts exact-type parameter matches.
	Exact int
}

// Compare returns -1, 0 or 1.
func (s Score) Compare(o Score) int {
	switch {
	case s.Total != o.Total:
		return sign(s.Total - o.Total)
	case s.Exact != o.Exact:
		return sign(s.Exact - o.Exact)
	}
	return 0
}

func (s Score) String() string {
	return fmt.Sprintf("(%d,%d)", s.Total, s.Exact)
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

// Plan is the outcome of binding one candidate against a receiver. An
// invalid plan keeps the number of parameters that did bind and the reason
// for the rejection, for diagnostics.
type Plan struct {
	Candidate *Candidate
	Sources   []ArgumentSource
	Score     Score
	Bound     int

	valid  bool
	reason string
}

func invalidPlan(c *Candidate, bound int, format string, args ...any) *Plan {
	return &Plan{Candidate: c, Bound: bound, reason: fmt.Sprintf(format, args...)}
}

func (p *Plan) Valid() bool { return p.valid }

// Reason explains why an invalid plan was rejected.
func (p *Plan) Reason() string { return p.reason }

func (p *Plan) String() string {
	if !p.valid {
		return fmt.Sprintf("%s: invalid (%s)", p.Candidate, p.reason)
	}
	parts := make([]string, len(p.Sources))
	for i, s := range p.Sources {
		parts[i] = s.String()
	}
	return fmt.Sprintf("%s <- [%s] score %s", p.Candidate, strings.Join(parts, ", "), p.Score)
}
