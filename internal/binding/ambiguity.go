package binding

import (
	"fmt"
	"strings"

	"github.com/funvibe/bindsmith/internal/typesystem"
)

// Outcome is the verdict of comparing two valid plans.
type Outcome int

const (
	Undecided Outcome = iota // the rule has no opinion; try the next one
	AWins
	BWins
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case AWins:
		return "A"
	case BWins:
		return "B"
	case Ambiguous:
		return "ambiguous"
	default:
		return "undecided"
	}
}

// Rule is one tie breaker. The set is closed and evaluated by Chain.
type Rule int

const (
	RuleScore          Rule = iota // higher score tuple wins
	RuleDeclaringType              // more specific declaring type wins
	RuleParameterTypes             // pairwise more specific parameters win
	RulePriority                   // higher candidate priority wins
	RuleMethodName                 // candidate named like the receiver wins
	RuleParameterCount             // more bound parameters win
)

var ruleNames = map[Rule]string{
	RuleScore:          "score",
	RuleDeclaringType:  "declaring-type",
	RuleParameterTypes: "parameter-types",
	RulePriority:       "priority",
	RuleMethodName:     "name",
	RuleParameterCount: "length",
}

func (r Rule) String() string {
	if name, ok := ruleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Rule(%d)", int(r))
}

// ParseRule maps a configuration name to a Rule.
func ParseRule(s string) (Rule, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range ruleNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown tie breaker %q", s)
}

// Chain applies rules in order until one is decisive.
type Chain struct {
	oracle typesystem.Assignability
	rules  []Rule
}

// DefaultChain orders score, declaring type, then parameter types.
func DefaultChain(oracle typesystem.Assignability) Chain {
	return NewChain(oracle, RuleScore, RuleDeclaringType, RuleParameterTypes)
}

// ExtendedChain adds the optional tie breakers around the default rules:
// priority first, name and parameter count last.
func ExtendedChain(oracle typesystem.Assignability, extra ...Rule) Chain {
	rules := make([]Rule, 0, 6)
	has := func(r Rule) bool {
		for _, e := range extra {
			if e == r {
				return true
			}
		}
		return false
	}
	if has(RulePriority) {
		rules = append(rules, RulePriority)
	}
	rules = append(rules, RuleScore, RuleDeclaringType, RuleParameterTypes)
	if has(RuleMethodName) {
		rules = append(rules, RuleMethodName)
	}
	if has(RuleParameterCount) {
		rules = append(rules, RuleParameterCount)
	}
	return NewChain(oracle, rules...)
}

// NewChain returns a chain with exactly the given rules.
func NewChain(oracle typesystem.Assignability, rules ...Rule) Chain {
	return Chain{oracle: oracle, rules: append([]Rule(nil), rules...)}
}

// Rules returns the rule order.
func (c Chain) Rules() []Rule { return append([]Rule(nil), c.rules...) }

// Dominates compares two valid plans and names the deciding rule. When no
// rule decides, the outcome is Ambiguous and the rule is the last one tried.
func (c Chain) Dominates(recv *Receiver, a, b *Plan) (Outcome, Rule) {
	var last Rule
	for _, rule := range c.rules {
		last = rule
		if out := c.apply(rule, recv, a, b); out != Undecided {
			return out, rule
		}
	}
	return Ambiguous, last
}

func (c Chain) apply(rule Rule, recv *Receiver, a, b *Plan) Outcome {
	switch rule {
	case RuleScore:
		return byComparison(a.Score.Compare(b.Score))
	case RuleDeclaringType:
		return bySpecificity(typesystem.Specificity(c.oracle, a.Candidate.Declaring, b.Candidate.Declaring))
	case RuleParameterTypes:
		return c.parameterTypes(a, b)
	case RulePriority:
		return byComparison(sign(a.Candidate.Priority - b.Candidate.Priority))
	case RuleMethodName:
		aSame := a.Candidate.Name == recv.Name
		bSame := b.Candidate.Name == recv.Name
		switch {
		case aSame && !bSame:
			return AWins
		case bSame && !aSame:
			return BWins
		}
		return Undecided
	case RuleParameterCount:
		return byComparison(sign(a.Bound - b.Bound))
	}
	return Undecided
}

func (c Chain) parameterTypes(a, b *Plan) Outcome {
	pa, pb := a.Candidate.Params, b.Candidate.Params
	if len(pa) != len(pb) {
		return Undecided
	}
	aNarrower, bNarrower := false, false
	for i := range pa {
		switch typesystem.Specificity(c.oracle, pa[i].Type, pb[i].Type) {
		case typesystem.Same:
		case typesystem.Narrower:
			aNarrower = true
		case typesystem.Wider:
			bNarrower = true
		default:
			return Undecided
		}
	}
	switch {
	case aNarrower && !bNarrower:
		return AWins
	case bNarrower && !aNarrower:
		return BWins
	}
	return Undecided
}

func byComparison(cmp int) Outcome {
	switch {
	case cmp > 0:
		return AWins
	case cmp < 0:
		return BWins
	}
	return Undecided
}

func bySpecificity(o typesystem.Order) Outcome {
	switch o {
	case typesystem.Narrower:
		return AWins
	case typesystem.Wider:
		return BWins
	}
	return Undecided
}
