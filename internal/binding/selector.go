package binding

import (
	"log/slog"

	"github.com/funvibe/bindsmith/internal/diagnostics"
)

// Selector picks the unique best candidate for a receiver.
type Selector struct {
	resolver *Resolver
	chain    Chain
	logger   *slog.Logger
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithLogger routes binding decisions to l at debug level.
func WithLogger(l *slog.Logger) SelectorOption {
	return func(s *Selector) { s.logger = l }
}

// NewSelector returns a selector using resolver for plans and chain for
// ties.
func NewSelector(resolver *Resolver, chain Chain, opts ...SelectorOption) *Selector {
	s := &Selector{resolver: resolver, chain: chain, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolver returns the underlying resolver.
func (s *Selector) Resolver() *Resolver { return s.resolver }

// Select folds over candidates and returns the winning plan.
//
// Ties are not fatal when they are found: the selector keeps a frontier of
// plans no rule could separate, and a later candidate that beats every
// frontier member still wins. Only a frontier of two or more plans at the
// end is reported as ambiguous.
func (s *Selector) Select(recv *Receiver, candidates []Candidate) (*Plan, error) {
	var (
		frontier   []*Plan
		lastRule   Rule
		rejections []diagnostics.Rejection
	)

	for i := range candidates {
		c := &candidates[i]
		plan, err := s.resolver.Attempt(recv, c)
		if err != nil {
			return nil, err
		}
		if !plan.Valid() {
			s.logger.Debug("candidate rejected", "receiver", recv.String(), "candidate", c.String(), "reason", plan.Reason(), "bound", plan.Bound)
			rejections = append(rejections, diagnostics.Rejection{Candidate: c.String(), Reason: plan.Reason()})
			continue
		}

		outcomes := make([]Outcome, len(frontier))
		dominated := false
		for j, cur := range frontier {
			out, rule := s.chain.Dominates(recv, cur, plan)
			outcomes[j] = out
			switch out {
			case AWins:
				dominated = true
			case Ambiguous:
				lastRule = rule
			}
		}
		if dominated {
			s.logger.Debug("candidate dominated", "receiver", recv.String(), "candidate", c.String())
			continue
		}

		kept := make([]*Plan, 0, len(frontier)+1)
		for j, cur := range frontier {
			if outcomes[j] == BWins {
				s.logger.Debug("candidate displaced", "receiver", recv.String(), "loser", cur.Candidate.String(), "winner", c.String())
				continue
			}
			kept = append(kept, cur)
		}
		frontier = append(kept, plan)
	}

	switch len(frontier) {
	case 0:
		return nil, &diagnostics.NoCandidateError{
			Receiver:   recv.String(),
			Considered: len(candidates),
			Rejections: rejections,
		}
	case 1:
		s.logger.Debug("binding selected", "receiver", recv.String(), "target", frontier[0].Candidate.String(), "score", frontier[0].Score.String())
		return frontier[0], nil
	}

	names := make([]string, len(frontier))
	for i, p := range frontier {
		names[i] = p.Candidate.String()
	}
	return nil, &diagnostics.AmbiguousCandidateError{
		Receiver:   recv.String(),
		Candidates: names,
		Rule:       lastRule.String(),
	}
}
