package graphground

import (
	"context"
)

// Matcher grounds patterns against a graph. It is safe for concurrent use:
// every Satisfy call owns its search state.
type Matcher struct {
	graph   GraphReader
	tracer  Tracer
	metrics *Metrics
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithTracer sets the tracer receiving grounding events.
func WithTracer(t Tracer) MatcherOption {
	return func(m *Matcher) { m.tracer = t }
}

// WithMetrics makes the matcher count into an existing Metrics.
func WithMetrics(metrics *Metrics) MatcherOption {
	return func(m *Matcher) { m.metrics = metrics }
}

// NewMatcher returns a Matcher searching graph.
func NewMatcher(graph GraphReader, opts ...MatcherOption) *Matcher {
	m := &Matcher{graph: graph}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = &Metrics{}
	}
	return m
}

func (m *Matcher) trace(ev TraceEvent) {
	if m.tracer != nil {
		m.tracer.Trace(ev)
	}
}

// Satisfy finds groundings of pat and offers them to cb.Grounding until cb
// accepts one. It returns true if a grounding was accepted.
//
// A pattern with at most one connected component is searched directly.
// Otherwise every component is grounded on its own through a
// groundingCollector, and join explores the cross product of the
// per-component groundings, filtered by the virtual and optional clauses.
//
// Two outcomes end the search early:
//   - a mandatory component with no grounding: the product is empty, later
//     components are not searched;
//   - a disconnected pure-optional component that matched
//     (cb.OptionalsPresent): the whole pattern fails.
//
// The error is non-nil only when the search itself failed (storage error,
// cancelled context).
func (m *Matcher) Satisfy(ctx context.Context, pat *Pattern, cb Callback) (bool, error) {
	m.metrics.SatisfyCalls.Add(1)
	return m.satisfy(ctx, pat, cb)
}

func (m *Matcher) satisfy(ctx context.Context, pat *Pattern, cb Callback) (bool, error) {
	if pat.NumComponents() <= 1 {
		eng := newSearchEngine(ctx, m.graph, cb)
		eng.SetPattern(pat)
		cb.SetPattern(pat)
		m.metrics.ComponentSearches.Add(1)
		found := cb.InitiateSearch(eng)
		found = cb.SearchFinished(found)
		return found, eng.Err()
	}

	comps := pat.Components()
	var compVars [][]VarGrounding
	var compClauses [][]ClauseGrounding

	for i, comp := range comps {
		m.trace(TraceEvent{Kind: TraceComponentStart, Component: i + 1, Components: len(comps)})

		gcb := newGroundingCollector(cb)
		if _, err := m.satisfy(ctx, comp, gcb); err != nil {
			return false, err
		}
		m.metrics.GroundingsCollected.Add(uint64(gcb.Len()))
		m.trace(TraceEvent{Kind: TraceComponentGrounded, Component: i + 1, Components: len(comps), Groundings: gcb.Len()})

		if comp.IsPureOptional() {
			if cb.OptionalsPresent() {
				m.metrics.OptionalPresentFailures.Add(1)
				m.trace(TraceEvent{Kind: TraceOptionalPresent, Component: i + 1, Components: len(comps)})
				return false, nil
			}
			continue
		}

		if gcb.Len() == 0 {
			m.metrics.EmptyComponentAborts.Add(1)
			m.trace(TraceEvent{Kind: TraceComponentEmpty, Component: i + 1, Components: len(comps)})
			return false, nil
		}
		compVars = append(compVars, gcb.varGroundings)
		compClauses = append(compClauses, gcb.clauseGroundings)
	}

	cb.SetPattern(pat)
	return m.join(cb, pat.Virtuals(), pat.Optionals(),
		VarGrounding{}, ClauseGrounding{}, compVars, compClauses), nil
}
