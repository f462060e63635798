package graphground

// join recombines per-component groundings. vars and clauses hold the
// grounding accumulated so far; compVars/compClauses are the index-aligned
// grounding sequences of the components still to fold in.
//
// With m components of N_1 ... N_m groundings, all N_1 * ... * N_m
// combinations may be explored. The last component is popped, each of its
// groundings is merged into a new map, and join recurses on the shorter
// stack. The stack is passed as a capped slice header, never appended to,
// and merged maps are never written after creation, so sibling branches
// cannot see each other's bindings.
//
// Once the stack is empty the combination goes through the virtual
// clauses, then the optional clauses, then cb.Grounding. Virtual clauses
// only reject: a pattern without them accepts every combination.
//
// A candidate that grounds one of its variables to a node already held by
// another variable is offered to cb.ScopeMatch first, as the search engine
// does within a component.
//
// join returns true as soon as one combination is accepted.
func (m *Matcher) join(cb Callback, virtuals []*Predicate, optionals []*Clause,
	vars VarGrounding, clauses ClauseGrounding,
	compVars [][]VarGrounding, compClauses [][]ClauseGrounding) bool {

	if len(compVars) == 0 {
		m.metrics.CombinationsExplored.Add(1)
		for _, virt := range virtuals {
			if !cb.EvaluatePredicate(virt, vars) {
				m.trace(TraceEvent{Kind: TraceCombinationRejected, Vars: vars, Reason: "virtual: " + virt.Expr})
				return false
			}
		}
		for _, opt := range optionals {
			if !cb.OptionalClauseMatch(opt, nil, vars) {
				m.trace(TraceEvent{Kind: TraceCombinationRejected, Vars: vars, Reason: "optional: " + opt.String()})
				return false
			}
		}
		if cb.Grounding(vars, clauses) {
			m.metrics.CombinationsAccepted.Add(1)
			m.trace(TraceEvent{Kind: TraceCombinationAccepted, Vars: vars})
			return true
		}
		m.trace(TraceEvent{Kind: TraceCombinationRejected, Vars: vars, Reason: "grounding"})
		return false
	}

	last := len(compVars) - 1
	vg, cg := compVars[last], compClauses[last]
	restVars, restClauses := compVars[:last:last], compClauses[:last:last]

	bound := make(map[NodeID][]Variable, len(vars))
	for v, id := range vars {
		bound[id] = append(bound[id], v)
	}

	for i := range vg {
		if !scopeCompatible(cb, bound, vg[i]) {
			continue
		}
		if m.join(cb, virtuals, optionals,
			mergeVars(vars, vg[i]), mergeClauses(clauses, cg[i]),
			restVars, restClauses) {
			return true
		}
	}
	return false
}

// scopeCompatible reports whether every variable of cand may share its node
// with the variables in bound already grounded to it.
func scopeCompatible(cb Callback, bound map[NodeID][]Variable, cand VarGrounding) bool {
	for v, id := range cand {
		for _, other := range bound[id] {
			if !cb.ScopeMatch(v, other, id) {
				return false
			}
		}
	}
	return true
}
