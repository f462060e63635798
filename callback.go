package graphground

// ---------------------------------------------------------------------------
// Callback: the capability interface between the grounding core, the
// search engine and whoever asked for the groundings.
//
// The search engine consults it for every structural decision while it
// matches clauses against the store; the core uses it to evaluate virtual
// and optional clauses and to hand over finished groundings. A single
// method, Grounding, carries the caller's accept/continue decision:
//
//	true  → stop searching, a grounding was accepted
//	false → keep searching for more groundings
// ---------------------------------------------------------------------------

// Searcher runs one depth-first search over a pattern. Explore returns true
// if some grounding was accepted by the callback.
type Searcher interface {
	Explore() bool
}

// Callback is the set of capabilities a search and the grounding core
// need from their caller.
type Callback interface {
	// NodeMatch reports whether a constant term may match the candidate node.
	NodeMatch(pattern, candidate NodeID) bool
	// VariableMatch reports whether a free variable may be grounded to candidate.
	VariableMatch(v Variable, candidate *Node) bool
	// ScopeMatch reports whether v may be grounded to candidate while other,
	// another variable in scope, is already grounded to it.
	ScopeMatch(v, other Variable, candidate NodeID) bool
	// LinkMatch reports whether a clause may match the candidate edge,
	// before its ends are examined.
	LinkMatch(clause *Clause, candidate *Edge) bool
	// PostLinkMatch is the final accept/reject for a clause once its ends matched.
	PostLinkMatch(clause *Clause, candidate *Edge) bool

	// EvaluatePredicate reports whether a virtual clause holds under vars.
	EvaluatePredicate(virt *Predicate, vars VarGrounding) bool
	// OptionalClauseMatch reports whether the grounding survives an optional
	// clause. candidate is the edge the optional clause matched, or nil when
	// it matched nothing.
	OptionalClauseMatch(opt *Clause, candidate *Edge, vars VarGrounding) bool

	// Grounding receives a complete grounding. Return true to stop the search.
	Grounding(vars VarGrounding, clauses ClauseGrounding) bool

	// InitiateSearch starts the search driven by s and returns its result.
	InitiateSearch(s Searcher) bool
	// SearchFinished is called once the search ended; its return value
	// replaces the search result.
	SearchFinished(found bool) bool

	// Push and Pop bracket every tentative clause match so implementations
	// can save and restore per-branch state.
	Push()
	Pop()

	// SetPattern announces the pattern currently being grounded.
	SetPattern(pat *Pattern)

	// OptionalsPresent reports whether the most recent search found a
	// grounding for some optional clause.
	OptionalsPresent() bool
}

// PassThrough forwards every Callback method to Delegate. Embed it to
// override a single capability and keep the rest.
type PassThrough struct {
	Delegate Callback
}

func (p PassThrough) NodeMatch(pattern, candidate NodeID) bool {
	return p.Delegate.NodeMatch(pattern, candidate)
}

func (p PassThrough) VariableMatch(v Variable, candidate *Node) bool {
	return p.Delegate.VariableMatch(v, candidate)
}

func (p PassThrough) ScopeMatch(v, other Variable, candidate NodeID) bool {
	return p.Delegate.ScopeMatch(v, other, candidate)
}

func (p PassThrough) LinkMatch(clause *Clause, candidate *Edge) bool {
	return p.Delegate.LinkMatch(clause, candidate)
}

func (p PassThrough) PostLinkMatch(clause *Clause, candidate *Edge) bool {
	return p.Delegate.PostLinkMatch(clause, candidate)
}

func (p PassThrough) EvaluatePredicate(virt *Predicate, vars VarGrounding) bool {
	return p.Delegate.EvaluatePredicate(virt, vars)
}

func (p PassThrough) OptionalClauseMatch(opt *Clause, candidate *Edge, vars VarGrounding) bool {
	return p.Delegate.OptionalClauseMatch(opt, candidate, vars)
}

func (p PassThrough) Grounding(vars VarGrounding, clauses ClauseGrounding) bool {
	return p.Delegate.Grounding(vars, clauses)
}

func (p PassThrough) InitiateSearch(s Searcher) bool { return p.Delegate.InitiateSearch(s) }

func (p PassThrough) SearchFinished(found bool) bool { return p.Delegate.SearchFinished(found) }

func (p PassThrough) Push() { p.Delegate.Push() }

func (p PassThrough) Pop() { p.Delegate.Pop() }

func (p PassThrough) SetPattern(pat *Pattern) { p.Delegate.SetPattern(pat) }

func (p PassThrough) OptionalsPresent() bool { return p.Delegate.OptionalsPresent() }
