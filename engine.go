package graphground

import (
	"context"
	"errors"
)

// GraphReader is the read side of a graph store. *DB implements it.
type GraphReader interface {
	GetNode(id NodeID) (*Node, error)
	OutEdges(id NodeID) ([]*Edge, error)
	InEdges(id NodeID) ([]*Edge, error)
	OutEdgesLabeled(id NodeID, label string) ([]*Edge, error)
	InEdgesLabeled(id NodeID, label string) ([]*Edge, error)
	EdgesByLabel(label string) ([]*Edge, error)
	ForEachEdge(fn func(*Edge) error) error
}

// ---------------------------------------------------------------------------
// Search engine: depth-first matching of one pattern's clauses.
//
// At each level the engine picks the next unmatched clause, preferring one
// with an end already fixed (a constant or a grounded variable) so that
// candidates come from an adjacency scan instead of an index or full scan:
//
//	from fixed   → OutEdges(Labeled)(from)
//	to fixed     → InEdges(Labeled)(to)
//	label only   → EdgesByLabel(label)
//	nothing      → every edge
//
// Every candidate goes through LinkMatch, the end checks (NodeMatch,
// VariableMatch, ScopeMatch) and PostLinkMatch before the engine descends
// under Push/Pop. When all mandatory clauses are matched, the optional and
// virtual clauses of the pattern are checked and a copy of the grounding is
// offered to Callback.Grounding.
//
// The engine has no clause planner: apart from the fixed-end preference,
// clauses are tried in pattern order.
// ---------------------------------------------------------------------------

// searchEngine is not safe for concurrent use; one engine runs one search.
type searchEngine struct {
	ctx   context.Context
	graph GraphReader
	cb    Callback
	pat   *Pattern

	vars    VarGrounding
	clauses ClauseGrounding
	boundBy map[NodeID][]Variable // node → variables currently grounded to it
	err     error
}

func newSearchEngine(ctx context.Context, graph GraphReader, cb Callback) *searchEngine {
	return &searchEngine{ctx: ctx, graph: graph, cb: cb}
}

// SetPattern selects the pattern the next Explore grounds.
func (e *searchEngine) SetPattern(pat *Pattern) {
	e.pat = pat
}

// Explore runs the search to completion or until the callback accepts a
// grounding. Storage failures and cancellation end the search; see Err.
func (e *searchEngine) Explore() bool {
	e.vars = make(VarGrounding, len(e.pat.vars))
	e.clauses = make(ClauseGrounding, len(e.pat.mandatory))
	e.boundBy = make(map[NodeID][]Variable)
	return e.explore()
}

// Err returns the storage or context error that ended the search, if any.
func (e *searchEngine) Err() error {
	return e.err
}

func (e *searchEngine) explore() bool {
	if e.err != nil {
		return false
	}
	if err := e.ctx.Err(); err != nil {
		e.err = err
		return false
	}

	c := e.nextClause()
	if c == nil {
		return e.report()
	}

	cands, err := candidateEdges(e.graph, c, e.resolve(c.From), e.resolve(c.To))
	if err != nil {
		e.err = err
		return false
	}
	for _, edge := range cands {
		if !e.cb.LinkMatch(c, edge) {
			continue
		}
		newly, ok := e.bindEnds(c, edge)
		if !ok {
			continue
		}
		if !e.cb.PostLinkMatch(c, edge) {
			e.unbind(newly)
			continue
		}

		e.cb.Push()
		e.clauses[c] = edge.ID
		stop := e.explore()
		delete(e.clauses, c)
		e.cb.Pop()
		e.unbind(newly)

		if stop {
			return true
		}
		if e.err != nil {
			return false
		}
	}
	return false
}

// nextClause returns the first unmatched mandatory clause with a fixed
// end, else the first unmatched one, else nil.
func (e *searchEngine) nextClause() *Clause {
	var first *Clause
	for _, c := range e.pat.mandatory {
		if _, done := e.clauses[c]; done {
			continue
		}
		if e.resolve(c.From) != nil || e.resolve(c.To) != nil {
			return c
		}
		if first == nil {
			first = c
		}
	}
	return first
}

// resolve returns the node a term is fixed to, or nil for a free variable.
func (e *searchEngine) resolve(t Term) *NodeID {
	if !t.IsVariable() {
		id := t.Node
		return &id
	}
	if id, ok := e.vars[t.Var]; ok {
		return &id
	}
	return nil
}

// bindEnds checks both ends of the candidate edge against the clause and
// grounds any free variables. On failure nothing stays bound.
func (e *searchEngine) bindEnds(c *Clause, edge *Edge) (newly []Variable, ok bool) {
	ends := [2]struct {
		term Term
		id   NodeID
	}{{c.From, edge.From}, {c.To, edge.To}}

	for _, end := range ends {
		t, id := end.term, end.id
		if !t.IsVariable() {
			if !e.cb.NodeMatch(t.Node, id) {
				e.unbind(newly)
				return nil, false
			}
			continue
		}
		if bound, isBound := e.vars[t.Var]; isBound {
			if bound != id {
				e.unbind(newly)
				return nil, false
			}
			continue
		}

		node, err := e.graph.GetNode(id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				e.err = err
			}
			e.unbind(newly)
			return nil, false
		}
		if !e.cb.VariableMatch(t.Var, node) {
			e.unbind(newly)
			return nil, false
		}
		for _, other := range e.boundBy[id] {
			if !e.cb.ScopeMatch(t.Var, other, id) {
				e.unbind(newly)
				return nil, false
			}
		}
		e.vars[t.Var] = id
		e.boundBy[id] = append(e.boundBy[id], t.Var)
		newly = append(newly, t.Var)
	}
	return newly, true
}

// unbind releases variables in reverse binding order.
func (e *searchEngine) unbind(vs []Variable) {
	for i := len(vs) - 1; i >= 0; i-- {
		v := vs[i]
		id := e.vars[v]
		if l := e.boundBy[id]; len(l) > 1 {
			e.boundBy[id] = l[:len(l)-1]
		} else {
			delete(e.boundBy, id)
		}
		delete(e.vars, v)
	}
}

// report runs the optional and virtual clauses against a complete
// grounding of the mandatory clauses and offers it to the callback.
func (e *searchEngine) report() bool {
	vars := e.vars.clone()
	for _, opt := range e.pat.optionals {
		edge, err := e.findOptional(opt)
		if err != nil {
			e.err = err
			return false
		}
		if !e.cb.OptionalClauseMatch(opt, edge, vars) {
			return false
		}
	}
	for _, virt := range e.pat.virtuals {
		if !e.cb.EvaluatePredicate(virt, vars) {
			return false
		}
	}
	return e.cb.Grounding(vars, e.clauses.clone())
}

// findOptional returns the first edge grounding an optional clause under
// the current bindings, or nil. Free variables act as wildcards; they are
// not bound by the match.
func (e *searchEngine) findOptional(opt *Clause) (*Edge, error) {
	from, to := e.resolve(opt.From), e.resolve(opt.To)
	cands, err := candidateEdges(e.graph, opt, from, to)
	if err != nil {
		return nil, err
	}
	for _, edge := range cands {
		if !endsAgree(opt, edge, from, to) {
			continue
		}
		if e.cb.LinkMatch(opt, edge) {
			return edge, nil
		}
	}
	return nil, nil
}

// candidateEdges lists edges that may match c given its fixed ends. The
// label is honoured; ends are only pre-filtered, callers still check them.
func candidateEdges(g GraphReader, c *Clause, from, to *NodeID) ([]*Edge, error) {
	switch {
	case from != nil:
		var edges []*Edge
		var err error
		if c.Label != "" {
			edges, err = g.OutEdgesLabeled(*from, c.Label)
		} else {
			edges, err = g.OutEdges(*from)
		}
		if err != nil || to == nil {
			return edges, err
		}
		filtered := edges[:0]
		for _, edge := range edges {
			if edge.To == *to {
				filtered = append(filtered, edge)
			}
		}
		return filtered, nil
	case to != nil:
		if c.Label != "" {
			return g.InEdgesLabeled(*to, c.Label)
		}
		return g.InEdges(*to)
	case c.Label != "":
		return g.EdgesByLabel(c.Label)
	default:
		var edges []*Edge
		err := g.ForEachEdge(func(edge *Edge) error {
			edges = append(edges, edge)
			return nil
		})
		return edges, err
	}
}

// endsAgree reports whether edge is consistent with c's fixed ends and,
// for a clause whose two ends are the same free variable, is a self-loop.
func endsAgree(c *Clause, edge *Edge, from, to *NodeID) bool {
	if from != nil && edge.From != *from {
		return false
	}
	if to != nil && edge.To != *to {
		return false
	}
	if from == nil && to == nil && c.From.IsVariable() && c.From.Var == c.To.Var {
		return edge.From == edge.To
	}
	return true
}
