package graphground

import (
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
)

// DefaultCallback is the store-backed Callback used by DB.Ground.
//
// Matching is structural: constants match by node ID, variables accept
// any node, clauses match on label. Virtual clauses run their expr-lang
// program with each variable bound to its node's properties (plus "_id").
//
// Optional clauses have absence semantics: a grounding survives an
// optional clause only when that clause has no grounding extending it.
// Finding one sets the optionals-present flag, which the orchestrator
// reads after searching a disconnected pure-optional component.
type DefaultCallback struct {
	// DistinctBindings forbids grounding two variables to the same node.
	DistinctBindings bool
	// OnGrounding receives accepted groundings; its result is the stop signal.
	// A nil OnGrounding stops at the first grounding.
	OnGrounding func(Grounding) bool

	graph            GraphReader
	log              *slog.Logger
	pattern          *Pattern
	optionalsPresent bool
	err              error
}

// NewDefaultCallback returns a callback reading nodes and edges from graph.
func NewDefaultCallback(graph GraphReader, log *slog.Logger, onGrounding func(Grounding) bool) *DefaultCallback {
	if log == nil {
		log = slog.Default()
	}
	return &DefaultCallback{graph: graph, log: log, OnGrounding: onGrounding}
}

// Err returns the first store or evaluation error met while matching.
// Errors make the affected candidate fail; they never abort the search.
func (cb *DefaultCallback) Err() error { return cb.err }

// Pattern returns the pattern most recently announced by SetPattern.
func (cb *DefaultCallback) Pattern() *Pattern { return cb.pattern }

func (cb *DefaultCallback) fail(err error) bool {
	if cb.err == nil {
		cb.err = err
	}
	cb.log.Warn("grounding candidate rejected", "error", err)
	return false
}

func (cb *DefaultCallback) NodeMatch(pattern, candidate NodeID) bool {
	return pattern == candidate
}

func (cb *DefaultCallback) VariableMatch(Variable, *Node) bool { return true }

func (cb *DefaultCallback) ScopeMatch(_, _ Variable, _ NodeID) bool {
	return !cb.DistinctBindings
}

func (cb *DefaultCallback) LinkMatch(clause *Clause, candidate *Edge) bool {
	return clause.Label == "" || clause.Label == candidate.Label
}

func (cb *DefaultCallback) PostLinkMatch(*Clause, *Edge) bool { return true }

// EvaluatePredicate runs the virtual clause. Non-boolean results and
// runtime errors reject the grounding and are recorded in Err.
func (cb *DefaultCallback) EvaluatePredicate(virt *Predicate, vars VarGrounding) bool {
	env := make(map[string]any, len(virt.vars))
	for _, v := range virt.vars {
		id, ok := vars[v]
		if !ok {
			return cb.fail(fmt.Errorf("%w: %q: variable %q is not grounded", ErrBadPredicate, virt.Expr, v))
		}
		node, err := cb.graph.GetNode(id)
		if err != nil {
			return cb.fail(err)
		}
		fields := make(map[string]any, len(node.Props)+1)
		for k, val := range node.Props {
			fields[k] = val
		}
		fields["_id"] = int(id)
		env[string(v)] = fields
	}

	out, err := expr.Run(virt.program, env)
	if err != nil {
		return cb.fail(fmt.Errorf("graphground: virtual clause %q: %w", virt.Expr, err))
	}
	holds, ok := out.(bool)
	if !ok {
		return cb.fail(fmt.Errorf("%w: %q returned %T, want bool", ErrBadPredicate, virt.Expr, out))
	}
	return holds
}

// OptionalClauseMatch rejects the grounding when the optional clause is
// present: either the search found it (candidate != nil) or it has a
// grounding in the store extending vars.
func (cb *DefaultCallback) OptionalClauseMatch(opt *Clause, candidate *Edge, vars VarGrounding) bool {
	if candidate == nil {
		present, err := clausePresent(cb.graph, opt, vars)
		if err != nil {
			return cb.fail(err)
		}
		if !present {
			return true
		}
	}
	cb.optionalsPresent = true
	return false
}

// Grounding forwards the grounding to OnGrounding.
func (cb *DefaultCallback) Grounding(vars VarGrounding, clauses ClauseGrounding) bool {
	cb.log.Debug("grounding found", "vars", vars.String())
	if cb.OnGrounding == nil {
		return true
	}
	return cb.OnGrounding(Grounding{Vars: vars, Clauses: clauses})
}

// InitiateSearch clears the optionals-present flag and runs the search.
func (cb *DefaultCallback) InitiateSearch(s Searcher) bool {
	cb.optionalsPresent = false
	return s.Explore()
}

func (cb *DefaultCallback) SearchFinished(found bool) bool { return found }

// Push and Pop are no-ops: DefaultCallback keeps no per-branch state.
func (cb *DefaultCallback) Push() {}

func (cb *DefaultCallback) Pop() {}

func (cb *DefaultCallback) SetPattern(pat *Pattern) { cb.pattern = pat }

func (cb *DefaultCallback) OptionalsPresent() bool { return cb.optionalsPresent }

// clausePresent reports whether some edge grounds c under vars, treating
// variables missing from vars as wildcards.
func clausePresent(g GraphReader, c *Clause, vars VarGrounding) (bool, error) {
	resolve := func(t Term) *NodeID {
		if !t.IsVariable() {
			id := t.Node
			return &id
		}
		if id, ok := vars[t.Var]; ok {
			return &id
		}
		return nil
	}
	from, to := resolve(c.From), resolve(c.To)
	cands, err := candidateEdges(g, c, from, to)
	if err != nil {
		return false, err
	}
	for _, edge := range cands {
		if endsAgree(c, edge, from, to) {
			return true, nil
		}
	}
	return false, nil
}
