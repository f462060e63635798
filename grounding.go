package graphground

import (
	"fmt"
	"maps"
	"sort"
	"strings"
)

// VarGrounding maps pattern variables to the nodes they are grounded to.
type VarGrounding map[Variable]NodeID

// ClauseGrounding maps pattern clauses to the edges they matched.
type ClauseGrounding map[*Clause]EdgeID

// Grounding is one satisfying assignment. Groundings handed to a Callback
// are never mutated afterwards, so they may be retained.
type Grounding struct {
	Vars    VarGrounding
	Clauses ClauseGrounding
}

func (g VarGrounding) clone() VarGrounding {
	out := make(VarGrounding, len(g))
	maps.Copy(out, g)
	return out
}

func (g ClauseGrounding) clone() ClauseGrounding {
	out := make(ClauseGrounding, len(g))
	maps.Copy(out, g)
	return out
}

// mergeVars returns a new map holding base plus cand. Distinct components
// have disjoint variable domains, so no key of base is overwritten.
func mergeVars(base, cand VarGrounding) VarGrounding {
	out := make(VarGrounding, len(base)+len(cand))
	maps.Copy(out, base)
	maps.Copy(out, cand)
	return out
}

// mergeClauses is mergeVars for clause groundings.
func mergeClauses(base, cand ClauseGrounding) ClauseGrounding {
	out := make(ClauseGrounding, len(base)+len(cand))
	maps.Copy(out, base)
	maps.Copy(out, cand)
	return out
}

// String renders the grounding with variables in sorted order, e.g. "$a=1 $b=2".
func (g VarGrounding) String() string {
	names := make([]string, 0, len(g))
	for v := range g {
		names = append(names, string(v))
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("$%s=%d", n, g[Variable(n)])
	}
	return strings.Join(parts, " ")
}
