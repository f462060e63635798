package graphground

// ---------------------------------------------------------------------------
// Component decomposition.
//
// Clauses are the vertices of a graph; two clauses are adjacent when they
// share a declared variable. A connected component is grounded on its own:
// its groundings are independent of every other component's, so the full
// answer set is their cross product, filtered by the virtual clauses that
// tie the components back together.
//
// Constant clauses (no declared variable) never join a component. They
// hold or fail regardless of any grounding and are checked separately.
// ---------------------------------------------------------------------------

// IsConstant reports whether the clause contains none of the declared variables.
func IsConstant(vars map[Variable]bool, c *Clause) bool {
	for _, t := range c.terms() {
		if t.IsVariable() && vars[t.Var] {
			return false
		}
	}
	return true
}

// RemoveConstants splits clauses into those mentioning a declared variable
// and the constant ones. Order is preserved in both results.
func RemoveConstants(vars map[Variable]bool, clauses []*Clause) (kept, constants []*Clause) {
	for _, c := range clauses {
		if IsConstant(vars, c) {
			constants = append(constants, c)
		} else {
			kept = append(kept, c)
		}
	}
	return kept, constants
}

// ConnectedComponents partitions clauses into maximal subsets connected
// through shared variables. Components are ordered by their first clause,
// and clauses keep their input order inside a component. compVars[i] holds
// the declared variables of component i in first-use order.
//
// Constant clauses passed in here each form a component of their own;
// callers strip them first with RemoveConstants.
func ConnectedComponents(vars map[Variable]bool, clauses []*Clause) (comps [][]*Clause, compVars [][]Variable) {
	return BridgedComponents(vars, clauses, nil)
}

// BridgedComponents is ConnectedComponents with optional clauses folded
// into the connectivity graph. An optional clause that shares a variable
// with a mandatory clause joins that clause's component; optional clauses
// reachable from no mandatory clause form pure-optional components.
func BridgedComponents(vars map[Variable]bool, clauses, optionals []*Clause) (comps [][]*Clause, compVars [][]Variable) {
	all := make([]*Clause, 0, len(clauses)+len(optionals))
	all = append(all, clauses...)
	all = append(all, optionals...)

	uf := newUnionFind(len(all))
	owner := make(map[Variable]int) // variable → first clause index using it
	for i, c := range all {
		for _, t := range c.terms() {
			if !t.IsVariable() || !vars[t.Var] {
				continue
			}
			if j, ok := owner[t.Var]; ok {
				uf.union(i, j)
			} else {
				owner[t.Var] = i
			}
		}
	}

	index := make(map[int]int) // union-find root → component position
	seenVar := make([]map[Variable]bool, 0)
	for i, c := range all {
		root := uf.find(i)
		pos, ok := index[root]
		if !ok {
			pos = len(comps)
			index[root] = pos
			comps = append(comps, nil)
			compVars = append(compVars, nil)
			seenVar = append(seenVar, make(map[Variable]bool))
		}
		comps[pos] = append(comps[pos], c)
		for _, t := range c.terms() {
			if t.IsVariable() && vars[t.Var] && !seenVar[pos][t.Var] {
				seenVar[pos][t.Var] = true
				compVars[pos] = append(compVars[pos], t.Var)
			}
		}
	}
	return comps, compVars
}

// unionFind is a disjoint-set forest with path halving and union by size.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
}
