package graphground

// groundingCollector wraps a caller's Callback while one connected
// component is searched. Every capability passes straight through except
// Grounding: each grounding is recorded and the search is told to keep
// going, so the component's groundings are enumerated exhaustively.
// Accept/reject for whole-pattern combinations happens later, in join,
// where all components are known.
type groundingCollector struct {
	PassThrough

	varGroundings    []VarGrounding
	clauseGroundings []ClauseGrounding
}

func newGroundingCollector(cb Callback) *groundingCollector {
	return &groundingCollector{PassThrough: PassThrough{Delegate: cb}}
}

// Grounding records the grounding and always returns false.
func (c *groundingCollector) Grounding(vars VarGrounding, clauses ClauseGrounding) bool {
	c.varGroundings = append(c.varGroundings, vars)
	c.clauseGroundings = append(c.clauseGroundings, clauses)
	return false
}

// Len returns how many groundings were collected.
func (c *groundingCollector) Len() int { return len(c.varGroundings) }
