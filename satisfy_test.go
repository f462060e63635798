package graphground

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// socialGraph node IDs: alice=1 bob=2 carol=3 dave=4.
const socialGraph = `
nodes:
  - {key: alice, props: {name: Alice, age: 30}}
  - {key: bob, props: {name: Bob, age: 25}}
  - {key: carol, props: {name: Carol, age: 35}}
  - {key: dave, props: {name: Dave, age: 40}}
edges:
  - {from: alice, to: bob, label: knows}
  - {from: bob, to: carol, label: knows}
  - {from: carol, to: dave, label: likes}
  - {from: dave, to: alice, label: likes}
`

// mustPattern builds a pattern or fails the test.
func mustPattern(t *testing.T, vs []Variable, mandatory, optionals []*Clause, virtuals ...string) *Pattern {
	t.Helper()
	preds := make([]*Predicate, 0, len(virtuals))
	for _, src := range virtuals {
		p, err := NewPredicate(src)
		if err != nil {
			t.Fatalf("NewPredicate(%q) failed: %v", src, err)
		}
		preds = append(preds, p)
	}
	pat, err := NewPattern(vs, mandatory, optionals, preds)
	if err != nil {
		t.Fatalf("NewPattern failed: %v", err)
	}
	return pat
}

// collectAll returns a DefaultCallback that keeps every grounding.
func collectAll(db *DB, into *[]Grounding) *DefaultCallback {
	return NewDefaultCallback(db, db.Logger(), func(g Grounding) bool {
		*into = append(*into, g)
		return false
	})
}

func renderVars(gs []Grounding) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.Vars.String()
	}
	sort.Strings(out)
	return out
}

// countingCallback counts the searches started through it.
type countingCallback struct {
	PassThrough
	searches int
}

func (c *countingCallback) InitiateSearch(s Searcher) bool {
	c.searches++
	return c.Delegate.InitiateSearch(s)
}

func TestSatisfySingleComponent(t *testing.T) {
	db := testDB(t)
	ids := seedGraph(t, db, socialGraph)

	knows := NewClause(V("a"), "knows", V("b"))
	pat := mustPattern(t, vars("a", "b"), []*Clause{knows}, nil)
	if pat.NumComponents() != 1 {
		t.Fatalf("expected 1 component, got %d", pat.NumComponents())
	}

	var got []Grounding
	cb := NewDefaultCallback(db, db.Logger(), func(g Grounding) bool {
		got = append(got, g)
		return true
	})
	m := NewMatcher(db)
	found, err := m.Satisfy(context.Background(), pat, cb)
	if err != nil {
		t.Fatalf("Satisfy failed: %v", err)
	}
	if !found {
		t.Fatal("expected a grounding")
	}
	if len(got) != 1 {
		t.Fatalf("expected search to stop at the first grounding, got %d", len(got))
	}

	want := VarGrounding{"a": ids["alice"], "b": ids["bob"]}
	if diff := cmp.Diff(want, got[0].Vars); diff != "" {
		t.Errorf("grounding mismatch (-want +got):\n%s", diff)
	}
	edgeID, ok := got[0].Clauses[knows]
	if !ok {
		t.Fatal("clause grounding missing the knows clause")
	}
	edge, err := db.GetEdge(edgeID)
	if err != nil {
		t.Fatalf("GetEdge failed: %v", err)
	}
	if edge.From != ids["alice"] || edge.To != ids["bob"] {
		t.Errorf("clause grounded to wrong edge %s", edge)
	}
}

func TestSatisfySingleComponentNoMatch(t *testing.T) {
	db := testDB(t)
	seedGraph(t, db, socialGraph)

	pat := mustPattern(t, vars("a", "b"), []*Clause{NewClause(V("a"), "hates", V("b"))}, nil)
	var got []Grounding
	found, err := NewMatcher(db).Satisfy(context.Background(), pat, collectAll(db, &got))
	if err != nil {
		t.Fatalf("Satisfy failed: %v", err)
	}
	if found || len(got) != 0 {
		t.Errorf("expected no grounding, got found=%v %v", found, renderVars(got))
	}
}

func TestSatisfyCrossProduct(t *testing.T) {
	db := testDB(t)
	seedGraph(t, db, socialGraph)

	knows := NewClause(V("a"), "knows", V("b"))
	likes := NewClause(V("c"), "likes", V("d"))

	t.Run("all combinations", func(t *testing.T) {
		pat := mustPattern(t, vars("a", "b", "c", "d"), []*Clause{knows, likes}, nil)
		if pat.NumComponents() != 2 {
			t.Fatalf("expected 2 components, got %d", pat.NumComponents())
		}
		var got []Grounding
		found, err := NewMatcher(db).Satisfy(context.Background(), pat, collectAll(db, &got))
		if err != nil {
			t.Fatalf("Satisfy failed: %v", err)
		}
		if found {
			t.Error("collector callback never accepts, expected false")
		}
		want := []string{
			"$a=1 $b=2 $c=3 $d=4",
			"$a=1 $b=2 $c=4 $d=1",
			"$a=2 $b=3 $c=3 $d=4",
			"$a=2 $b=3 $c=4 $d=1",
		}
		if diff := cmp.Diff(want, renderVars(got)); diff != "" {
			t.Errorf("groundings mismatch (-want +got):\n%s", diff)
		}
		for _, g := range got {
			if len(g.Clauses) != 2 {
				t.Errorf("expected both clauses grounded, got %d", len(g.Clauses))
			}
		}
	})

	t.Run("virtual clause filters", func(t *testing.T) {
		pat := mustPattern(t, vars("a", "b", "c", "d"), []*Clause{knows, likes}, nil, "b.age < d.age")
		var got []Grounding
		if _, err := NewMatcher(db).Satisfy(context.Background(), pat, collectAll(db, &got)); err != nil {
			t.Fatalf("Satisfy failed: %v", err)
		}
		want := []string{
			"$a=1 $b=2 $c=3 $d=4",
			"$a=1 $b=2 $c=4 $d=1",
			"$a=2 $b=3 $c=3 $d=4",
		}
		if diff := cmp.Diff(want, renderVars(got)); diff != "" {
			t.Errorf("groundings mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestSatisfyEmptyFactorShortCircuit(t *testing.T) {
	db := testDB(t)
	seedGraph(t, db, socialGraph)

	pat := mustPattern(t, vars("a", "b", "c", "d", "e", "f"), []*Clause{
		NewClause(V("a"), "knows", V("b")),
		NewClause(V("c"), "hates", V("d")),
		NewClause(V("e"), "likes", V("f")),
	}, nil)
	if pat.NumComponents() != 3 {
		t.Fatalf("expected 3 components, got %d", pat.NumComponents())
	}

	var got []Grounding
	cb := &countingCallback{PassThrough: PassThrough{Delegate: collectAll(db, &got)}}
	m := NewMatcher(db)
	found, err := m.Satisfy(context.Background(), pat, cb)
	if err != nil {
		t.Fatalf("Satisfy failed: %v", err)
	}
	if found {
		t.Error("expected false for an empty component")
	}
	if cb.searches != 2 {
		t.Errorf("expected 2 component searches before aborting, got %d", cb.searches)
	}
	if len(got) != 0 {
		t.Errorf("expected no grounding to reach the caller, got %v", renderVars(got))
	}
	if n := m.metrics.EmptyComponentAborts.Load(); n != 1 {
		t.Errorf("expected 1 empty-component abort, got %d", n)
	}
	if n := m.metrics.CombinationsExplored.Load(); n != 0 {
		t.Errorf("expected no combination explored, got %d", n)
	}
}

func TestSatisfyPureOptionalDisconnected(t *testing.T) {
	db := testDB(t)
	ids := seedGraph(t, db, socialGraph)

	knows := NewClause(V("a"), "knows", V("b"))
	spam := NewClause(V("x"), "spam", V("y"))
	pat := mustPattern(t, vars("a", "b", "x", "y"), []*Clause{knows}, []*Clause{spam})
	if pat.NumComponents() != 2 || !pat.Components()[1].IsPureOptional() {
		t.Fatalf("expected a mandatory and a pure-optional component")
	}

	// No spam edge yet: the optional is absent and the mandatory part grounds.
	var got []Grounding
	m := NewMatcher(db)
	if _, err := m.Satisfy(context.Background(), pat, collectAll(db, &got)); err != nil {
		t.Fatalf("Satisfy failed: %v", err)
	}
	want := []string{"$a=1 $b=2", "$a=2 $b=3"}
	if diff := cmp.Diff(want, renderVars(got)); diff != "" {
		t.Errorf("groundings mismatch (-want +got):\n%s", diff)
	}

	// A matching disconnected optional fails the whole search.
	if _, err := db.AddEdge(ids["dave"], ids["carol"], "spam", nil); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}
	got = nil
	cb := collectAll(db, &got)
	found, err := m.Satisfy(context.Background(), pat, cb)
	if err != nil {
		t.Fatalf("Satisfy failed: %v", err)
	}
	if found || len(got) != 0 {
		t.Errorf("expected failure, got found=%v %v", found, renderVars(got))
	}
	if !cb.OptionalsPresent() {
		t.Error("expected the callback to report a present optional")
	}
	if n := m.metrics.OptionalPresentFailures.Load(); n != 1 {
		t.Errorf("expected 1 optional-present failure, got %d", n)
	}
}

func TestSatisfyBridgedOptionalAbsence(t *testing.T) {
	db := testDB(t)
	ids := seedGraph(t, db, socialGraph)
	mustEdge(t, db, ids["bob"], ids["alice"], "blocks")

	knows := NewClause(V("a"), "knows", V("b"))
	blocks := NewClause(V("b"), "blocks", V("a"))
	pat := mustPattern(t, vars("a", "b"), []*Clause{knows}, []*Clause{blocks})
	if pat.NumComponents() != 1 {
		t.Fatalf("optional should bridge into the mandatory component, got %d components", pat.NumComponents())
	}

	var got []Grounding
	if _, err := NewMatcher(db).Satisfy(context.Background(), pat, collectAll(db, &got)); err != nil {
		t.Fatalf("Satisfy failed: %v", err)
	}
	// alice-knows->bob is dropped: bob blocks alice.
	if diff := cmp.Diff([]string{"$a=2 $b=3"}, renderVars(got)); diff != "" {
		t.Errorf("groundings mismatch (-want +got):\n%s", diff)
	}
}

func TestSatisfyRestoresOverallPattern(t *testing.T) {
	db := testDB(t)
	seedGraph(t, db, socialGraph)

	pat := mustPattern(t, vars("a", "b", "c", "d"), []*Clause{
		NewClause(V("a"), "knows", V("b")),
		NewClause(V("c"), "likes", V("d")),
	}, nil)
	var got []Grounding
	cb := collectAll(db, &got)
	if _, err := NewMatcher(db).Satisfy(context.Background(), pat, cb); err != nil {
		t.Fatalf("Satisfy failed: %v", err)
	}
	if cb.Pattern() != pat {
		t.Error("callback should see the overall pattern before joining")
	}
}

func TestSatisfyTraceEvents(t *testing.T) {
	db := testDB(t)
	seedGraph(t, db, socialGraph)

	pat := mustPattern(t, vars("a", "b", "c", "d"), []*Clause{
		NewClause(V("a"), "knows", V("b")),
		NewClause(V("c"), "likes", V("d")),
	}, nil)

	var kinds []TraceKind
	m := NewMatcher(db, WithTracer(TracerFunc(func(ev TraceEvent) {
		kinds = append(kinds, ev.Kind)
	})))
	cb := NewDefaultCallback(db, db.Logger(), nil)
	found, err := m.Satisfy(context.Background(), pat, cb)
	if err != nil {
		t.Fatalf("Satisfy failed: %v", err)
	}
	if !found {
		t.Fatal("expected the first combination to be accepted")
	}
	want := []TraceKind{
		TraceComponentStart, TraceComponentGrounded,
		TraceComponentStart, TraceComponentGrounded,
		TraceCombinationAccepted,
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestSatisfyCancelledContext(t *testing.T) {
	db := testDB(t)
	seedGraph(t, db, socialGraph)

	pat := mustPattern(t, vars("a", "b"), []*Clause{NewClause(V("a"), "knows", V("b"))}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	found, err := NewMatcher(db).Satisfy(ctx, pat, NewDefaultCallback(db, db.Logger(), nil))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if found {
		t.Error("cancelled search must not report a grounding")
	}
}
