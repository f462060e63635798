package graphground

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func varSet(names ...string) map[Variable]bool {
	m := make(map[Variable]bool, len(names))
	for _, n := range names {
		m[Variable(n)] = true
	}
	return m
}

func vars(names ...string) []Variable {
	out := make([]Variable, len(names))
	for i, n := range names {
		out[i] = Variable(n)
	}
	return out
}

func TestIsConstant(t *testing.T) {
	declared := varSet("a", "b")
	tests := []struct {
		name   string
		clause *Clause
		want   bool
	}{
		{"both constants", NewClause(C(1), "knows", C(2)), true},
		{"declared variable", NewClause(V("a"), "knows", C(2)), false},
		{"undeclared variable only", NewClause(V("z"), "knows", C(2)), true},
		{"two variables", NewClause(V("a"), "knows", V("b")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConstant(declared, tt.clause); got != tt.want {
				t.Errorf("IsConstant(%s) = %v, want %v", tt.clause, got, tt.want)
			}
		})
	}
}

func TestConnectedComponentsPartition(t *testing.T) {
	declared := varSet("a", "b", "c", "d", "e")
	ab := NewClause(V("a"), "knows", V("b"))
	de := NewClause(V("d"), "knows", V("e"))
	bc := NewClause(V("b"), "likes", V("c"))
	c1 := NewClause(V("c"), "in", C(1))
	k := NewClause(C(1), "in", C(2))
	clauses := []*Clause{ab, de, bc, k, c1}

	kept, constants := RemoveConstants(declared, clauses)
	if diff := cmp.Diff([]*Clause{k}, constants); diff != "" {
		t.Errorf("constants mismatch (-want +got):\n%s", diff)
	}

	comps, compVars := ConnectedComponents(declared, kept)
	wantComps := [][]*Clause{{ab, bc, c1}, {de}}
	if diff := cmp.Diff(wantComps, comps); diff != "" {
		t.Errorf("components mismatch (-want +got):\n%s", diff)
	}
	wantVars := [][]Variable{vars("a", "b", "c"), vars("d", "e")}
	if diff := cmp.Diff(wantVars, compVars); diff != "" {
		t.Errorf("component variables mismatch (-want +got):\n%s", diff)
	}

	// Partition: every kept clause in exactly one component.
	count := make(map[*Clause]int)
	for _, comp := range comps {
		for _, c := range comp {
			count[c]++
		}
	}
	if len(count) != len(kept) {
		t.Errorf("components cover %d clauses, want %d", len(count), len(kept))
	}
	for c, n := range count {
		if n != 1 {
			t.Errorf("clause %s appears in %d components", c, n)
		}
		if IsConstant(declared, c) {
			t.Errorf("constant clause %s inside a component", c)
		}
	}
}

func TestConnectedComponentsTransitive(t *testing.T) {
	declared := varSet("a", "b", "c", "d")
	// a-b and c-d are only joined by the last clause.
	ab := NewClause(V("a"), "", V("b"))
	cd := NewClause(V("c"), "", V("d"))
	bc := NewClause(V("b"), "", V("c"))

	comps, _ := ConnectedComponents(declared, []*Clause{ab, cd, bc})
	if len(comps) != 1 {
		t.Fatalf("expected 1 component, got %d", len(comps))
	}
	if diff := cmp.Diff([]*Clause{ab, cd, bc}, comps[0]); diff != "" {
		t.Errorf("clause order not preserved (-want +got):\n%s", diff)
	}
}

func TestBridgedComponents(t *testing.T) {
	declared := varSet("a", "b", "x", "y")
	ab := NewClause(V("a"), "knows", V("b"))
	optB := NewClause(V("b"), "blocked", V("a"))
	optXY := NewClause(V("x"), "spam", V("y"))

	comps, compVars := BridgedComponents(declared, []*Clause{ab}, []*Clause{optB, optXY})
	want := [][]*Clause{{ab, optB}, {optXY}}
	if diff := cmp.Diff(want, comps); diff != "" {
		t.Errorf("bridged components mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]Variable{vars("a", "b"), vars("x", "y")}, compVars); diff != "" {
		t.Errorf("component variables mismatch (-want +got):\n%s", diff)
	}
}

func TestNewPatternComponents(t *testing.T) {
	ab := NewClause(V("a"), "knows", V("b"))
	cd := NewClause(V("c"), "knows", V("d"))
	opt := NewClause(V("b"), "blocked", V("a"))
	lone := NewClause(V("x"), "spam", C(7))
	k := NewClause(C(1), "knows", C(2))

	pat, err := NewPattern(vars("a", "b", "c", "d", "x"), []*Clause{ab, k, cd}, []*Clause{opt, lone}, nil)
	if err != nil {
		t.Fatalf("NewPattern failed: %v", err)
	}
	if diff := cmp.Diff([]*Clause{k}, pat.Constants()); diff != "" {
		t.Errorf("constants mismatch (-want +got):\n%s", diff)
	}
	if pat.NumComponents() != 3 {
		t.Fatalf("expected 3 components, got %d", pat.NumComponents())
	}

	comps := pat.Components()
	if diff := cmp.Diff([]*Clause{ab}, comps[0].Mandatory()); diff != "" {
		t.Errorf("component 0 mandatory (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]*Clause{opt}, comps[0].Optionals()); diff != "" {
		t.Errorf("component 0 optionals (-want +got):\n%s", diff)
	}
	if comps[0].IsPureOptional() || comps[1].IsPureOptional() {
		t.Error("mandatory components reported as pure-optional")
	}
	if !comps[2].IsPureOptional() {
		t.Error("expected the x component to be pure-optional")
	}
	for i, comp := range comps {
		if comp.NumComponents() != 0 {
			t.Errorf("component %d has nested components", i)
		}
	}
}

func TestNewPatternErrors(t *testing.T) {
	ab := NewClause(V("a"), "knows", V("b"))

	t.Run("unbound after constant removal", func(t *testing.T) {
		_, err := NewPattern(vars("a", "b", "c"), []*Clause{ab}, nil, nil)
		if !errors.Is(err, ErrUnboundVariable) {
			t.Errorf("expected ErrUnboundVariable, got %v", err)
		}
	})
	t.Run("undeclared in clause", func(t *testing.T) {
		_, err := NewPattern(vars("a"), []*Clause{ab}, nil, nil)
		if !errors.Is(err, ErrUndeclaredVariable) {
			t.Errorf("expected ErrUndeclaredVariable, got %v", err)
		}
	})
	t.Run("undeclared in virtual", func(t *testing.T) {
		p, err := NewPredicate("a.age > z.age")
		if err != nil {
			t.Fatalf("NewPredicate failed: %v", err)
		}
		_, err = NewPattern(vars("a", "b"), []*Clause{ab}, nil, []*Predicate{p})
		if !errors.Is(err, ErrUndeclaredVariable) {
			t.Errorf("expected ErrUndeclaredVariable, got %v", err)
		}
	})
	t.Run("predicate without variables", func(t *testing.T) {
		if _, err := NewPredicate("1 < 2"); !errors.Is(err, ErrBadPredicate) {
			t.Errorf("expected ErrBadPredicate, got %v", err)
		}
	})
	t.Run("predicate syntax", func(t *testing.T) {
		if _, err := NewPredicate("a.age >"); !errors.Is(err, ErrBadPredicate) {
			t.Errorf("expected ErrBadPredicate, got %v", err)
		}
	})
}

func TestPredicateVariables(t *testing.T) {
	p, err := NewPredicate(`a.age > b.age && a.name != "x" && a._id < c._id`)
	if err != nil {
		t.Fatalf("NewPredicate failed: %v", err)
	}
	if diff := cmp.Diff(vars("a", "b", "c"), p.Variables()); diff != "" {
		t.Errorf("predicate variables (-want +got):\n%s", diff)
	}
}
