package graphground

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

// Configuration faults detected while building a pattern. They are caller
// bugs, never retried.
var (
	// ErrUnboundVariable is returned when a declared variable appears in no
	// mandatory or optional clause once constant clauses are removed.
	ErrUnboundVariable = errors.New("graphground: variable is not bound by any clause")

	// ErrUndeclaredVariable is returned when a clause or predicate names a
	// variable missing from the declaration list.
	ErrUndeclaredVariable = errors.New("graphground: undeclared variable")

	// ErrBadPredicate is returned for virtual clauses that do not compile or
	// reference no variable at all.
	ErrBadPredicate = errors.New("graphground: unsupported virtual clause")
)

// Variable names a placeholder to be grounded to a node.
type Variable string

// Term is one end of a clause: a variable, or a constant node when Var is empty.
type Term struct {
	Var  Variable
	Node NodeID
}

// V returns a variable term.
func V(name string) Term { return Term{Var: Variable(name)} }

// C returns a constant term referring to a stored node.
func C(id NodeID) Term { return Term{Node: id} }

// IsVariable reports whether the term is a variable.
func (t Term) IsVariable() bool { return t.Var != "" }

func (t Term) String() string {
	if t.IsVariable() {
		return "$" + string(t.Var)
	}
	return fmt.Sprintf("#%d", t.Node)
}

// Clause is one structural constraint: an edge From -[Label]-> To.
// An empty Label matches any label.
//
// Clauses are compared by pointer identity; a *Clause is the key of every
// ClauseGrounding, so the same clause must be shared (not copied) between a
// pattern and its components.
type Clause struct {
	From  Term
	Label string
	To    Term
}

// NewClause returns a clause matching edges from -[label]-> to.
func NewClause(from Term, label string, to Term) *Clause {
	return &Clause{From: from, Label: label, To: to}
}

func (c *Clause) String() string {
	label := c.Label
	if label == "" {
		label = "*"
	}
	return fmt.Sprintf("(%s)-[%s]->(%s)", c.From, label, c.To)
}

// terms returns the clause's two ends.
func (c *Clause) terms() [2]Term { return [2]Term{c.From, c.To} }

// Predicate is a virtual clause: an expr-lang boolean expression evaluated
// over already-grounded variables. Each variable is visible in the
// expression as a map of its node's properties plus "_id".
//
//	NewPredicate(`a.age > b.age`)
type Predicate struct {
	Expr    string
	vars    []Variable
	program *vm.Program
}

// NewPredicate compiles a virtual clause and records the identifiers it
// references.
func NewPredicate(expression string) (*Predicate, error) {
	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadPredicate, expression, err)
	}
	refs := &identCollector{seen: make(map[Variable]bool)}
	ast.Walk(&tree.Node, refs)
	if len(refs.vars) == 0 {
		return nil, fmt.Errorf("%w: %q references no variable", ErrBadPredicate, expression)
	}

	program, err := expr.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadPredicate, expression, err)
	}
	return &Predicate{Expr: expression, vars: refs.vars, program: program}, nil
}

// Variables returns the variables the predicate reads, in first-use order.
func (p *Predicate) Variables() []Variable { return p.vars }

func (p *Predicate) String() string { return p.Expr }

// identCollector gathers identifier names from an expression tree.
type identCollector struct {
	seen map[Variable]bool
	vars []Variable
}

func (c *identCollector) Visit(node *ast.Node) {
	ident, ok := (*node).(*ast.IdentifierNode)
	if !ok {
		return
	}
	v := Variable(ident.Value)
	if !c.seen[v] {
		c.seen[v] = true
		c.vars = append(c.vars, v)
	}
}

// Pattern is an immutable description of what to ground: mandatory,
// optional and virtual clauses over a declared variable set. Connected
// components are computed once, by NewPattern.
type Pattern struct {
	vars      []Variable
	varSet    map[Variable]bool
	mandatory []*Clause
	optionals []*Clause
	virtuals  []*Predicate
	constants []*Clause

	// components holds one sub-pattern per connected component; nil for a
	// component sub-pattern itself.
	components []*Pattern
}

// NewPattern validates the clauses against the declared variables,
// removes constant clauses and splits the rest into connected components.
func NewPattern(vars []Variable, mandatory, optionals []*Clause, virtuals []*Predicate) (*Pattern, error) {
	varSet := make(map[Variable]bool, len(vars))
	for _, v := range vars {
		varSet[v] = true
	}

	for _, group := range [][]*Clause{mandatory, optionals} {
		for _, c := range group {
			for _, t := range c.terms() {
				if t.IsVariable() && !varSet[t.Var] {
					return nil, fmt.Errorf("%w: %q in clause %s", ErrUndeclaredVariable, t.Var, c)
				}
			}
		}
	}
	for _, p := range virtuals {
		for _, v := range p.Variables() {
			if !varSet[v] {
				return nil, fmt.Errorf("%w: %q in virtual clause %q", ErrUndeclaredVariable, v, p.Expr)
			}
		}
	}

	kept, constants := RemoveConstants(varSet, mandatory)

	bound := make(map[Variable]bool, len(vars))
	for _, group := range [][]*Clause{kept, optionals} {
		for _, c := range group {
			for _, t := range c.terms() {
				if t.IsVariable() {
					bound[t.Var] = true
				}
			}
		}
	}
	for _, v := range vars {
		if !bound[v] {
			return nil, fmt.Errorf("%w: %q", ErrUnboundVariable, v)
		}
	}

	p := &Pattern{
		vars:      append([]Variable(nil), vars...),
		varSet:    varSet,
		mandatory: kept,
		optionals: append([]*Clause(nil), optionals...),
		virtuals:  append([]*Predicate(nil), virtuals...),
		constants: constants,
	}

	isOptional := make(map[*Clause]bool, len(optionals))
	for _, c := range optionals {
		isOptional[c] = true
	}
	comps, compVars := BridgedComponents(varSet, kept, optionals)
	for i, comp := range comps {
		sub := &Pattern{vars: compVars[i], varSet: make(map[Variable]bool, len(compVars[i]))}
		for _, v := range compVars[i] {
			sub.varSet[v] = true
		}
		for _, c := range comp {
			if isOptional[c] {
				sub.optionals = append(sub.optionals, c)
			} else {
				sub.mandatory = append(sub.mandatory, c)
			}
		}
		p.components = append(p.components, sub)
	}
	return p, nil
}

// Variables returns the declared variables in declaration order.
func (p *Pattern) Variables() []Variable { return p.vars }

// HasVariable reports whether v is declared by the pattern.
func (p *Pattern) HasVariable(v Variable) bool { return p.varSet[v] }

// Mandatory returns the non-constant mandatory clauses.
func (p *Pattern) Mandatory() []*Clause { return p.mandatory }

// Optionals returns the optional clauses.
func (p *Pattern) Optionals() []*Clause { return p.optionals }

// Virtuals returns the virtual clauses.
func (p *Pattern) Virtuals() []*Predicate { return p.virtuals }

// Constants returns the mandatory clauses that contain no variable.
func (p *Pattern) Constants() []*Clause { return p.constants }

// Components returns the connected component sub-patterns.
func (p *Pattern) Components() []*Pattern { return p.components }

// NumComponents returns how many connected components the pattern has.
func (p *Pattern) NumComponents() int { return len(p.components) }

// IsPureOptional reports whether the pattern has optional clauses only.
func (p *Pattern) IsPureOptional() bool {
	return len(p.mandatory) == 0 && len(p.optionals) > 0
}

func (p *Pattern) String() string {
	var b strings.Builder
	vars := make([]string, len(p.vars))
	for i, v := range p.vars {
		vars[i] = "$" + string(v)
	}
	sort.Strings(vars)
	fmt.Fprintf(&b, "vars=[%s]", strings.Join(vars, " "))
	for _, c := range p.mandatory {
		fmt.Fprintf(&b, " %s", c)
	}
	for _, c := range p.optionals {
		fmt.Fprintf(&b, " ?%s", c)
	}
	for _, v := range p.virtuals {
		fmt.Fprintf(&b, " {%s}", v.Expr)
	}
	return b.String()
}
