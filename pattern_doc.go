package graphground

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PatternDoc is the document form of a pattern:
//
//	variables: [a, b, c]
//	clauses:
//	  - {from: $a, label: knows, to: $b}
//	optional:
//	  - {from: $b, label: blocked, to: $a}
//	virtual:
//	  - "a.age < c.age"
//
// A term starting with "$" is a variable; any other term is a constant
// node ID. When variables is empty it is inferred from the clauses in
// first-use order.
type PatternDoc struct {
	Variables []string    `yaml:"variables" json:"variables,omitempty"`
	Clauses   []ClauseDoc `yaml:"clauses" json:"clauses"`
	Optional  []ClauseDoc `yaml:"optional" json:"optional,omitempty"`
	Virtual   []string    `yaml:"virtual" json:"virtual,omitempty"`
}

// ClauseDoc is one edge pattern in a PatternDoc.
type ClauseDoc struct {
	From  string `yaml:"from" json:"from"`
	Label string `yaml:"label" json:"label,omitempty"`
	To    string `yaml:"to" json:"to"`
}

// ParsePatternDoc decodes a YAML (or JSON) pattern document.
func ParsePatternDoc(data []byte) (*PatternDoc, error) {
	var doc PatternDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("graphground: parse pattern: %w", err)
	}
	return &doc, nil
}

// LoadPatternFile reads and builds the pattern stored at path.
func LoadPatternFile(path string) (*Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := ParsePatternDoc(data)
	if err != nil {
		return nil, err
	}
	return doc.Build()
}

// Build converts the document into a validated Pattern.
func (d *PatternDoc) Build() (*Pattern, error) {
	var inferred []Variable
	seen := make(map[Variable]bool)
	convert := func(docs []ClauseDoc) ([]*Clause, error) {
		out := make([]*Clause, 0, len(docs))
		for i, cd := range docs {
			from, err := parseTerm(cd.From)
			if err != nil {
				return nil, fmt.Errorf("clause %d: from: %w", i, err)
			}
			to, err := parseTerm(cd.To)
			if err != nil {
				return nil, fmt.Errorf("clause %d: to: %w", i, err)
			}
			for _, t := range [2]Term{from, to} {
				if t.IsVariable() && !seen[t.Var] {
					seen[t.Var] = true
					inferred = append(inferred, t.Var)
				}
			}
			out = append(out, NewClause(from, cd.Label, to))
		}
		return out, nil
	}

	mandatory, err := convert(d.Clauses)
	if err != nil {
		return nil, fmt.Errorf("graphground: pattern: %w", err)
	}
	optionals, err := convert(d.Optional)
	if err != nil {
		return nil, fmt.Errorf("graphground: pattern: optional %w", err)
	}

	virtuals := make([]*Predicate, 0, len(d.Virtual))
	for _, src := range d.Virtual {
		p, err := NewPredicate(src)
		if err != nil {
			return nil, err
		}
		virtuals = append(virtuals, p)
	}

	vars := inferred
	if len(d.Variables) > 0 {
		vars = make([]Variable, len(d.Variables))
		for i, name := range d.Variables {
			vars[i] = Variable(strings.TrimPrefix(name, "$"))
		}
	}
	return NewPattern(vars, mandatory, optionals, virtuals)
}

func parseTerm(s string) (Term, error) {
	s = strings.TrimSpace(s)
	if name, ok := strings.CutPrefix(s, "$"); ok {
		if name == "" {
			return Term{}, fmt.Errorf("empty variable name")
		}
		return V(name), nil
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Term{}, fmt.Errorf("term %q is neither $variable nor node ID", s)
	}
	return C(NodeID(id)), nil
}

// GraphDoc is the document form of a graph, used to seed a database:
//
//	nodes:
//	  - {key: alice, props: {name: Alice, age: 30}}
//	edges:
//	  - {from: alice, to: bob, label: knows}
//
// Edge ends refer to node keys; keys are not stored.
type GraphDoc struct {
	Nodes []NodeDoc `yaml:"nodes" json:"nodes"`
	Edges []EdgeDoc `yaml:"edges" json:"edges"`
}

// NodeDoc is one node of a GraphDoc.
type NodeDoc struct {
	Key   string         `yaml:"key" json:"key"`
	Props map[string]any `yaml:"props" json:"props,omitempty"`
}

// EdgeDoc is one edge of a GraphDoc.
type EdgeDoc struct {
	From  string         `yaml:"from" json:"from"`
	To    string         `yaml:"to" json:"to"`
	Label string         `yaml:"label" json:"label"`
	Props map[string]any `yaml:"props" json:"props,omitempty"`
}

// ParseGraphDoc decodes a YAML (or JSON) graph document.
func ParseGraphDoc(data []byte) (*GraphDoc, error) {
	var doc GraphDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("graphground: parse graph: %w", err)
	}
	return &doc, nil
}

// LoadGraphDoc stores the document's nodes and edges and returns the IDs
// assigned to each node key.
func (db *DB) LoadGraphDoc(doc *GraphDoc) (map[string]NodeID, error) {
	propsList := make([]Props, len(doc.Nodes))
	seen := make(map[string]bool, len(doc.Nodes))
	for i, n := range doc.Nodes {
		if n.Key == "" {
			return nil, fmt.Errorf("graphground: node %d has no key", i)
		}
		if seen[n.Key] {
			return nil, fmt.Errorf("graphground: duplicate node key %q", n.Key)
		}
		seen[n.Key] = true
		propsList[i] = Props(n.Props)
	}

	ids, err := db.AddNodeBatch(propsList)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]NodeID, len(ids))
	for i, n := range doc.Nodes {
		keys[n.Key] = ids[i]
	}

	for i, e := range doc.Edges {
		from, ok := keys[e.From]
		if !ok {
			return keys, fmt.Errorf("graphground: edge %d: unknown node key %q", i, e.From)
		}
		to, ok := keys[e.To]
		if !ok {
			return keys, fmt.Errorf("graphground: edge %d: unknown node key %q", i, e.To)
		}
		if _, err := db.AddEdge(from, to, e.Label, Props(e.Props)); err != nil {
			return keys, err
		}
	}
	db.log.Info("graph document loaded", "nodes", len(doc.Nodes), "edges", len(doc.Edges))
	return keys, nil
}
