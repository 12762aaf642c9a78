package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// NodeDef names one node in a graph definition file: an ID to reference it
// by and a Ref naming the factory a Builder resolves it against. Type is
// informational only, useful for tooling that renders the graph.
type NodeDef struct {
	ID   string `json:"id" yaml:"id"`
	Type string `json:"type" yaml:"type"`
	Ref  string `json:"ref" yaml:"ref"`
}

// EdgeDef mirrors Edge, but Condition is a name resolved against a
// Builder's condition table rather than a Go func value.
type EdgeDef struct {
	From      string `json:"from" yaml:"from"`
	To        string `json:"to" yaml:"to"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Definition is the file format for declaring a graph's topology
// externally instead of constructing it with New directly. Node and
// condition implementations still live in Go; the definition only says
// which ones to use and how they're wired together.
type Definition struct {
	ID         string    `json:"id" yaml:"id"`
	EntryPoint string    `json:"entry_point" yaml:"entry_point"`
	Nodes      []NodeDef `json:"nodes" yaml:"nodes"`
	Edges      []EdgeDef `json:"edges" yaml:"edges"`
}

// LoadDefinition reads a Definition from a YAML or JSON file, chosen by
// the path's extension (.yaml/.yml for YAML, anything else as JSON).
func LoadDefinition(path string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph definition: %w", err)
	}

	var def Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("parse graph definition (yaml): %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("parse graph definition (json): %w", err)
		}
	}
	if def.ID == "" {
		return nil, fmt.Errorf("graph definition: id is required")
	}
	if def.EntryPoint == "" {
		return nil, fmt.Errorf("graph definition: entry_point is required")
	}
	return &def, nil
}

// Builder resolves a Definition's node refs and condition names against
// concrete implementations and assembles a Graph with New. Callers
// register every factory and condition the definition files they expect
// to load might reference; Build fails on anything left unresolved.
type Builder struct {
	nodeFactories map[string]func(id string) Node
	conditions    map[string]func(NodeResult) bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		nodeFactories: make(map[string]func(id string) Node),
		conditions:    make(map[string]func(NodeResult) bool),
	}
}

// RegisterNode makes ref resolvable by NodeDef.Ref. factory receives the
// definition's node ID so the returned Node carries it.
func (b *Builder) RegisterNode(ref string, factory func(id string) Node) *Builder {
	b.nodeFactories[ref] = factory
	return b
}

// RegisterCondition makes name resolvable by EdgeDef.Condition.
func (b *Builder) RegisterCondition(name string, cond func(NodeResult) bool) *Builder {
	b.conditions[name] = cond
	return b
}

// Build assembles a Graph from def using the factories and conditions
// registered so far. It returns an error instead of panicking on an
// unresolved ref or condition name; New's own panics still apply to
// structural problems (dangling edges, missing entry point, no terminal).
func (b *Builder) Build(def *Definition) (g *Graph, err error) {
	nodes := make([]Node, 0, len(def.Nodes))
	for _, nd := range def.Nodes {
		factory, ok := b.nodeFactories[nd.Ref]
		if !ok {
			return nil, fmt.Errorf("graph definition %s: no node factory registered for ref %q (node %q)", def.ID, nd.Ref, nd.ID)
		}
		nodes = append(nodes, factory(nd.ID))
	}

	edges := make([]Edge, 0, len(def.Edges))
	for _, ed := range def.Edges {
		edge := Edge{From: ed.From, To: ed.To}
		if ed.Condition != "" {
			cond, ok := b.conditions[ed.Condition]
			if !ok {
				return nil, fmt.Errorf("graph definition %s: no condition registered for %q (edge %s->%s)", def.ID, ed.Condition, ed.From, ed.To)
			}
			edge.Condition = cond
		}
		edges = append(edges, edge)
	}

	defer func() {
		if r := recover(); r != nil {
			g = nil
			err = fmt.Errorf("graph definition %s: %v", def.ID, r)
		}
	}()
	return New(def.ID, def.EntryPoint, nodes, edges), nil
}
