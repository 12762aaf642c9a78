// Package graph implements the graph engine (C8): a validated DAG of nodes
// connected by conditional edges, executed by a GraphRunner through an
// onion of middleware and transformers. It is authored directly from
// a from-scratch DAG runner, since no prior package in this codebase had one,
// but its concurrency idioms (ambient rtcontext.ExecutionContext, Result-typed
// outcomes, strictly serial node execution per run) follow the same patterns used
// throughout this module, and its checkpoint/event plumbing generalizes
// a single job-record lifecycle to a multi-node run.
package graph

import (
	"fmt"

	"github.com/flowctl/orchestrator/resultx"
)

// NodeResult is what a Node.Run call produces on success.
type NodeResult struct {
	Data     any
	Metadata map[string]any
}

// NodeContext is threaded into every Node.Run call. State is owned by a
// single run; graph nodes within that run execute strictly serially, so
// State needs no internal locking: NodeContext.state is owned by a
// single run.
type NodeContext struct {
	GraphID string
	RunID   string
	State   map[string]any
}

// Previous returns state["_previous"], the most recently completed node's
// output, or nil if no node has completed yet (the entry node).
func (nc *NodeContext) Previous() any {
	return nc.State["_previous"]
}

// Node is one unit of work in a Graph.
type Node interface {
	ID() string
	Run(ctx *NodeContext) resultx.Result[NodeResult]
}

// Edge connects two nodes, taken when Condition(result) is true. A nil
// Condition always matches. Edges from the same node are evaluated in
// declared order and the first match wins.
type Edge struct {
	From      string
	To        string
	Condition func(result NodeResult) bool
}

func (e Edge) matches(result NodeResult) bool {
	return e.Condition == nil || e.Condition(result)
}

// Graph is a validated DAG: every edge endpoint exists, EntryPoint exists,
// and at least one node has no outgoing edge (a reachable terminal).
// Validation happens once, at construction, via New.
type Graph struct {
	ID         string
	EntryPoint string
	Middleware []Middleware

	nodes map[string]Node
	edges map[string][]Edge
}

// New constructs and validates a Graph. An invalid graph definition
// (dangling edge, missing entry point, no terminal) is a programmer error
// caught at wiring time, so New panics rather than returning an error:
// fail at construction, not at first use.
func New(id, entryPoint string, nodes []Node, edges []Edge, middleware ...Middleware) *Graph {
	g := &Graph{
		ID:         id,
		EntryPoint: entryPoint,
		Middleware: middleware,
		nodes:      make(map[string]Node, len(nodes)),
		edges:      make(map[string][]Edge),
	}
	for _, n := range nodes {
		g.nodes[n.ID()] = n
	}
	for _, e := range edges {
		g.edges[e.From] = append(g.edges[e.From], e)
	}
	if err := g.validate(); err != nil {
		panic(fmt.Sprintf("graph %q: %s", id, err))
	}
	return g
}

func (g *Graph) validate() error {
	if _, ok := g.nodes[g.EntryPoint]; !ok {
		return fmt.Errorf("entry point %q is not a declared node", g.EntryPoint)
	}
	for from, edges := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("edge source %q is not a declared node", from)
		}
		for _, e := range edges {
			if _, ok := g.nodes[e.To]; !ok {
				return fmt.Errorf("edge %s->%s targets an undeclared node", e.From, e.To)
			}
		}
	}
	hasTerminal := false
	seen := map[string]bool{g.EntryPoint: true}
	queue := []string{g.EntryPoint}
	for len(queue) > 0 && !hasTerminal {
		id := queue[0]
		queue = queue[1:]
		hasTerminal = len(g.edges[id]) == 0
		for _, e := range g.edges[id] {
			if !seen[e.To] {
				seen[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	if !hasTerminal {
		return fmt.Errorf("no reachable terminal node (every node has an outgoing edge)")
	}
	return nil
}

// Node returns the node registered under id, or (nil, false) on miss.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NextEdge returns the first declared edge from nodeID whose condition
// matches result, or (Edge{}, false) if nodeID is terminal or nothing
// matches.
func (g *Graph) NextEdge(nodeID string, result NodeResult) (Edge, bool) {
	for _, e := range g.edges[nodeID] {
		if e.matches(result) {
			return e, true
		}
	}
	return Edge{}, false
}
