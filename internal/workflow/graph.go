package workflow

import (
	"fmt"
)

// NodeFn is one node body in a Graph: it receives the Scheduler and the
// accumulated state, and returns the state to hand to its successors.
type NodeFn func(ctx *Context, state any) (any, error)

// Predicate evaluates a node's output state to decide whether its
// conditional edge should be followed (spec §9 graph() design note;
// grounded on dshills-langgraph-go's Edge.When).
type Predicate func(state any) bool

type edge struct {
	to   string
	when Predicate // nil means unconditional
}

// Graph is the adjacency-map DAG runner named in spec §9's design note for
// graph(name).add_node(...).add_edge(...).set_entry_point(...)
// .finish_point(...): rather than building a generic graph-description
// data structure interpreted by a separate executor, it is realized here
// as an ordinary adjacency map driven by a plain loop, each node itself
// an engine Task so its execution is recorded and replay-safe like any
// other task invocation.
type Graph struct {
	name   string
	nodes  map[string]NodeFn
	edges  map[string][]edge
	entry  string
	finish string
}

// NewGraph starts an empty, named graph.
func NewGraph(name string) *Graph {
	return &Graph{name: name, nodes: make(map[string]NodeFn), edges: make(map[string][]edge)}
}

// AddNode registers a node under name.
func (g *Graph) AddNode(name string, fn NodeFn) *Graph {
	g.nodes[name] = fn
	return g
}

// AddEdge records an unconditional directed edge from -> to.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.edges[from] = append(g.edges[from], edge{to: to})
	return g
}

// AddConditionalEdge records a directed edge from -> to that Run only
// follows when when(state) is true, evaluated against from's own output.
// Edges registered for a node (conditional and unconditional alike) are
// tried in registration order and the first whose predicate matches (or
// that has no predicate at all) wins, matching dshills-langgraph-go's
// evaluateEdges priority-order semantics.
func (g *Graph) AddConditionalEdge(from, to string, when Predicate) *Graph {
	g.edges[from] = append(g.edges[from], edge{to: to, when: when})
	return g
}

// SetEntryPoint names the node execution starts at.
func (g *Graph) SetEntryPoint(name string) *Graph {
	g.entry = name
	return g
}

// FinishPoint names the node whose output is the graph's own output.
func (g *Graph) FinishPoint(name string) *Graph {
	g.finish = name
	return g
}

// Run drives the graph from its entry point to its finish point. At each
// node it follows the first outgoing edge whose predicate matches the
// node's own output (an edge with no predicate always matches), so a
// conditional edge added via AddConditionalEdge can route state-dependent
// branches (spec §9's "conditional edges evaluated against node output").
func (g *Graph) Run(ctx *Context, input any) (any, error) {
	if g.entry == "" {
		return nil, fmt.Errorf("graph %q: no entry point set", g.name)
	}
	current := g.entry
	state := input
	for {
		fn, ok := g.nodes[current]
		if !ok {
			return nil, fmt.Errorf("graph %q: unknown node %q", g.name, current)
		}
		task := NewTask(g.name+"."+current, func(tc *TaskContext, args ...any) (any, error) {
			return fn(ctx, args[0])
		})
		out, err := ctx.InvokeTask(task, state)
		if err != nil {
			return nil, err
		}
		state = out
		if current == g.finish {
			return state, nil
		}
		next, ok := g.nextNode(current, state)
		if !ok {
			return state, nil
		}
		current = next
	}
}

// nextNode picks the first outgoing edge of from whose predicate matches
// state (or that has no predicate), in registration order.
func (g *Graph) nextNode(from string, state any) (string, bool) {
	for _, e := range g.edges[from] {
		if e.when == nil || e.when(state) {
			return e.to, true
		}
	}
	return "", false
}
