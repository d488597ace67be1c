package index

import "github.com/rat-data/colstore/internal/value"

// Observer is the interface every pipeline stage implements (spec
// §4.7.1: producers call on_next/on_completion/on_error on attached
// observers).
type Observer interface {
	OnNext(row value.Row) error
	OnCompletion()
	OnError(err error)
}

// NodeID identifies an operator within a Graph's arena.
type NodeID int

// Graph is the slice-backed arena prescribed by spec §9: operators are
// owned by the arena and referenced by integer id; edges are lists of
// child ids, traversed by id rather than by pointer to avoid cycles and
// simplify ownership.
type Graph struct {
	nodes    []Observer
	children [][]NodeID
}

// NewGraph creates an empty arena.
func NewGraph() *Graph {
	return &Graph{}
}

// Add registers o in the arena and returns its id.
func (g *Graph) Add(o Observer) NodeID {
	g.nodes = append(g.nodes, o)
	g.children = append(g.children, nil)
	return NodeID(len(g.nodes) - 1)
}

// Connect adds a directed edge from parent to child: parent's emit
// calls reach child.
func (g *Graph) Connect(parent, child NodeID) {
	g.children[parent] = append(g.children[parent], child)
}

// Node returns the operator registered at id.
func (g *Graph) Node(id NodeID) Observer {
	return g.nodes[id]
}

// EmitNext forwards row to every direct child of id, stopping at the
// first error (spec §4.7.1: "errors propagate through on_error").
func (g *Graph) EmitNext(id NodeID, row value.Row) error {
	for _, c := range g.children[id] {
		if err := g.nodes[c].OnNext(row); err != nil {
			return err
		}
	}
	return nil
}

// EmitCompletion forwards completion to every direct child of id.
func (g *Graph) EmitCompletion(id NodeID) {
	for _, c := range g.children[id] {
		g.nodes[c].OnCompletion()
	}
}

// EmitError forwards err to every direct child of id.
func (g *Graph) EmitError(id NodeID, err error) {
	for _, c := range g.children[id] {
		g.nodes[c].OnError(err)
	}
}
