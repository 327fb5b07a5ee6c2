// Package graph defines the interprocedural control flow graph the trace
// analyzer runs on. Vertices are dense integers; each vertex has zero or more
// control successors and at most one call edge.
package graph

import (
	"errors"
	"fmt"
)

// Vertex identifies one basic block. Numbering follows insertion order and
// carries no other meaning.
type Vertex int

// NoVertex marks an absent call target.
const NoVertex Vertex = -1

// ErrVertexOutOfRange is returned when an edge or label refers to a vertex the
// graph does not contain.
var ErrVertexOutOfRange = errors.New("vertex out of range")

// Graph is an immutable interprocedural CFG.
type Graph struct {
	succs [][]Vertex
	calls []Vertex
	names []string
}

// Len returns the number of vertices.
func (g *Graph) Len() int {
	return len(g.succs)
}

// Successors returns the control flow successors of v in insertion order.
// The returned slice must not be modified.
func (g *Graph) Successors(v Vertex) []Vertex {
	g.mustContain(v)
	return g.succs[v]
}

// CallTarget returns the entry vertex of the function called from v.
func (g *Graph) CallTarget(v Vertex) (Vertex, bool) {
	g.mustContain(v)
	to := g.calls[v]
	return to, to != NoVertex
}

// Name returns the human readable name the builder attached to v.
func (g *Graph) Name(v Vertex) string {
	g.mustContain(v)
	if g.names[v] == "" {
		return fmt.Sprintf("v%d", v)
	}
	return g.names[v]
}

// Contains reports whether v is a vertex of g.
func (g *Graph) Contains(v Vertex) bool {
	return v >= 0 && int(v) < len(g.succs)
}

// EdgeCount returns the number of control edges plus call edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for v := range g.succs {
		n += len(g.succs[v])
		if g.calls[v] != NoVertex {
			n++
		}
	}
	return n
}

// mustContain panics on a vertex outside the graph. Such a vertex means the
// graph was built wrong, which is not a property of the analyzed program.
func (g *Graph) mustContain(v Vertex) {
	if !g.Contains(v) {
		panic(fmt.Sprintf("graph: vertex %d outside graph of %d vertices", v, len(g.succs)))
	}
}

// Labels maps tracepoint names to the vertex containing the tracepoint call.
type Labels map[string]Vertex

// VertexOf resolves a tracepoint name.
func (l Labels) VertexOf(name string) (Vertex, bool) {
	v, ok := l[name]
	return v, ok
}
