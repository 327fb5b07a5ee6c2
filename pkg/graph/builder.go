package graph

import (
	"fmt"
)

// Builder assembles a Graph. Vertices are numbered on first sight of their
// key, so two frontends feeding the same keys in the same order produce the
// same numbering.
type Builder struct {
	index  map[string]Vertex
	succs  [][]Vertex
	calls  []Vertex
	names  []string
	labels Labels
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		index:  make(map[string]Vertex),
		labels: make(Labels),
	}
}

// Vertex returns the vertex for key, allocating it if the key is new.
func (b *Builder) Vertex(key string) Vertex {
	if v, ok := b.index[key]; ok {
		return v
	}
	v := b.alloc(key)
	b.index[key] = v
	return v
}

// Lookup returns the vertex already allocated for key.
func (b *Builder) Lookup(key string) (Vertex, bool) {
	v, ok := b.index[key]
	return v, ok
}

// AddVertex allocates a vertex without a key.
func (b *Builder) AddVertex() Vertex {
	return b.alloc("")
}

func (b *Builder) alloc(name string) Vertex {
	v := Vertex(len(b.succs))
	b.succs = append(b.succs, nil)
	b.calls = append(b.calls, NoVertex)
	b.names = append(b.names, name)
	return v
}

// SetName replaces the display name of v.
func (b *Builder) SetName(v Vertex, name string) {
	if b.contains(v) {
		b.names[v] = name
	}
}

// AddEdge appends a control edge from -> to. Duplicate edges are kept once.
func (b *Builder) AddEdge(from, to Vertex) {
	if !b.contains(from) {
		return
	}
	for _, s := range b.succs[from] {
		if s == to {
			return
		}
	}
	b.succs[from] = append(b.succs[from], to)
}

// SetCall records the call edge of from. A vertex holds at most one call;
// setting it again replaces the previous target.
func (b *Builder) SetCall(from, to Vertex) {
	if b.contains(from) {
		b.calls[from] = to
	}
}

// AddLabel binds a tracepoint name to v. It reports false, leaving the
// existing binding in place, when the name is already bound.
func (b *Builder) AddLabel(name string, v Vertex) bool {
	if _, exists := b.labels[name]; exists {
		return false
	}
	b.labels[name] = v
	return true
}

// Len returns the number of vertices allocated so far.
func (b *Builder) Len() int {
	return len(b.succs)
}

// Build validates the edges and returns the finished graph and labels.
func (b *Builder) Build() (*Graph, Labels, error) {
	n := Vertex(len(b.succs))
	inRange := func(v Vertex) bool { return v >= 0 && v < n }

	succs := make([][]Vertex, n)
	for v, list := range b.succs {
		for _, to := range list {
			if !inRange(to) {
				return nil, nil, fmt.Errorf("control edge %d -> %d: %w", v, to, ErrVertexOutOfRange)
			}
		}
		succs[v] = append([]Vertex(nil), list...)
	}
	for v, to := range b.calls {
		if to != NoVertex && !inRange(to) {
			return nil, nil, fmt.Errorf("call edge %d -> %d: %w", v, to, ErrVertexOutOfRange)
		}
	}

	labels := make(Labels, len(b.labels))
	for name, v := range b.labels {
		if !inRange(v) {
			return nil, nil, fmt.Errorf("label %q -> %d: %w", name, v, ErrVertexOutOfRange)
		}
		labels[name] = v
	}

	g := &Graph{
		succs: succs,
		calls: append([]Vertex(nil), b.calls...),
		names: append([]string(nil), b.names...),
	}
	return g, labels, nil
}

func (b *Builder) contains(v Vertex) bool {
	return v >= 0 && int(v) < len(b.succs)
}

// FromEdges builds a graph from the provider shape: a vertex count, control
// successors per vertex and optional call targets.
func FromEdges(n int, control map[Vertex][]Vertex, calls map[Vertex]Vertex) (*Graph, error) {
	b := NewBuilder()
	for i := 0; i < n; i++ {
		b.AddVertex()
	}
	for from := Vertex(0); from < Vertex(n); from++ {
		for _, to := range control[from] {
			b.AddEdge(from, to)
		}
	}
	for from, to := range calls {
		if !b.contains(from) || to < 0 {
			return nil, fmt.Errorf("call edge %d -> %d: %w", from, to, ErrVertexOutOfRange)
		}
		b.SetCall(from, to)
	}
	for from := range control {
		if !b.contains(from) {
			return nil, fmt.Errorf("control edges of %d: %w", from, ErrVertexOutOfRange)
		}
	}
	g, _, err := b.Build()
	return g, err
}
