package loops

import (
	"github.com/l3aro/go-trace-query/pkg/graph"
)

// bucket groups loops that can possibly be rotations of each other: same
// length and same smallest vertex.
type bucket struct {
	length int
	min    graph.Vertex
}

// Set is a collection of bounded loops queried up to rotation.
type Set struct {
	loops   [][]graph.Vertex
	buckets map[bucket][]int
}

// NewSet indexes the given bounded loops. Empty sequences are ignored.
func NewSet(bounded [][]graph.Vertex) *Set {
	s := &Set{buckets: make(map[bucket][]int)}
	for _, loop := range bounded {
		s.Add(loop)
	}
	return s
}

// Add inserts one bounded loop.
func (s *Set) Add(loop []graph.Vertex) {
	if len(loop) == 0 {
		return
	}
	cp := append([]graph.Vertex(nil), loop...)
	key := keyOf(cp)
	s.buckets[key] = append(s.buckets[key], len(s.loops))
	s.loops = append(s.loops, cp)
}

// Contains reports whether cycle is a rotation of some bounded loop.
func (s *Set) Contains(cycle []graph.Vertex) bool {
	if s == nil || len(cycle) == 0 {
		return false
	}
	for _, i := range s.buckets[keyOf(cycle)] {
		if IsRotation(cycle, s.loops[i]) {
			return true
		}
	}
	return false
}

// Len returns the number of loops in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.loops)
}

// Loops returns copies of the stored loops in insertion order.
func (s *Set) Loops() [][]graph.Vertex {
	if s == nil {
		return nil
	}
	out := make([][]graph.Vertex, len(s.loops))
	for i, loop := range s.loops {
		out[i] = append([]graph.Vertex(nil), loop...)
	}
	return out
}

func keyOf(seq []graph.Vertex) bucket {
	lowest := seq[0]
	for _, v := range seq[1:] {
		if v < lowest {
			lowest = v
		}
	}
	return bucket{length: len(seq), min: lowest}
}
