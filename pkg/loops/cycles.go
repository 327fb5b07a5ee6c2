package loops

import (
	"github.com/l3aro/go-trace-query/pkg/graph"
)

// Region is a loop found by a frontend: its header and every vertex of its
// body, nested loops included.
type Region struct {
	Header  graph.Vertex
	Members []graph.Vertex
}

// Cycles enumerates the simple cycles through the region header that stay
// inside the region and follow control edges only. Each cycle starts at the
// header. At most limit cycles are returned; limit <= 0 means no limit.
//
// A trace search closes a loop on whatever path it walked, so a loop with a
// branch in its body is certified as every one of its simple cycles.
func Cycles(g *graph.Graph, r Region, limit int) [][]graph.Vertex {
	inside := make(map[graph.Vertex]bool, len(r.Members)+1)
	for _, v := range r.Members {
		inside[v] = true
	}
	inside[r.Header] = true

	var (
		out    [][]graph.Vertex
		path   = []graph.Vertex{r.Header}
		onPath = map[graph.Vertex]bool{r.Header: true}
	)

	var walk func(v graph.Vertex) bool
	walk = func(v graph.Vertex) bool {
		for _, to := range g.Successors(v) {
			if to == r.Header {
				out = append(out, append([]graph.Vertex(nil), path...))
				if limit > 0 && len(out) >= limit {
					return false
				}
				continue
			}
			if !inside[to] || onPath[to] {
				continue
			}
			onPath[to] = true
			path = append(path, to)
			more := walk(to)
			path = path[:len(path)-1]
			onPath[to] = false
			if !more {
				return false
			}
		}
		return true
	}
	walk(r.Header)

	return out
}

// CertifyRegions enumerates the cycles of every region into a Set.
func CertifyRegions(g *graph.Graph, regions []Region, limit int) *Set {
	s := NewSet(nil)
	for _, r := range regions {
		for _, c := range Cycles(g, r, limit) {
			s.Add(c)
		}
	}
	return s
}
