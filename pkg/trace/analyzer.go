package trace

import (
	"fmt"

	"github.com/l3aro/go-trace-query/pkg/graph"
	"github.com/l3aro/go-trace-query/pkg/loops"
)

// stage is the continuation of a suspended vertex on the work stack.
type stage uint8

const (
	stageCall         stage = iota // call edge not looked at yet
	stageCallMerge                 // callee finished, fold it in
	stageControl                   // next control edge is succs[next]
	stageControlMerge              // succs[next] finished, fold it in
)

type frame struct {
	v     graph.Vertex
	stage stage
	next  int
}

// Analyzer runs trace searches over one graph. It holds no per-run state and
// may be reused; every Run allocates its own colors and statuses.
type Analyzer struct {
	g       *graph.Graph
	bounded *loops.Set
}

// NewAnalyzer creates an analyzer. A nil bounded set treats every cycle as
// potentially unbounded.
func NewAnalyzer(g *graph.Graph, bounded *loops.Set) *Analyzer {
	if bounded == nil {
		bounded = loops.NewSet(nil)
	}
	return &Analyzer{g: g, bounded: bounded}
}

// Result holds the frozen per-vertex state of one search.
type Result struct {
	Start  graph.Vertex
	Final  graph.Vertex
	status []Status
	color  []Color
}

// Status returns the status computed for v.
func (r *Result) Status(v graph.Vertex) Status {
	return r.status[v]
}

// Color returns the color v ended with. Vertices the search never reached
// stay White.
func (r *Result) Color(v graph.Vertex) Color {
	return r.color[v]
}

// Visited returns the number of vertices the search finished.
func (r *Result) Visited() int {
	n := 0
	for _, c := range r.color {
		if c == Black {
			n++
		}
	}
	return n
}

// run is the state of a single search.
type run struct {
	g       *graph.Graph
	bounded *loops.Set
	final   graph.Vertex

	status []Status
	color  []Color

	// stack holds the Grey vertices in visitation order; pos[v] is the index
	// of a Grey vertex in it.
	stack  []graph.Vertex
	pos    []int
	frames []frame
}

// Run searches from start. Both vertices must belong to the graph.
//
// The search is a depth-first walk that handles the call edge of a vertex
// before its control edges. Every finished vertex caches a summary of what
// lies below it, so each vertex is explored once.
func (a *Analyzer) Run(start, final graph.Vertex) *Result {
	if !a.g.Contains(start) || !a.g.Contains(final) {
		panic(fmt.Sprintf("trace: start %d or final %d outside graph of %d vertices", start, final, a.g.Len()))
	}

	n := a.g.Len()
	r := &run{
		g:       a.g,
		bounded: a.bounded,
		final:   final,
		status:  make([]Status, n),
		color:   make([]Color, n),
		pos:     make([]int, n),
	}
	r.enter(start)
	r.loop()

	return &Result{Start: start, Final: final, status: r.status, color: r.color}
}

// enter starts exploring v. The final vertex is finished on the spot and its
// edges are never examined.
func (r *run) enter(v graph.Vertex) {
	if v == r.final {
		r.status[v] = Status{ReachedFinal: true}
		r.color[v] = Black
		return
	}

	r.status[v] = Status{AvoidedFinal: len(r.g.Successors(v)) == 0}
	r.color[v] = Grey
	r.pos[v] = len(r.stack)
	r.stack = append(r.stack, v)
	r.frames = append(r.frames, frame{v: v, stage: stageCall})
}

// finish pops v, which must be on top of the stack, and freezes it.
func (r *run) finish(v graph.Vertex) {
	top := len(r.stack) - 1
	if top < 0 || r.stack[top] != v {
		panic(fmt.Sprintf("trace: finishing %d which is not on top of the stack", v))
	}
	r.stack = r.stack[:top]
	r.color[v] = Black
	r.frames = r.frames[:len(r.frames)-1]
}

func (r *run) loop() {
	for len(r.frames) > 0 {
		f := &r.frames[len(r.frames)-1]
		v := f.v

		switch f.stage {
		case stageCall:
			to, ok := r.g.CallTarget(v)
			if !ok {
				f.stage = stageControl
				continue
			}
			switch r.color[to] {
			case White:
				f.stage = stageCallMerge
				r.enter(to)
			case Grey:
				r.closeCycle(to)
				f.stage = stageControl
			case Black:
				f.stage = stageCallMerge
			}

		case stageCallMerge:
			to, _ := r.g.CallTarget(v)
			callee := r.status[to]
			if callee.ReachedFinal {
				// The call is treated as not returning once it leads to the
				// final tracepoint: v's own successors are not explored.
				r.status[v] = callee
				r.finish(v)
				continue
			}
			r.status[v].LoopOnTrace = callee.RealLoop
			r.status[v].RealLoop = callee.RealLoop
			f.stage = stageControl

		case stageControl:
			succs := r.g.Successors(v)
			if f.next >= len(succs) {
				r.finish(v)
				continue
			}
			to := succs[f.next]
			switch r.color[to] {
			case White:
				f.stage = stageControlMerge
				r.enter(to)
			case Grey:
				r.closeCycle(to)
				f.next++
			case Black:
				r.merge(v, to)
				f.next++
			}

		case stageControlMerge:
			r.merge(v, r.g.Successors(v)[f.next])
			f.next++
			f.stage = stageControl
		}
	}
}

// merge folds the frozen status of successor to into v.
func (r *run) merge(v, to graph.Vertex) {
	if r.status[to].ReachedFinal {
		r.status[v].mergeReaching(r.status[to])
	} else {
		r.status[v].mergeAvoiding(r.status[to])
	}
}

// closeCycle handles an edge into the Grey vertex to. The cycle is the stack
// from to up to the top. Unless it is a certified bounded loop, every vertex
// on it is marked as looping.
func (r *run) closeCycle(to graph.Vertex) {
	cycle := r.stack[r.pos[to]:]
	if r.bounded.Contains(cycle) {
		return
	}
	for _, u := range cycle {
		r.status[u].LoopOnTrace = true
		r.status[u].RealLoop = true
	}
}
