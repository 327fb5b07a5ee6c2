// Package cfg lowers C translation units into the interprocedural graph used
// by the trace analyzer. Every function becomes a set of segments, each
// beginning with at most one call, joined by control edges; calls to functions
// defined in the program add call edges to the callee's entry vertex.
package cfg

import (
	"errors"

	"github.com/l3aro/go-trace-query/internal/log"
	"github.com/l3aro/go-trace-query/pkg/graph"
	"github.com/l3aro/go-trace-query/pkg/loops"
)

// ErrNoSources is returned when BuildProgram is given no C files.
var ErrNoSources = errors.New("no C sources")

// Options controls how C sources are lowered.
type Options struct {
	// TracepointFunc names the function whose string literal argument
	// defines a tracepoint label.
	TracepointFunc string

	// NoReturnFuncs never return to their caller.
	NoReturnFuncs []string

	// MinTripCount is the smallest constant trip count certified as bounded.
	MinTripCount int

	// MaxCyclesPerLoop caps the cycles enumerated for one bounded loop.
	MaxCyclesPerLoop int

	// Workers bounds parallel parsing. Zero means one.
	Workers int

	Logger log.Logger
}

// DefaultOptions returns options matching the default configuration.
func DefaultOptions() Options {
	return Options{
		TracepointFunc:   "besc_tracepoint",
		NoReturnFuncs:    []string{"exit", "abort", "_exit", "__assert_fail"},
		MinTripCount:     2,
		MaxCyclesPerLoop: 64,
		Workers:          4,
	}
}

func (o Options) logger() log.Logger {
	if o.Logger == nil {
		return log.Nop()
	}
	return o.Logger
}

func (o Options) noReturn(name string) bool {
	for _, f := range o.NoReturnFuncs {
		if f == name {
			return true
		}
	}
	return false
}

// Function describes one lowered function definition.
type Function struct {
	Name  string       `json:"name"`
	File  string       `json:"file"`
	Line  int          `json:"line"`
	Entry graph.Vertex `json:"entry"`
	Exit  graph.Vertex `json:"exit"`
}

// Program is the result of lowering a set of C files.
type Program struct {
	Graph     *graph.Graph
	Labels    graph.Labels
	Bounded   *loops.Set
	Regions   []loops.Region
	Functions []Function
}

// Function returns the lowered function with the given name.
func (p *Program) Function(name string) (Function, bool) {
	for _, f := range p.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}
