// Package goprog lowers Go packages into the interprocedural trace graph.
// Packages are loaded with go/packages and converted to SSA form; every basic
// block is split so that each call starts a vertex of its own.
package goprog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/l3aro/go-trace-query/internal/log"
	"github.com/l3aro/go-trace-query/pkg/graph"
	"github.com/l3aro/go-trace-query/pkg/loops"
)

// ErrNoPackages is returned when the patterns match no Go packages.
var ErrNoPackages = errors.New("no Go packages")

// Options controls how Go packages are loaded and lowered.
type Options struct {
	// Dir is the directory patterns are resolved in.
	Dir string

	// Tests also loads test packages.
	Tests bool

	// TracepointFunc is matched against a callee's name or its
	// package-qualified name.
	TracepointFunc string

	// NoReturnFuncs are package-qualified functions that never return.
	NoReturnFuncs []string

	MinTripCount     int
	MaxCyclesPerLoop int

	Logger log.Logger
}

// DefaultOptions returns options matching the default configuration.
func DefaultOptions() Options {
	return Options{
		TracepointFunc:   "Tracepoint",
		NoReturnFuncs:    []string{"os.Exit", "log.Fatal", "log.Fatalf", "log.Fatalln", "runtime.Goexit"},
		MinTripCount:     2,
		MaxCyclesPerLoop: 64,
	}
}

func (o Options) logger() log.Logger {
	if o.Logger == nil {
		return log.Nop()
	}
	return o.Logger
}

// Function describes one lowered SSA function.
type Function struct {
	Name  string       `json:"name"`
	Pos   string       `json:"pos"`
	Entry graph.Vertex `json:"entry"`
	Exit  graph.Vertex `json:"exit"`
}

// Program is the result of lowering a set of Go packages.
type Program struct {
	Graph     *graph.Graph
	Labels    graph.Labels
	Bounded   *loops.Set
	Regions   []loops.Region
	Functions []Function
}

// Function returns the lowered function with the given SSA name, such as
// "example.com/m.run" or "example.com/m.main$1".
func (p *Program) Function(name string) (Function, bool) {
	for _, f := range p.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

// Build loads the packages matching patterns and lowers them.
func Build(ctx context.Context, patterns []string, opts Options) (*Program, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    packages.LoadAllSyntax,
		Dir:     opts.Dir,
		Tests:   opts.Tests,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, ErrNoPackages
	}

	var errs []error
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			errs = append(errs, e)
		}
	})
	if len(errs) > 0 {
		return nil, fmt.Errorf("loading packages: %w", errors.Join(errs...))
	}

	return FromPackages(pkgs, opts)
}

// FromPackages lowers already loaded, well-typed packages.
func FromPackages(pkgs []*packages.Package, opts Options) (*Program, error) {
	logger := opts.logger()

	prog, ssaPkgs := ssautil.Packages(pkgs, ssa.InstantiateGenerics)
	prog.Build()

	own := make(map[*ssa.Package]bool)
	for _, p := range ssaPkgs {
		if p != nil {
			own[p] = true
		}
	}
	if len(own) == 0 {
		return nil, ErrNoPackages
	}

	var funcs []*ssa.Function
	for fn := range ssautil.AllFunctions(prog) {
		if fn.Blocks == nil || fn.Synthetic != "" {
			continue
		}
		owner := fn
		if o := fn.Origin(); o != nil {
			owner = o
		}
		if !own[owner.Pkg] {
			continue
		}
		funcs = append(funcs, fn)
	}
	sort.Slice(funcs, func(i, j int) bool {
		return funcs[i].String() < funcs[j].String()
	})

	b := graph.NewBuilder()
	entries := make(map[*ssa.Function]Function, len(funcs))
	functions := make([]Function, 0, len(funcs))
	for _, fn := range funcs {
		entry := b.AddVertex()
		b.SetName(entry, fn.String())
		exit := b.AddVertex()
		b.SetName(exit, fn.String()+":exit")
		f := Function{
			Name:  fn.String(),
			Pos:   prog.Fset.Position(fn.Pos()).String(),
			Entry: entry,
			Exit:  exit,
		}
		entries[fn] = f
		functions = append(functions, f)
	}

	var regions []loops.Region
	for _, fn := range funcs {
		l := &lowerer{b: b, opts: opts, log: logger, fn: fn, self: entries[fn], entries: entries}
		l.lower()
		regions = append(regions, l.regions...)
	}

	g, labels, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("building program graph: %w", err)
	}
	bounded := loops.CertifyRegions(g, regions, opts.MaxCyclesPerLoop)
	logger.Debug("lowered Go program",
		"functions", len(functions),
		"vertices", g.Len(),
		"labels", len(labels),
		"bounded_cycles", bounded.Len())

	return &Program{
		Graph:     g,
		Labels:    labels,
		Bounded:   bounded,
		Regions:   regions,
		Functions: functions,
	}, nil
}
