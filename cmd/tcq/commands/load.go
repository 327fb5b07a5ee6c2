package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-trace-query/internal/scanner"
	"github.com/l3aro/go-trace-query/pkg/cache"
	"github.com/l3aro/go-trace-query/pkg/cfg"
	"github.com/l3aro/go-trace-query/pkg/goprog"
	"github.com/l3aro/go-trace-query/pkg/graph"
	"github.com/l3aro/go-trace-query/pkg/graphfile"
	"github.com/l3aro/go-trace-query/pkg/loops"
)

// program is a built graph with its tracepoints and bounded loops, whatever
// frontend produced it.
type program struct {
	kind    scanner.Kind
	graph   *graph.Graph
	labels  graph.Labels
	bounded *loops.Set
	cached  bool
}

func (p *program) document() *graphfile.Document {
	return graphfile.FromGraph(p.graph, p.labels, p.bounded)
}

// inputFlags are the flags shared by every command that builds a program.
type inputFlags struct {
	lang    string
	noCache bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.lang, "lang", "l", "auto", "Input kind: auto, c, go or graph")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "Rebuild C graphs even when cached")
}

// resolve decides the input kind and the concrete inputs for args.
func (f *inputFlags) resolve(args []string) (scanner.Kind, []string, error) {
	lang := strings.ToLower(f.lang)
	if lang == "go" {
		if len(args) == 0 {
			args = []string{"./..."}
		}
		return scanner.Go, args, nil
	}

	kind, inputs, err := scanner.New(scanner.DefaultOptions()).Resolve(args)
	if err != nil {
		return scanner.Unknown, nil, err
	}
	switch lang {
	case "auto":
	case string(scanner.C), string(scanner.Graph):
		if string(kind) != lang {
			return scanner.Unknown, nil, fmt.Errorf("inputs resolve to %s, not %s", kind, lang)
		}
	default:
		return scanner.Unknown, nil, fmt.Errorf("unknown language %q (use auto, c, go or graph)", f.lang)
	}
	if kind == scanner.Graph && len(inputs) != 1 {
		return scanner.Unknown, nil, fmt.Errorf("expected one graph file, got %d", len(inputs))
	}
	return kind, inputs, nil
}

// loadProgram builds the program named by args.
func (a *app) loadProgram(ctx context.Context, args []string, f *inputFlags) (*program, error) {
	kind, inputs, err := f.resolve(args)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("resolved inputs", "kind", kind, "count", len(inputs))

	var p *program
	switch kind {
	case scanner.C:
		p, err = a.loadC(ctx, inputs, !f.noCache && a.cfg.CacheEnabled)
	case scanner.Go:
		p, err = a.loadGo(ctx, inputs)
	case scanner.Graph:
		p, err = loadGraphFile(inputs[0])
	default:
		err = fmt.Errorf("cannot analyze %s inputs", kind)
	}
	if err != nil {
		return nil, err
	}

	a.logger.Info("graph built",
		"kind", p.kind,
		"vertices", p.graph.Len(),
		"edges", p.graph.EdgeCount(),
		"labels", len(p.labels),
		"bounded_loops", p.bounded.Len(),
		"cached", p.cached)
	return p, nil
}

func (a *app) cOptions() cfg.Options {
	return cfg.Options{
		TracepointFunc:   a.cfg.TracepointFunc,
		NoReturnFuncs:    a.cfg.NoReturnFuncs,
		MinTripCount:     a.cfg.MinTripCount,
		MaxCyclesPerLoop: a.cfg.MaxCyclesPerLoop,
		Workers:          a.cfg.Workers,
		Logger:           a.logger,
	}
}

// cacheKey covers every setting that changes the lowering, then each file.
func cacheKey(opts cfg.Options, sources []cfg.Source) string {
	parts := [][]byte{
		[]byte("c"),
		[]byte(opts.TracepointFunc),
		[]byte(strings.Join(opts.NoReturnFuncs, ",")),
		[]byte(strconv.Itoa(opts.MinTripCount)),
		[]byte(strconv.Itoa(opts.MaxCyclesPerLoop)),
	}
	for _, s := range sources {
		parts = append(parts, []byte(s.Path), s.Content)
	}
	return cache.Key(parts...)
}

func (a *app) loadC(ctx context.Context, paths []string, useCache bool) (*program, error) {
	sources := make([]cfg.Source, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", path, err)
		}
		sources[i] = cfg.Source{Path: path, Content: data}
	}

	opts := a.cOptions()
	var store *cache.Store
	var key string
	if useCache {
		store = cache.New(a.cfg.CacheDir)
		key = cacheKey(opts, sources)
		doc, err := store.Get(key)
		switch {
		case err == nil:
			g, labels, bounded, err := doc.Graph()
			if err == nil {
				a.logger.Debug("cache hit", "key", key[:12])
				return &program{kind: scanner.C, graph: g, labels: labels, bounded: bounded, cached: true}, nil
			}
			a.logger.Warn("discarding cached graph", "key", key[:12], "error", err)
		case errors.Is(err, cache.ErrMiss):
			a.logger.Debug("cache miss", "key", key[:12])
		default:
			a.logger.Warn("cache read failed", "error", err)
		}
	}

	prog, err := cfg.BuildSources(ctx, sources, opts)
	if err != nil {
		return nil, err
	}
	p := &program{kind: scanner.C, graph: prog.Graph, labels: prog.Labels, bounded: prog.Bounded}

	if store != nil {
		if err := store.Put(key, p.document()); err != nil {
			a.logger.Warn("cache write failed", "error", err)
		}
	}
	return p, nil
}

func (a *app) loadGo(ctx context.Context, patterns []string) (*program, error) {
	opts := goprog.DefaultOptions()
	opts.TracepointFunc = a.cfg.GoTracepointFunc
	opts.MinTripCount = a.cfg.MinTripCount
	opts.MaxCyclesPerLoop = a.cfg.MaxCyclesPerLoop
	opts.Logger = a.logger

	// A module directory is loaded from inside, so its go.mod is the main module.
	if len(patterns) == 1 {
		if dir, ok := strings.CutSuffix(patterns[0], "/..."); ok && dir != "." {
			if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
				opts.Dir, patterns = dir, []string{"./..."}
			}
		}
	}

	prog, err := goprog.Build(ctx, patterns, opts)
	if err != nil {
		return nil, err
	}
	return &program{kind: scanner.Go, graph: prog.Graph, labels: prog.Labels, bounded: prog.Bounded}, nil
}

func loadGraphFile(path string) (*program, error) {
	doc, err := graphfile.Load(path)
	if err != nil {
		return nil, err
	}
	g, labels, bounded, err := doc.Graph()
	if err != nil {
		return nil, fmt.Errorf("graph file %s: %w", path, err)
	}
	return &program{kind: scanner.Graph, graph: g, labels: labels, bounded: bounded}, nil
}
