package cfg

import (
	"context"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-trace-query/pkg/graph"
	"github.com/l3aro/go-trace-query/pkg/loops"
)

// Source is one C translation unit. When Content is nil it is read from Path.
type Source struct {
	Path    string
	Content []byte
}

// unit is a parsed translation unit.
type unit struct {
	path    string
	content []byte
	tree    *sitter.Tree
	funcs   []*sitter.Node
}

// BuildProgram parses the C files at paths and links them into one program.
func BuildProgram(ctx context.Context, paths []string, opts Options) (*Program, error) {
	sources := make([]Source, len(paths))
	for i, p := range paths {
		sources[i] = Source{Path: p}
	}
	return BuildSources(ctx, sources, opts)
}

// BuildSources parses sources in parallel, then lowers every function
// definition in source order. Functions are visible across all units.
func BuildSources(ctx context.Context, sources []Source, opts Options) (*Program, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	logger := opts.logger()

	units := make([]*unit, len(sources))
	defer func() {
		for _, u := range units {
			if u != nil && u.tree != nil {
				u.tree.Close()
			}
		}
	}()

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			u, err := parseUnit(gctx, src)
			if err != nil {
				return err
			}
			units[i] = u
			logger.Debug("parsed C source", "file", u.path, "functions", len(u.funcs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b := graph.NewBuilder()
	var functions []Function
	var bodies []*sitter.Node
	var owners []*unit

	for _, u := range units {
		for _, fn := range u.funcs {
			name := declaratorName(fn.ChildByFieldName("declarator"), u.content)
			body := fn.ChildByFieldName("body")
			if name == "" || body == nil {
				continue
			}
			if _, dup := b.Lookup(name); dup {
				logger.Warn("duplicate function definition ignored", "function", name, "file", u.path)
				continue
			}
			entry := b.Vertex(name)
			exit := b.Vertex(name + ":exit")
			functions = append(functions, Function{
				Name:  name,
				File:  u.path,
				Line:  int(fn.StartPoint().Row) + 1,
				Entry: entry,
				Exit:  exit,
			})
			bodies = append(bodies, body)
			owners = append(owners, u)
		}
	}

	var regions []loops.Region
	for i, fn := range functions {
		l := newLowerer(b, opts, logger, owners[i].content, fn)
		l.lower(bodies[i])
		regions = append(regions, l.regions...)
	}

	gr, labels, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("building program graph: %w", err)
	}

	limit := opts.MaxCyclesPerLoop
	bounded := loops.CertifyRegions(gr, regions, limit)
	logger.Debug("lowered C program",
		"functions", len(functions),
		"vertices", gr.Len(),
		"labels", len(labels),
		"bounded_cycles", bounded.Len())

	return &Program{
		Graph:     gr,
		Labels:    labels,
		Bounded:   bounded,
		Regions:   regions,
		Functions: functions,
	}, nil
}

func parseUnit(ctx context.Context, src Source) (*unit, error) {
	content := src.Content
	if content == nil {
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", src.Path, err)
		}
		content = data
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(c.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", src.Path, err)
	}

	u := &unit{path: src.Path, content: content, tree: tree}
	u.funcs = findFunctions(tree.RootNode(), nil)
	return u, nil
}

// findFunctions collects function definitions outside function bodies,
// including those nested in preprocessor conditionals.
func findFunctions(node *sitter.Node, out []*sitter.Node) []*sitter.Node {
	if node == nil {
		return out
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "function_definition":
			out = append(out, child)
		case "translation_unit", "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif", "linkage_specification", "declaration_list":
			out = findFunctions(child, out)
		}
	}
	return out
}

// declaratorName digs through pointer and function declarators to the
// declared identifier.
func declaratorName(node *sitter.Node, content []byte) string {
	for node != nil {
		switch node.Type() {
		case "identifier":
			return node.Content(content)
		case "function_declarator", "pointer_declarator", "parenthesized_declarator", "attributed_declarator":
			next := node.ChildByFieldName("declarator")
			if next == nil && node.NamedChildCount() > 0 {
				next = node.NamedChild(0)
			}
			node = next
		default:
			return ""
		}
	}
	return ""
}
