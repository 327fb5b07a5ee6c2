// Package graphfile reads and writes program graphs as YAML or JSON
// documents, so graphs can be built by other tools or inspected by hand.
package graphfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-trace-query/pkg/graph"
	"github.com/l3aro/go-trace-query/pkg/loops"
)

var (
	// ErrUnsupportedFormat is returned for unknown file extensions or format names.
	ErrUnsupportedFormat = errors.New("unsupported graph format")

	// ErrInvalidDocument is returned when vertex ids are not 0..n-1 in order.
	ErrInvalidDocument = errors.New("invalid graph document")
)

// Format names a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// VertexDoc is one vertex with its outgoing edges.
type VertexDoc struct {
	ID    int    `yaml:"id" json:"id" msgpack:"id"`
	Name  string `yaml:"name,omitempty" json:"name,omitempty" msgpack:"name,omitempty"`
	Succs []int  `yaml:"succs,omitempty" json:"succs,omitempty" msgpack:"succs,omitempty"`
	Call  *int   `yaml:"call,omitempty" json:"call,omitempty" msgpack:"call,omitempty"`
}

// Document is the serialized form of a program graph.
type Document struct {
	Vertices     []VertexDoc    `yaml:"vertices" json:"vertices" msgpack:"vertices"`
	Labels       map[string]int `yaml:"labels" json:"labels" msgpack:"labels"`
	BoundedLoops [][]int        `yaml:"bounded_loops,omitempty" json:"bounded_loops,omitempty" msgpack:"bounded_loops,omitempty"`
}

// FromGraph captures g, its labels and its bounded loops.
func FromGraph(g *graph.Graph, labels graph.Labels, bounded *loops.Set) *Document {
	doc := &Document{
		Vertices: make([]VertexDoc, g.Len()),
		Labels:   make(map[string]int, len(labels)),
	}
	for i := range doc.Vertices {
		v := graph.Vertex(i)
		vd := VertexDoc{ID: i}
		if name := g.Name(v); name != fmt.Sprintf("v%d", i) {
			vd.Name = name
		}
		for _, s := range g.Successors(v) {
			vd.Succs = append(vd.Succs, int(s))
		}
		if to, ok := g.CallTarget(v); ok {
			target := int(to)
			vd.Call = &target
		}
		doc.Vertices[i] = vd
	}
	for name, v := range labels {
		doc.Labels[name] = int(v)
	}
	for _, loop := range bounded.Loops() {
		ids := make([]int, len(loop))
		for i, v := range loop {
			ids[i] = int(v)
		}
		doc.BoundedLoops = append(doc.BoundedLoops, ids)
	}
	return doc
}

// Graph rebuilds the graph, labels and bounded loop set.
func (d *Document) Graph() (*graph.Graph, graph.Labels, *loops.Set, error) {
	b := graph.NewBuilder()
	for i, vd := range d.Vertices {
		if vd.ID != i {
			return nil, nil, nil, fmt.Errorf("%w: vertex %d has id %d", ErrInvalidDocument, i, vd.ID)
		}
		v := b.AddVertex()
		b.SetName(v, vd.Name)
	}
	for _, vd := range d.Vertices {
		from := graph.Vertex(vd.ID)
		for _, s := range vd.Succs {
			b.AddEdge(from, graph.Vertex(s))
		}
		if vd.Call != nil {
			if *vd.Call < 0 {
				return nil, nil, nil, fmt.Errorf("%w: vertex %d calls %d", ErrInvalidDocument, vd.ID, *vd.Call)
			}
			b.SetCall(from, graph.Vertex(*vd.Call))
		}
	}

	names := make([]string, 0, len(d.Labels))
	for name := range d.Labels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.AddLabel(name, graph.Vertex(d.Labels[name]))
	}

	g, labels, err := b.Build()
	if err != nil {
		return nil, nil, nil, err
	}

	bounded := make([][]graph.Vertex, 0, len(d.BoundedLoops))
	for _, ids := range d.BoundedLoops {
		loop := make([]graph.Vertex, len(ids))
		for i, id := range ids {
			if !g.Contains(graph.Vertex(id)) {
				return nil, nil, nil, fmt.Errorf("bounded loop vertex %d: %w", id, graph.ErrVertexOutOfRange)
			}
			loop[i] = graph.Vertex(id)
		}
		bounded = append(bounded, loop)
	}
	return g, labels, loops.NewSet(bounded), nil
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// ParseFormat validates a format name given on the command line.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// Marshal encodes doc in the given format.
func Marshal(doc *Document, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Unmarshal decodes data in the given format.
func Unmarshal(data []byte, format Format) (*Document, error) {
	doc := &Document{}
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, doc)
	case FormatJSON:
		err = json.Unmarshal(data, doc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s graph: %w", format, err)
	}
	return doc, nil
}

// Load reads a document, choosing the format by extension.
func Load(path string) (*Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph file %s: %w", path, err)
	}
	return Unmarshal(data, format)
}

// Save writes doc to path, choosing the format by extension.
func Save(path string, doc *Document) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Marshal(doc, format)
	if err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing graph file %s: %w", path, err)
	}
	return nil
}
