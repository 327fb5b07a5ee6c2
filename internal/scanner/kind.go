package scanner

import (
	"path/filepath"
	"strings"
)

// Kind is the frontend a file belongs to.
type Kind string

const (
	Unknown Kind = ""
	C       Kind = "c"
	Header  Kind = "header"
	Go      Kind = "go"
	Graph   Kind = "graph"
)

var kinds = map[string]Kind{
	".c":    C,
	".h":    Header,
	".go":   Go,
	".yaml": Graph,
	".yml":  Graph,
	".json": Graph,
}

// KindOf classifies a path by extension.
func KindOf(path string) Kind {
	return kinds[strings.ToLower(filepath.Ext(path))]
}

func (k Kind) String() string {
	if k == Unknown {
		return "unknown"
	}
	return string(k)
}
