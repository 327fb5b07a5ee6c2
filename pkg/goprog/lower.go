package goprog

import (
	"fmt"
	"go/constant"

	"golang.org/x/tools/go/ssa"

	"github.com/l3aro/go-trace-query/internal/log"
	"github.com/l3aro/go-trace-query/pkg/graph"
	"github.com/l3aro/go-trace-query/pkg/loops"
)

type lowerer struct {
	b       *graph.Builder
	opts    Options
	log     log.Logger
	fn      *ssa.Function
	self    Function
	entries map[*ssa.Function]Function

	// head and tail are the first and last vertex of each block. tail is
	// NoVertex when the block ends in a call that never returns.
	head    []graph.Vertex
	tail    []graph.Vertex
	members [][]graph.Vertex
	regions []loops.Region
}

func (l *lowerer) lower() {
	blocks := l.fn.Blocks
	l.head = make([]graph.Vertex, len(blocks))
	l.tail = make([]graph.Vertex, len(blocks))
	l.members = make([][]graph.Vertex, len(blocks))

	for _, blk := range blocks {
		l.block(blk)
	}

	l.b.AddEdge(l.self.Entry, l.head[0])
	for _, blk := range blocks {
		from := l.tail[blk.Index]
		if from == graph.NoVertex {
			continue
		}
		switch blk.Instrs[len(blk.Instrs)-1].(type) {
		case *ssa.Return:
			l.b.AddEdge(from, l.self.Exit)
		case *ssa.Panic:
		default:
			for _, succ := range blk.Succs {
				l.b.AddEdge(from, l.head[succ.Index])
			}
		}
	}

	l.boundedLoops()
}

func (l *lowerer) vertex(blk *ssa.BasicBlock, suffix string) graph.Vertex {
	v := l.b.AddVertex()
	name := fmt.Sprintf("%s:b%d", l.fn.String(), blk.Index)
	if suffix != "" {
		name += ":" + suffix
	}
	l.b.SetName(v, name)
	l.members[blk.Index] = append(l.members[blk.Index], v)
	return v
}

// block splits blk into segments at every call.
func (l *lowerer) block(blk *ssa.BasicBlock) {
	cur := l.vertex(blk, blk.Comment)
	l.head[blk.Index] = cur

	for _, instr := range blk.Instrs {
		call, ok := instr.(*ssa.Call)
		if !ok {
			continue
		}
		callee := call.Call.StaticCallee()
		name := "call"
		if callee != nil {
			name = callee.Name()
		}
		v := l.vertex(blk, name)
		if cur != graph.NoVertex {
			l.b.AddEdge(cur, v)
		}
		cur = v

		if callee == nil {
			continue
		}
		switch {
		case l.isTracepoint(callee):
			label, ok := constString(call.Call.Args)
			if !ok {
				l.log.Warn("tracepoint without constant name ignored", "function", l.fn.String())
				break
			}
			if !l.b.AddLabel(label, v) {
				l.log.Warn("duplicate tracepoint, keeping first", "name", label, "function", l.fn.String())
			}
		default:
			if target, ok := l.entries[callee]; ok {
				l.b.SetCall(v, target.Entry)
			}
		}
		if l.noReturn(callee) {
			cur = graph.NoVertex
		}
	}
	l.tail[blk.Index] = cur
}

func (l *lowerer) isTracepoint(fn *ssa.Function) bool {
	name := l.opts.TracepointFunc
	return name != "" && (fn.Name() == name || fn.String() == name)
}

func (l *lowerer) noReturn(fn *ssa.Function) bool {
	for _, name := range l.opts.NoReturnFuncs {
		if fn.String() == name {
			return true
		}
	}
	return false
}

func constString(args []ssa.Value) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	c, ok := args[0].(*ssa.Const)
	if !ok || c.Value == nil || c.Value.Kind() != constant.String {
		return "", false
	}
	return constant.StringVal(c.Value), true
}
