package goprog

import (
	"go/build"
	"go/constant"
	"go/token"
	"go/types"
	"sort"

	"golang.org/x/tools/go/ssa"

	"github.com/l3aro/go-trace-query/pkg/graph"
	"github.com/l3aro/go-trace-query/pkg/loops"
)

// natural is a natural loop: a header and the blocks that reach one of its
// back edges without passing through the header.
type natural struct {
	header *ssa.BasicBlock
	body   map[*ssa.BasicBlock]bool
}

// naturalLoops finds the loops of fn from its back edges, where the target
// of an edge dominates its source. Loops sharing a header are merged.
func naturalLoops(fn *ssa.Function) []*natural {
	byHeader := make(map[*ssa.BasicBlock]*natural)
	var order []*natural
	for _, blk := range fn.Blocks {
		for _, succ := range blk.Succs {
			if !succ.Dominates(blk) {
				continue
			}
			n, ok := byHeader[succ]
			if !ok {
				n = &natural{header: succ, body: map[*ssa.BasicBlock]bool{succ: true}}
				byHeader[succ] = n
				order = append(order, n)
			}
			stack := []*ssa.BasicBlock{blk}
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if n.body[top] {
					continue
				}
				n.body[top] = true
				stack = append(stack, top.Preds...)
			}
		}
	}
	// Inner loops first, so nesting is decided before the enclosing loop.
	sort.SliceStable(order, func(i, j int) bool {
		return len(order[i].body) < len(order[j].body)
	})
	return order
}

// boundedLoops certifies the loops of the function that run a constant
// number of times. A loop containing an uncertified loop is never certified.
func (l *lowerer) boundedLoops() {
	all := naturalLoops(l.fn)
	certified := make(map[*ssa.BasicBlock]bool)

	for _, n := range all {
		ok := true
		for _, inner := range all {
			if inner != n && n.body[inner.header] && !certified[inner.header] {
				ok = false
				break
			}
		}
		if ok {
			trips, counted := tripCount(n)
			ok = counted && loops.Certified(trips, l.opts.MinTripCount)
		}
		if !ok {
			continue
		}
		certified[n.header] = true

		var members []graph.Vertex
		for _, blk := range l.fn.Blocks {
			if n.body[blk] {
				members = append(members, l.members[blk.Index]...)
			}
		}
		l.regions = append(l.regions, loops.Region{Header: l.head[n.header.Index], Members: members})
	}
}

var tokenOps = map[token.Token]string{
	token.LSS: "<",
	token.LEQ: "<=",
	token.GTR: ">",
	token.GEQ: ">=",
	token.NEQ: "!=",
	token.EQL: "==",
}

var negated = map[string]string{"<": ">=", "<=": ">", ">": "<=", ">=": "<", "!=": "==", "==": "!="}

var swapped = map[string]string{"<": ">", "<=": ">=", ">": "<", ">=": "<=", "!=": "!=", "==": "=="}

// tripCount recognizes a header ending in `if phi op k` where phi starts at
// a constant and every back edge feeds `phi + step`. The loop may only be
// left from the header.
func tripCount(n *natural) (int64, bool) {
	h := n.header
	for blk := range n.body {
		for _, succ := range blk.Succs {
			if !n.body[succ] && blk != h {
				return 0, false
			}
		}
	}

	cond, ok := h.Instrs[len(h.Instrs)-1].(*ssa.If)
	if !ok || len(h.Succs) != 2 {
		return 0, false
	}
	bin, ok := cond.Cond.(*ssa.BinOp)
	if !ok {
		return 0, false
	}
	op, ok := tokenOps[bin.Op]
	if !ok {
		return 0, false
	}

	phi, bound, ok := phiAndConst(bin.X, bin.Y, h)
	if !ok {
		phi, bound, ok = phiAndConst(bin.Y, bin.X, h)
		if !ok {
			return 0, false
		}
		op = swapped[op]
	}

	switch {
	case n.body[h.Succs[0]] && !n.body[h.Succs[1]]:
	case !n.body[h.Succs[0]] && n.body[h.Succs[1]]:
		op = negated[op]
	default:
		return 0, false
	}

	start, step, ok := induction(phi, h, n)
	if !ok || step == 0 {
		return 0, false
	}
	width, ok := counterWidth(phi.Type())
	if !ok {
		return 0, false
	}
	return loops.TripCount(start, bound, step, op, width)
}

var wordSizes = types.SizesFor("gc", build.Default.GOARCH)

// counterWidth sizes an integer counter for the target architecture.
func counterWidth(t types.Type) (loops.Width, bool) {
	basic, ok := t.Underlying().(*types.Basic)
	if !ok || basic.Info()&types.IsInteger == 0 {
		return loops.Width{}, false
	}
	bits := 64
	if wordSizes != nil {
		bits = int(wordSizes.Sizeof(basic)) * 8
	}
	return loops.Width{Bits: bits, Unsigned: basic.Info()&types.IsUnsigned != 0}, true
}

func phiAndConst(x, y ssa.Value, h *ssa.BasicBlock) (*ssa.Phi, int64, bool) {
	phi, ok := x.(*ssa.Phi)
	if !ok || phi.Block() != h {
		return nil, 0, false
	}
	k, ok := constInt(y)
	return phi, k, ok
}

// induction reads the start value and step of phi. The only edge from
// outside the loop must be a constant, and every back edge must carry
// phi plus or minus the same constant.
func induction(phi *ssa.Phi, h *ssa.BasicBlock, n *natural) (start, step int64, ok bool) {
	var haveStart, haveStep bool
	for i, edge := range phi.Edges {
		pred := h.Preds[i]
		if !n.body[pred] {
			k, isConst := constInt(edge)
			if !isConst || haveStart {
				return 0, 0, false
			}
			start, haveStart = k, true
			continue
		}
		s, isStep := stepOf(edge, phi)
		if !isStep || (haveStep && s != step) {
			return 0, 0, false
		}
		step, haveStep = s, true
	}
	return start, step, haveStart && haveStep
}

func stepOf(v ssa.Value, phi *ssa.Phi) (int64, bool) {
	bin, ok := v.(*ssa.BinOp)
	if !ok {
		return 0, false
	}
	switch bin.Op {
	case token.ADD:
		if bin.X == phi {
			return constInt(bin.Y)
		}
		if bin.Y == phi {
			return constInt(bin.X)
		}
	case token.SUB:
		if bin.X == phi {
			k, ok := constInt(bin.Y)
			return -k, ok
		}
	}
	return 0, false
}

func constInt(v ssa.Value) (int64, bool) {
	c, ok := v.(*ssa.Const)
	if !ok || c.Value == nil || c.Value.Kind() != constant.Int {
		return 0, false
	}
	return constant.Int64Val(c.Value)
}
