package cfg

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/go-trace-query/internal/log"
	"github.com/l3aro/go-trace-query/pkg/graph"
	"github.com/l3aro/go-trace-query/pkg/loops"
)

// jump is the destination of break and continue inside a loop or switch.
type jump struct {
	brk  graph.Vertex
	cont graph.Vertex // NoVertex for switch
	loop *loopScope
}

// loopScope tracks whether a loop can still be certified as bounded.
type loopScope struct {
	poisoned bool
}

// lowerer lowers one function body. cur is the vertex control currently
// flows out of, or NoVertex when the current point is unreachable.
type lowerer struct {
	b       *graph.Builder
	opts    Options
	log     log.Logger
	content []byte
	fn      Function

	cur     graph.Vertex
	reached map[graph.Vertex]bool
	gotos   map[string]graph.Vertex
	jumps   []jump
	scopes  []*loopScope
	regions []loops.Region
}

func newLowerer(b *graph.Builder, opts Options, logger log.Logger, content []byte, fn Function) *lowerer {
	return &lowerer{
		b:       b,
		opts:    opts,
		log:     logger,
		content: content,
		fn:      fn,
		cur:     fn.Entry,
		reached: make(map[graph.Vertex]bool),
		gotos:   make(map[string]graph.Vertex),
	}
}

func (l *lowerer) lower(body *sitter.Node) {
	l.statement(body)
	l.edge(l.cur, l.fn.Exit)
}

func (l *lowerer) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(l.content)
}

func (l *lowerer) vertex(n *sitter.Node, suffix string) graph.Vertex {
	v := l.b.AddVertex()
	name := fmt.Sprintf("%s:%d", l.fn.Name, int(n.StartPoint().Row)+1)
	if suffix != "" {
		name += ":" + suffix
	}
	l.b.SetName(v, name)
	return v
}

func (l *lowerer) edge(from, to graph.Vertex) {
	if from == graph.NoVertex || to == graph.NoVertex {
		return
	}
	l.b.AddEdge(from, to)
	l.reached[to] = true
}

// advance starts a new segment at n.
func (l *lowerer) advance(n *sitter.Node, suffix string) graph.Vertex {
	v := l.vertex(n, suffix)
	l.edge(l.cur, v)
	l.cur = v
	return v
}

// ensure gives unreachable code a vertex of its own.
func (l *lowerer) ensure(n *sitter.Node) {
	if l.cur == graph.NoVertex {
		l.cur = l.vertex(n, "")
	}
}

// rejoin continues after a construct whose exit is v.
func (l *lowerer) rejoin(v graph.Vertex) {
	if l.reached[v] {
		l.cur = v
	} else {
		l.cur = graph.NoVertex
	}
}

func (l *lowerer) poisonAll() {
	for _, s := range l.scopes {
		s.poisoned = true
	}
}

func (l *lowerer) statement(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "compound_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			l.statement(n.NamedChild(i))
		}
	case "if_statement":
		l.ifStatement(n)
	case "while_statement":
		l.whileStatement(n)
	case "do_statement":
		l.doStatement(n)
	case "for_statement":
		l.forStatement(n)
	case "switch_statement":
		l.switchStatement(n)
	case "return_statement":
		l.calls(n)
		l.edge(l.cur, l.fn.Exit)
		l.cur = graph.NoVertex
		l.poisonAll()
	case "break_statement":
		if len(l.jumps) > 0 {
			j := l.jumps[len(l.jumps)-1]
			l.edge(l.cur, j.brk)
			if j.loop != nil {
				j.loop.poisoned = true
			}
		}
		l.cur = graph.NoVertex
	case "continue_statement":
		for i := len(l.jumps) - 1; i >= 0; i-- {
			if l.jumps[i].cont != graph.NoVertex {
				l.edge(l.cur, l.jumps[i].cont)
				break
			}
		}
		l.cur = graph.NoVertex
	case "goto_statement":
		l.edge(l.cur, l.gotoTarget(l.text(n.ChildByFieldName("label"))))
		l.cur = graph.NoVertex
		l.poisonAll()
	case "labeled_statement":
		target := l.gotoTarget(l.text(n.ChildByFieldName("label")))
		l.edge(l.cur, target)
		l.cur = target
		l.poisonAll()
		if count := int(n.NamedChildCount()); count > 1 {
			l.statement(n.NamedChild(count - 1))
		}
	case "comment", "type_definition", "preproc_call", "preproc_def", "preproc_function_def":
	default:
		l.calls(n)
	}
}

func (l *lowerer) gotoTarget(name string) graph.Vertex {
	if v, ok := l.gotos[name]; ok {
		return v
	}
	v := l.b.AddVertex()
	l.b.SetName(v, l.fn.Name+":"+name)
	l.gotos[name] = v
	return v
}

// calls emits one segment per call in n, arguments before the enclosing call.
func (l *lowerer) calls(n *sitter.Node) {
	for _, call := range collectCalls(n, nil) {
		l.call(call)
	}
}

func collectCalls(n *sitter.Node, out []*sitter.Node) []*sitter.Node {
	if n == nil {
		return out
	}
	switch n.Type() {
	case "compound_statement", "sizeof_expression":
		return out
	case "call_expression":
		if fn := n.ChildByFieldName("function"); fn != nil && fn.Type() != "identifier" {
			out = collectCalls(fn, out)
		}
		out = collectCalls(n.ChildByFieldName("arguments"), out)
		return append(out, n)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = collectCalls(n.NamedChild(i), out)
	}
	return out
}

func (l *lowerer) call(n *sitter.Node) {
	name := ""
	if fn := n.ChildByFieldName("function"); fn != nil && fn.Type() == "identifier" {
		name = l.text(fn)
	}
	v := l.advance(n, name)

	switch {
	case name == "":
	case name == l.opts.TracepointFunc:
		label, ok := l.tracepointName(n.ChildByFieldName("arguments"))
		if !ok {
			l.log.Warn("tracepoint without string literal ignored",
				"function", l.fn.Name, "line", int(n.StartPoint().Row)+1)
			break
		}
		if !l.b.AddLabel(label, v) {
			l.log.Warn("duplicate tracepoint, keeping first", "name", label, "function", l.fn.Name)
		}
	default:
		if entry, ok := l.b.Lookup(name); ok {
			l.b.SetCall(v, entry)
		}
	}

	if name != "" && l.opts.noReturn(name) {
		l.cur = graph.NoVertex
	}
}

func (l *lowerer) tracepointName(args *sitter.Node) (string, bool) {
	if args == nil || args.NamedChildCount() == 0 {
		return "", false
	}
	arg := args.NamedChild(0)
	if arg == nil || arg.Type() != "string_literal" {
		return "", false
	}
	s := l.text(arg)
	if len(s) < 2 || !strings.HasPrefix(s, `"`) || !strings.HasSuffix(s, `"`) {
		return "", false
	}
	return s[1 : len(s)-1], true
}

func (l *lowerer) ifStatement(n *sitter.Node) {
	l.calls(n.ChildByFieldName("condition"))
	l.ensure(n)
	head := l.cur

	then := n.ChildByFieldName("consequence")
	l.cur = graph.NoVertex
	l.edge(head, l.advance(then, ""))
	l.statement(then)
	thenEnd := l.cur

	elseEnd := head
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		if alt.Type() == "else_clause" {
			alt = alt.NamedChild(0)
		}
		if alt != nil {
			l.cur = graph.NoVertex
			l.edge(head, l.advance(alt, ""))
			l.statement(alt)
			elseEnd = l.cur
		}
	}

	if thenEnd == graph.NoVertex && elseEnd == graph.NoVertex {
		l.cur = graph.NoVertex
		return
	}
	l.cur = graph.NoVertex
	join := l.advance(n, "")
	l.edge(thenEnd, join)
	l.edge(elseEnd, join)
}

// branches wires the loop condition end to the body and the exit, dropping
// the side a constant condition can never take.
func (l *lowerer) branches(cond *sitter.Node, from, body, exit graph.Vertex) {
	val, constant := constValue(cond, l.content)
	if !constant || val != 0 {
		l.edge(from, body)
	}
	if !constant || val == 0 {
		l.edge(from, exit)
	}
}

func (l *lowerer) enterLoop(brk, cont graph.Vertex) *loopScope {
	s := &loopScope{}
	l.scopes = append(l.scopes, s)
	l.jumps = append(l.jumps, jump{brk: brk, cont: cont, loop: s})
	return s
}

// leaveLoop pops the innermost loop. An unbounded loop poisons every
// enclosing loop.
func (l *lowerer) leaveLoop(bounded bool) {
	l.scopes = l.scopes[:len(l.scopes)-1]
	l.jumps = l.jumps[:len(l.jumps)-1]
	if !bounded {
		l.poisonAll()
	}
}

func (l *lowerer) whileStatement(n *sitter.Node) {
	exit := l.vertex(n, "end")
	head := l.advance(n, "while")
	cond := n.ChildByFieldName("condition")
	l.calls(cond)
	body := l.vertex(n.ChildByFieldName("body"), "")
	l.branches(cond, l.cur, body, exit)

	l.enterLoop(exit, head)
	l.cur = body
	l.statement(n.ChildByFieldName("body"))
	l.edge(l.cur, head)
	l.leaveLoop(false)

	l.rejoin(exit)
}

func (l *lowerer) doStatement(n *sitter.Node) {
	exit := l.vertex(n, "end")
	cond := n.ChildByFieldName("condition")
	check := l.vertex(cond, "cond")
	body := l.advance(n, "do")

	l.enterLoop(exit, check)
	l.statement(n.ChildByFieldName("body"))
	l.edge(l.cur, check)
	l.cur = check
	l.calls(cond)
	l.branches(cond, l.cur, body, exit)
	val, constant := constValue(cond, l.content)
	l.leaveLoop(constant && val == 0)

	l.rejoin(exit)
}

func (l *lowerer) forStatement(n *sitter.Node) {
	init := n.ChildByFieldName("initializer")
	cond := n.ChildByFieldName("condition")
	update := n.ChildByFieldName("update")
	bodyNode := n.ChildByFieldName("body")

	l.calls(init)
	exit := l.vertex(n, "end")
	head := l.advance(n, "for")
	l.calls(cond)
	body := l.vertex(bodyNode, "")
	if cond == nil {
		l.edge(l.cur, body)
	} else {
		l.branches(cond, l.cur, body, exit)
	}
	step := l.vertex(n, "next")

	scope := l.enterLoop(exit, step)
	l.cur = body
	l.statement(bodyNode)
	l.edge(l.cur, step)
	l.cur = step
	l.calls(update)
	l.edge(l.cur, head)

	bounded := false
	if !scope.poisoned {
		if trips, ok := tripCount(n, init, cond, update, bodyNode, l.content); ok && loops.Certified(trips, l.opts.MinTripCount) {
			bounded = true
		}
	}
	if bounded {
		members := make([]graph.Vertex, 0, l.b.Len()-int(head))
		for v := head; int(v) < l.b.Len(); v++ {
			members = append(members, v)
		}
		l.regions = append(l.regions, loops.Region{Header: head, Members: members})
	}
	l.leaveLoop(bounded)

	l.rejoin(exit)
}

func (l *lowerer) switchStatement(n *sitter.Node) {
	l.calls(n.ChildByFieldName("condition"))
	l.ensure(n)
	dispatch := l.cur
	exit := l.vertex(n, "end")

	cont := graph.NoVertex
	for i := len(l.jumps) - 1; i >= 0; i-- {
		if l.jumps[i].cont != graph.NoVertex {
			cont = l.jumps[i].cont
			break
		}
	}
	l.jumps = append(l.jumps, jump{brk: exit, cont: cont})

	hasDefault := false
	l.cur = graph.NoVertex
	body := n.ChildByFieldName("body")
	for i := 0; body != nil && i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() != "case_statement" {
			l.statement(child)
			continue
		}
		value := child.ChildByFieldName("value")
		if value == nil {
			hasDefault = true
		}
		prev := l.cur
		l.cur = graph.NoVertex
		entry := l.advance(child, "case")
		l.edge(dispatch, entry)
		l.edge(prev, entry)
		for k := 0; k < int(child.NamedChildCount()); k++ {
			stmt := child.NamedChild(k)
			if value != nil && sameNode(stmt, value) {
				continue
			}
			l.statement(stmt)
		}
	}
	l.edge(l.cur, exit)
	if !hasDefault {
		l.edge(dispatch, exit)
	}
	l.jumps = l.jumps[:len(l.jumps)-1]

	l.rejoin(exit)
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
