package cfg

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/l3aro/go-trace-query/pkg/loops"
)

// unparen strips redundant parentheses.
func unparen(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "parenthesized_expression" && n.NamedChildCount() == 1 {
		n = n.NamedChild(0)
	}
	return n
}

// constValue evaluates integer literals, optionally negated.
func constValue(n *sitter.Node, content []byte) (int64, bool) {
	n = unparen(n)
	if n == nil {
		return 0, false
	}
	switch n.Type() {
	case "number_literal":
		s := strings.TrimRight(n.Content(content), "uUlL")
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	case "true":
		return 1, true
	case "false":
		return 0, true
	case "unary_expression":
		op := n.ChildByFieldName("operator")
		if op == nil || op.Type() != "-" {
			return 0, false
		}
		v, ok := constValue(n.ChildByFieldName("argument"), content)
		return -v, ok
	}
	return 0, false
}

func identName(n *sitter.Node, content []byte) string {
	n = unparen(n)
	if n == nil || n.Type() != "identifier" {
		return ""
	}
	return n.Content(content)
}

// counterInit matches `int i = k` or `i = k`.
func counterInit(n *sitter.Node, content []byte) (string, int64, bool) {
	if n == nil {
		return "", 0, false
	}
	switch n.Type() {
	case "declaration":
		var name string
		var start int64
		found := 0
		for i := 0; i < int(n.NamedChildCount()); i++ {
			d := n.NamedChild(i)
			if d.Type() != "init_declarator" {
				continue
			}
			found++
			name = identName(d.ChildByFieldName("declarator"), content)
			v, ok := constValue(d.ChildByFieldName("value"), content)
			if !ok {
				return "", 0, false
			}
			start = v
		}
		if found != 1 || name == "" {
			return "", 0, false
		}
		return name, start, true
	case "assignment_expression":
		op := n.ChildByFieldName("operator")
		if op == nil || op.Type() != "=" {
			return "", 0, false
		}
		name := identName(n.ChildByFieldName("left"), content)
		v, ok := constValue(n.ChildByFieldName("right"), content)
		if name == "" || !ok {
			return "", 0, false
		}
		return name, v, true
	}
	return "", 0, false
}

var flipped = map[string]string{"<": ">", "<=": ">=", ">": "<", ">=": "<=", "!=": "!="}

// counterBound matches `i OP k` or `k OP i`, normalized to `i OP k`.
func counterBound(n *sitter.Node, name string, content []byte) (string, int64, bool) {
	n = unparen(n)
	if n == nil || n.Type() != "binary_expression" {
		return "", 0, false
	}
	opNode := n.ChildByFieldName("operator")
	if opNode == nil {
		return "", 0, false
	}
	op := opNode.Type()
	if _, ok := flipped[op]; !ok {
		return "", 0, false
	}
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
	if identName(left, content) == name {
		v, ok := constValue(right, content)
		return op, v, ok
	}
	if identName(right, content) == name {
		v, ok := constValue(left, content)
		return flipped[op], v, ok
	}
	return "", 0, false
}

// counterStep matches `i++`, `--i`, `i += k` and `i -= k`.
func counterStep(n *sitter.Node, name string, content []byte) (int64, bool) {
	n = unparen(n)
	if n == nil {
		return 0, false
	}
	switch n.Type() {
	case "update_expression":
		if identName(n.ChildByFieldName("argument"), content) != name {
			return 0, false
		}
		op := n.ChildByFieldName("operator")
		if op == nil {
			return 0, false
		}
		switch op.Type() {
		case "++":
			return 1, true
		case "--":
			return -1, true
		}
	case "assignment_expression":
		if identName(n.ChildByFieldName("left"), content) != name {
			return 0, false
		}
		k, ok := constValue(n.ChildByFieldName("right"), content)
		if !ok {
			return 0, false
		}
		op := n.ChildByFieldName("operator")
		if op == nil {
			return 0, false
		}
		switch op.Type() {
		case "+=":
			return k, true
		case "-=":
			return -k, true
		}
	}
	return 0, false
}

// writes reports whether n assigns name or takes its address.
func writes(n *sitter.Node, name string, content []byte) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "assignment_expression":
		if identName(n.ChildByFieldName("left"), content) == name {
			return true
		}
	case "update_expression":
		if identName(n.ChildByFieldName("argument"), content) == name {
			return true
		}
	case "pointer_expression":
		op := n.ChildByFieldName("operator")
		if op != nil && op.Type() == "&" && identName(n.ChildByFieldName("argument"), content) == name {
			return true
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if writes(n.NamedChild(i), name, content) {
			return true
		}
	}
	return false
}

// cWidths maps the integer type names a counter may be declared with.
var cWidths = map[string]loops.Width{
	"char":      {Bits: 8},
	"short":     {Bits: 16},
	"int":       {Bits: 32},
	"long":      {Bits: 64},
	"int8_t":    {Bits: 8},
	"int16_t":   {Bits: 16},
	"int32_t":   {Bits: 32},
	"int64_t":   {Bits: 64},
	"uint8_t":   {Bits: 8, Unsigned: true},
	"uint16_t":  {Bits: 16, Unsigned: true},
	"uint32_t":  {Bits: 32, Unsigned: true},
	"uint64_t":  {Bits: 64, Unsigned: true},
	"size_t":    {Bits: 64, Unsigned: true},
	"ssize_t":   {Bits: 64},
	"ptrdiff_t": {Bits: 64},
	"intptr_t":  {Bits: 64},
	"uintptr_t": {Bits: 64, Unsigned: true},
	"bool":      {Bits: 1, Unsigned: true},
	"_Bool":     {Bits: 1, Unsigned: true},
}

// typeWidth reads an integer type specifier such as `unsigned long long`.
// Unknown typedefs and non-integer types fail.
func typeWidth(n *sitter.Node, content []byte) (loops.Width, bool) {
	if n == nil {
		return loops.Width{}, false
	}
	words := strings.Fields(n.Content(content))
	unsigned := false
	var base []string
	for _, w := range words {
		switch w {
		case "unsigned":
			unsigned = true
		case "signed", "const", "volatile", "register":
		default:
			base = append(base, w)
		}
	}
	if len(base) == 0 {
		return loops.Width{Bits: 32, Unsigned: unsigned}, true
	}
	key := base[0]
	for _, w := range base {
		switch w {
		case "char", "short", "long":
			key = w
		}
	}
	width, ok := cWidths[key]
	if !ok {
		return loops.Width{}, false
	}
	if unsigned {
		width.Unsigned = true
	}
	return width, true
}

// declaredName returns the variable a declarator introduces when it is a
// plain identifier, with or without an initializer.
func declaredName(d *sitter.Node, content []byte) string {
	switch d.Type() {
	case "identifier":
		return d.Content(content)
	case "init_declarator":
		return identName(d.ChildByFieldName("declarator"), content)
	}
	return ""
}

// declares returns the type of name when decl declares it.
func declares(decl *sitter.Node, name string, content []byte) (*sitter.Node, bool) {
	if decl == nil || (decl.Type() != "declaration" && decl.Type() != "parameter_declaration") {
		return nil, false
	}
	typ := decl.ChildByFieldName("type")
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		if declaredName(decl.NamedChild(i), content) == name {
			return typ, true
		}
	}
	return nil, false
}

// counterWidth finds the innermost local declaration of name visible at
// loop. Globals are rejected since callees may write them.
func counterWidth(loop *sitter.Node, name string, content []byte) (loops.Width, bool) {
	for n := loop; n != nil; n = n.Parent() {
		p := n.Parent()
		if p == nil {
			break
		}
		switch p.Type() {
		case "compound_statement":
			var typ *sitter.Node
			found := false
			for i := 0; i < int(p.NamedChildCount()); i++ {
				c := p.NamedChild(i)
				if c.StartByte() >= n.StartByte() {
					break
				}
				if t, ok := declares(c, name, content); ok {
					typ, found = t, true
				}
			}
			if found {
				return typeWidth(typ, content)
			}
		case "for_statement":
			if t, ok := declares(p.ChildByFieldName("initializer"), name, content); ok {
				return typeWidth(t, content)
			}
		case "function_definition":
			fd := p.ChildByFieldName("declarator")
			for fd != nil && fd.Type() != "function_declarator" {
				fd = fd.ChildByFieldName("declarator")
			}
			if fd == nil {
				return loops.Width{}, false
			}
			params := fd.ChildByFieldName("parameters")
			for i := 0; params != nil && i < int(params.NamedChildCount()); i++ {
				if t, ok := declares(params.NamedChild(i), name, content); ok {
					return typeWidth(t, content)
				}
			}
			return loops.Width{}, false
		}
	}
	return loops.Width{}, false
}

// tripCount computes the constant trip count of a counted for loop.
func tripCount(loop, init, cond, update, body *sitter.Node, content []byte) (int64, bool) {
	name, start, ok := counterInit(init, content)
	if !ok {
		return 0, false
	}
	op, bound, ok := counterBound(cond, name, content)
	if !ok {
		return 0, false
	}
	step, ok := counterStep(update, name, content)
	if !ok || step == 0 {
		return 0, false
	}
	if writes(body, name, content) {
		return 0, false
	}
	var width loops.Width
	if init.Type() == "declaration" {
		width, ok = typeWidth(init.ChildByFieldName("type"), content)
	} else {
		width, ok = counterWidth(loop, name, content)
	}
	if !ok {
		return 0, false
	}
	return loops.TripCount(start, bound, step, op, width)
}
