package cfg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-trace-query/pkg/graph"
	"github.com/l3aro/go-trace-query/pkg/trace"
)

func build(t *testing.T, src string) *Program {
	t.Helper()
	p, err := BuildSources(context.Background(), []Source{{Path: "main.c", Content: []byte(src)}}, DefaultOptions())
	require.NoError(t, err)
	return p
}

func check(p *Program, start, final string) trace.Outcome {
	return trace.Analyze(p.Graph, p.Labels, p.Bounded, start, final)
}

const simpleLoop = `
int main() {
    besc_tracepoint("main_entry");
    if (rand()) {
        for (int i = 0; i < 50000; ++i) {
            besc_tracepoint("3");
        }
    } else {
        return 1;
    }
    besc_tracepoint("main_exit");
    return 0;
}
`

func TestBoundedLoopWithEarlyReturn(t *testing.T) {
	p := build(t, simpleLoop)

	assert.Len(t, p.Regions, 1)
	assert.Equal(t, 1, p.Bounded.Len())
	assert.Equal(t, trace.Outcome{FinalAvoidable: true}, check(p, "main_entry", "main_exit"))
	assert.Equal(t, trace.Outcome{FinalAvoidable: true}, check(p, "main_entry", "3"))
}

const calls = `
void f() {
    besc_tracepoint("f_entry");
    int b = 3;
    while (b > 2) b++;
    besc_tracepoint("f_exit");
}

void g() {
    besc_tracepoint("g_entry");
    int c = 5;
    besc_tracepoint("g_1");
    c += 15 * 8;
    besc_tracepoint("g_exit");
}

void h() {
    besc_tracepoint("h_entry");
    h();
    besc_tracepoint("h_exit");
}

void q() {
    besc_tracepoint("q_entry");
    int d = 14*6+5-11*7;
    if (d == -18) {
        besc_tracepoint("q_1");
        return;
    }
    besc_tracepoint("q_2");
    g();
    besc_tracepoint("q_exit");
}

int main() {
    besc_tracepoint("main_entry");
    f();
    besc_tracepoint("main_1");
    g();
    besc_tracepoint("main_2");
    h();
    besc_tracepoint("main_3");
    q();
    besc_tracepoint("main_exit");
    return 0;
}
`

func TestInterproceduralLoops(t *testing.T) {
	p := build(t, calls)

	tests := []struct {
		start, final string
		want         trace.Outcome
	}{
		{"main_entry", "main_exit", trace.Outcome{LoopFound: true}},
		{"main_1", "main_2", trace.Outcome{}},
		{"main_1", "main_3", trace.Outcome{LoopFound: true}},
		{"main_3", "main_exit", trace.Outcome{}},
		{"g_entry", "g_exit", trace.Outcome{}},
		{"q_entry", "q_exit", trace.Outcome{FinalAvoidable: true}},
		{"q_entry", "g_1", trace.Outcome{FinalAvoidable: true}},
		{"f_entry", "f_exit", trace.Outcome{LoopFound: true}},
		{"main_exit", "main_entry", trace.Outcome{FinalUnreachable: true, FinalAvoidable: true}},
		{"main_entry", "nowhere", trace.Outcome{FinalNotFound: true}},
	}

	for _, tt := range tests {
		t.Run(tt.start+"->"+tt.final, func(t *testing.T) {
			assert.Equal(t, tt.want, check(p, tt.start, tt.final))
		})
	}
}

func TestCallEdges(t *testing.T) {
	p := build(t, calls)

	h, ok := p.Function("h")
	require.True(t, ok)
	main, ok := p.Function("main")
	require.True(t, ok)
	assert.Equal(t, "main.c", main.File)
	assert.Equal(t, 35, main.Line)

	var intoH int
	for v := graph.Vertex(0); int(v) < p.Graph.Len(); v++ {
		if to, ok := p.Graph.CallTarget(v); ok && to == h.Entry {
			intoH++
		}
	}
	assert.Equal(t, 2, intoH, "main and h itself call h")

	tp, ok := p.Labels.VertexOf("main_entry")
	require.True(t, ok)
	_, hasCall := p.Graph.CallTarget(tp)
	assert.False(t, hasCall, "tracepoints are not call edges")
	assert.Empty(t, p.Graph.Successors(main.Exit))
}

func TestBranchesThroughSharedCallee(t *testing.T) {
	p := build(t, `
void f() {
    besc_tracepoint("f_1");
}

int main() {
    if (rand()) {
        besc_tracepoint("main_1");
        f();
        besc_tracepoint("main_2");
    } else {
        besc_tracepoint("main_3");
        f();
        besc_tracepoint("main_4");
    }
    return 0;
}
`)

	assert.Equal(t, trace.Outcome{}, check(p, "main_1", "main_2"))
	assert.Equal(t, trace.Outcome{}, check(p, "main_3", "main_4"))
	assert.Equal(t, trace.Outcome{FinalUnreachable: true, FinalAvoidable: true}, check(p, "main_1", "main_4"))
	assert.Equal(t, trace.Outcome{}, check(p, "main_1", "f_1"))
}

func TestLoopCertification(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		regions int
		want    trace.Outcome
	}{
		{
			name:    "counted up",
			body:    `for (int i = 0; i < 5; ++i) { besc_tracepoint("x"); }`,
			regions: 1,
		},
		{
			name:    "counted down with assignment init",
			body:    `int i; for (i = 10; i > 0; i -= 2) { besc_tracepoint("x"); }`,
			regions: 1,
		},
		{
			name:    "literal on the left",
			body:    `for (int i = 0; 8 >= i; i++) { work(); }`,
			regions: 1,
		},
		{
			name:    "single trip",
			body:    `for (int i = 0; i < 1; i++) { work(); }`,
			regions: 0,
			want:    trace.Outcome{LoopFound: true},
		},
		{
			name:    "body writes counter",
			body:    `for (int i = 0; i < 5; i++) { i = read(); }`,
			regions: 0,
			want:    trace.Outcome{LoopFound: true},
		},
		{
			name:    "address of counter escapes",
			body:    `for (int i = 0; i < 5; i++) { fill(&i); }`,
			regions: 0,
			want:    trace.Outcome{LoopFound: true},
		},
		{
			name:    "break leaves loop",
			body:    `for (int i = 0; i < 5; i++) { if (read()) break; }`,
			regions: 0,
			want:    trace.Outcome{LoopFound: true},
		},
		{
			name:    "break inside switch stays",
			body:    `for (int i = 0; i < 5; i++) { switch (read()) { case 1: work(); break; default: break; } }`,
			regions: 1,
		},
		{
			name:    "unbounded inner loop poisons outer",
			body:    `for (int i = 0; i < 5; i++) { while (read()) { work(); } }`,
			regions: 0,
			want:    trace.Outcome{LoopFound: true},
		},
		{
			name:    "bounded nest",
			body:    `for (int i = 0; i < 5; i++) { for (int j = 0; j != 6; j += 2) { work(); } }`,
			regions: 2,
		},
		{
			name:    "do while zero is not a loop",
			body:    `for (int i = 0; i < 3; i++) { do { work(); } while (0); }`,
			regions: 1,
		},
		{
			name:    "inclusive int max wraps",
			body:    `for (int i = 0; i <= 2147483647; i++) { work(); }`,
			regions: 0,
			want:    trace.Outcome{LoopFound: true},
		},
		{
			name:    "long counter past int range",
			body:    `for (long i = 0; i <= 2147483647; i++) { work(); }`,
			regions: 1,
		},
		{
			name:    "unsigned char never reaches bound",
			body:    `for (unsigned char c = 0; c < 300; c++) { work(); }`,
			regions: 0,
			want:    trace.Outcome{LoopFound: true},
		},
		{
			name:    "unsigned down to zero inclusive",
			body:    `for (unsigned i = 10; i >= 0; i--) { work(); }`,
			regions: 0,
			want:    trace.Outcome{LoopFound: true},
		},
		{
			name:    "unknown typedef counter",
			body:    `count_t i; for (i = 0; i < 5; i++) { work(); }`,
			regions: 0,
			want:    trace.Outcome{LoopFound: true},
		},
		{
			name:    "zero step",
			body:    `for (int i = 0; i < 5; i += 0) { work(); }`,
			regions: 0,
			want:    trace.Outcome{LoopFound: true},
		},
		{
			name:    "while loop",
			body:    `int k = 0; while (k < 3) { k++; }`,
			regions: 0,
			want:    trace.Outcome{LoopFound: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "int main() {\n besc_tracepoint(\"main_entry\");\n " + tt.body +
				"\n besc_tracepoint(\"main_exit\");\n return 0;\n}\n"
			p := build(t, src)
			assert.Len(t, p.Regions, tt.regions)
			assert.Equal(t, tt.want, check(p, "main_entry", "main_exit"))
		})
	}
}

func TestZeroMinimumTripCount(t *testing.T) {
	src := `
int main() {
    besc_tracepoint("main_entry");
    for (int i = 0; i < 1; i++) { work(); }
    for (int j = 0; j < 0; j++) { work(); }
    besc_tracepoint("main_exit");
    return 0;
}
`
	opts := DefaultOptions()
	opts.MinTripCount = 0
	p, err := BuildSources(context.Background(), []Source{{Path: "main.c", Content: []byte(src)}}, opts)
	require.NoError(t, err)

	assert.Empty(t, p.Regions)
	assert.True(t, check(p, "main_entry", "main_exit").LoopFound)
}

func TestInfiniteLoopNeverReachesFinal(t *testing.T) {
	p := build(t, `
int main() {
    besc_tracepoint("main_entry");
    while (1) {
        besc_tracepoint("spin");
    }
    besc_tracepoint("main_exit");
    return 0;
}
`)

	out := check(p, "main_entry", "main_exit")
	assert.True(t, out.FinalUnreachable)
	assert.False(t, out.FinalAvoidable)

	res := trace.NewAnalyzer(p.Graph, p.Bounded).Run(p.Labels["main_entry"], p.Labels["main_exit"])
	assert.True(t, res.Status(p.Labels["main_entry"]).RealLoop)
}

func TestForeverWithBreakReachesFinal(t *testing.T) {
	p := build(t, `
int main() {
    besc_tracepoint("main_entry");
    for (;;) {
        if (done()) break;
    }
    besc_tracepoint("main_exit");
    return 0;
}
`)

	assert.Equal(t, trace.Outcome{LoopFound: true}, check(p, "main_entry", "main_exit"))
}

func TestNoReturnCalls(t *testing.T) {
	p := build(t, `
int main(int argc) {
    besc_tracepoint("main_entry");
    if (argc > 3) {
        exit(1);
        besc_tracepoint("dead");
    }
    besc_tracepoint("main_exit");
    return 0;
}
`)

	assert.Equal(t, trace.Outcome{FinalAvoidable: true}, check(p, "main_entry", "main_exit"))
	assert.Equal(t, trace.Outcome{FinalUnreachable: true, FinalAvoidable: true}, check(p, "main_entry", "dead"))
}

func TestSwitchFallthrough(t *testing.T) {
	p := build(t, `
int main(int c) {
    besc_tracepoint("main_entry");
    switch (c) {
    case 1:
        besc_tracepoint("one");
    case 2:
        besc_tracepoint("two");
        break;
    case 3:
        return 3;
    }
    besc_tracepoint("main_exit");
    return 0;
}
`)

	assert.Equal(t, trace.Outcome{}, check(p, "one", "two"))
	assert.Equal(t, trace.Outcome{FinalAvoidable: true}, check(p, "main_entry", "main_exit"))
	assert.Equal(t, trace.Outcome{FinalUnreachable: true, FinalAvoidable: true}, check(p, "two", "one"))
}

func TestGotoBackwardsIsLoop(t *testing.T) {
	p := build(t, `
int main() {
    besc_tracepoint("main_entry");
again:
    if (retry()) goto again;
    besc_tracepoint("main_exit");
    return 0;
}
`)

	assert.Equal(t, trace.Outcome{LoopFound: true}, check(p, "main_entry", "main_exit"))
}

func TestCallsInsideConditionsAndArguments(t *testing.T) {
	p := build(t, `
int inner() { besc_tracepoint("inner"); return 1; }
int outer(int x) { besc_tracepoint("outer"); return x; }

int main() {
    besc_tracepoint("main_entry");
    if (outer(inner())) {
        besc_tracepoint("main_exit");
    }
    return 0;
}
`)

	assert.Equal(t, trace.Outcome{}, check(p, "main_entry", "inner"))
	assert.Equal(t, trace.Outcome{FinalAvoidable: true}, check(p, "main_entry", "main_exit"))
}

func TestDuplicateTracepointKeepsFirst(t *testing.T) {
	p := build(t, `
int main() {
    besc_tracepoint("dup");
    work();
    besc_tracepoint("dup");
    return 0;
}
`)

	v, ok := p.Labels.VertexOf("dup")
	require.True(t, ok)
	main, _ := p.Function("main")
	assert.Equal(t, []graph.Vertex{v}, p.Graph.Successors(main.Entry))
}

func TestFunctionsLinkAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib.c")
	app := filepath.Join(dir, "app.c")
	require.NoError(t, os.WriteFile(lib, []byte(`
static int *helper(void) { besc_tracepoint("helper"); return 0; }
`), 0644))
	require.NoError(t, os.WriteFile(app, []byte(`
int main() { besc_tracepoint("main_entry"); helper(); besc_tracepoint("main_exit"); return 0; }
`), 0644))

	p, err := BuildProgram(context.Background(), []string{app, lib}, DefaultOptions())
	require.NoError(t, err)

	helper, ok := p.Function("helper")
	require.True(t, ok)
	assert.Equal(t, lib, helper.File)
	assert.Equal(t, trace.Outcome{}, check(p, "main_entry", "helper"))
	assert.Equal(t, trace.Outcome{}, check(p, "main_entry", "main_exit"))
}

func TestDuplicateDefinitionKeepsFirst(t *testing.T) {
	p, err := BuildSources(context.Background(), []Source{
		{Path: "a.c", Content: []byte(`void work(void) { besc_tracepoint("first"); }`)},
		{Path: "b.c", Content: []byte(`void work(void) { besc_tracepoint("second"); }
int main() { besc_tracepoint("main_entry"); work(); return 0; }`)},
	}, DefaultOptions())
	require.NoError(t, err)

	var works []Function
	for _, f := range p.Functions {
		if f.Name == "work" {
			works = append(works, f)
		}
	}
	require.Len(t, works, 1)
	assert.Equal(t, "a.c", works[0].File)
	assert.Equal(t, "work", p.Graph.Name(works[0].Entry))
	assert.Equal(t, "work:exit", p.Graph.Name(works[0].Exit))

	assert.Equal(t, trace.Outcome{}, check(p, "main_entry", "first"))
	assert.True(t, check(p, "main_entry", "second").FinalNotFound)
}

func TestBuildErrors(t *testing.T) {
	_, err := BuildSources(context.Background(), nil, DefaultOptions())
	assert.True(t, errors.Is(err, ErrNoSources))

	_, err = BuildProgram(context.Background(), []string{filepath.Join(t.TempDir(), "missing.c")}, DefaultOptions())
	assert.Error(t, err)
}
