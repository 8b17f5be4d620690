package compiler

import (
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/chazu/shadegraph/pkg/graph"
	"github.com/chazu/shadegraph/pkg/registry"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newGraph(t *testing.T, nodes ...*graph.Node) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s): %v", n.ID, err)
		}
	}
	return g
}

func node(id, typ string) *graph.Node {
	return &graph.Node{ID: graph.NodeID(id), Type: typ}
}

func constant(id string, v any) *graph.Node {
	return &graph.Node{ID: graph.NodeID(id), Type: "constant", Data: graph.Data{"value": v}}
}

func link(g *graph.Graph, from, fromSocket, to, toSocket string) {
	g.Connect(graph.Connection{
		From: graph.Endpoint{Node: graph.NodeID(from), Socket: fromSocket},
		To:   graph.Endpoint{Node: graph.NodeID(to), Socket: toSocket},
	})
}

func mustCompile(t *testing.T, g *graph.Graph) *Program {
	t.Helper()
	p, err := New(registry.Builtins()).Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return p
}

func countSymbol(p *Program, sym string) int {
	n := 0
	for _, s := range p.Statements {
		if s.Symbol == sym {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Programs
// ---------------------------------------------------------------------------

func TestCompileAddChain(t *testing.T) {
	g := newGraph(t, node("input_1", "input"), constant("constant_1", 5), node("add_1", "add"), node("output_1", "output"))
	link(g, "input_1", "u", "add_1", "a")
	link(g, "constant_1", "out", "add_1", "b")
	link(g, "add_1", "out", "output_1", "r")

	want := strings.Join([]string{
		"let input_1_u = u;",
		"let input_1_v = v;",
		"let constant_1_out = 5.0000;",
		"let add_1_out = (input_1_u + constant_1_out);",
		"vec4(add_1_out,0,0,0)",
	}, "\n")

	got := mustCompile(t, g).Source()
	if got != want {
		t.Fatalf("source mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}

	// Repeated compilation is byte-identical.
	for i := 0; i < 5; i++ {
		if again := mustCompile(t, g).Source(); again != got {
			t.Fatalf("compile %d differs:\n%s", i, again)
		}
	}
}

func TestCompileUnconnectedInputsDefaultToZero(t *testing.T) {
	g := newGraph(t, node("add_1", "add"), node("output_1", "output"))
	link(g, "add_1", "out", "output_1", "a")

	p := mustCompile(t, g)
	if len(p.Statements) != 1 {
		t.Fatalf("statements = %d, want 1", len(p.Statements))
	}
	if p.Statements[0].Expr != "(0 + 0)" {
		t.Errorf("add expr = %q, want (0 + 0)", p.Statements[0].Expr)
	}
	if p.Result != "vec4(0,0,0,add_1_out)" {
		t.Errorf("result = %q", p.Result)
	}
}

func TestCompileLoneSink(t *testing.T) {
	g := newGraph(t, node("output_1", "output"))
	p := mustCompile(t, g)
	if p.Source() != "\nvec4(0,0,0,0)" {
		t.Errorf("source = %q", p.Source())
	}
	if p.Sink != "output_1" {
		t.Errorf("sink = %s, want output_1", p.Sink)
	}
}

func TestCompileUnreachableNodesAreSkipped(t *testing.T) {
	g := newGraph(t, constant("constant_1", 2), node("multiply_1", "multiply"), node("output_1", "output"))
	link(g, "constant_1", "out", "multiply_1", "a")

	p := mustCompile(t, g)
	if len(p.Statements) != 0 {
		t.Errorf("statements = %v, want none", p.Statements)
	}
}

func TestCompileDiamondEmitsSharedNodeOnce(t *testing.T) {
	g := newGraph(t,
		constant("constant_1", 3),
		node("add_1", "add"),
		node("multiply_1", "multiply"),
		node("output_1", "output"),
	)
	link(g, "constant_1", "out", "add_1", "a")
	link(g, "constant_1", "out", "multiply_1", "a")
	link(g, "add_1", "out", "output_1", "r")
	link(g, "multiply_1", "out", "output_1", "g")

	p := mustCompile(t, g)
	if n := countSymbol(p, "constant_1_out"); n != 1 {
		t.Fatalf("constant_1_out emitted %d times, want 1", n)
	}
	if len(p.Statements) != 3 {
		t.Errorf("statements = %d, want 3", len(p.Statements))
	}
	if p.Statements[0].Symbol != "constant_1_out" {
		t.Errorf("shared dependency must be emitted first, got %s", p.Statements[0].Symbol)
	}
	if p.Result != "vec4(add_1_out,multiply_1_out,0,0)" {
		t.Errorf("result = %q", p.Result)
	}
}

func TestCompileDeepDiamondStaysLinear(t *testing.T) {
	// Each layer feeds both inputs of the next; without memoization the
	// expansion would double per layer.
	const layers = 64
	g := newGraph(t, constant("constant_1", 1))
	prev := "constant_1"
	for i := 1; i <= layers; i++ {
		id := "add_" + strconv.Itoa(i)
		if err := g.AddNode(node(id, "add")); err != nil {
			t.Fatal(err)
		}
		link(g, prev, "out", id, "a")
		link(g, prev, "out", id, "b")
		prev = id
	}
	if err := g.AddNode(node("output_1", "output")); err != nil {
		t.Fatal(err)
	}
	link(g, prev, "out", "output_1", "r")

	p := mustCompile(t, g)
	if len(p.Statements) != layers+1 {
		t.Errorf("statements = %d, want %d", len(p.Statements), layers+1)
	}
}

func TestCompileDanglingConnections(t *testing.T) {
	g := newGraph(t, constant("constant_1", 2), node("add_1", "add"), node("output_1", "output"))
	link(g, "ghost_1", "out", "add_1", "a")
	link(g, "constant_1", "nope", "add_1", "b")
	link(g, "add_1", "out", "output_1", "r")
	link(g, "add_1", "out", "ghost_2", "a")

	p := mustCompile(t, g)
	if p.Statements[0].Expr != "(0 + 0)" {
		t.Errorf("dangling inputs should read as zero, got %q", p.Statements[0].Expr)
	}
	if countSymbol(p, "constant_1_out") != 0 {
		t.Error("constant_1 should not be emitted through an undeclared socket")
	}
}

// ---------------------------------------------------------------------------
// Failures
// ---------------------------------------------------------------------------

func TestCompileUnknownNodeType(t *testing.T) {
	g := newGraph(t, node("noise_1", "noise"), node("output_1", "output"))

	p, err := New(registry.Builtins()).Compile(g)
	if p != nil {
		t.Error("failed compilation must not return a program")
	}
	if !errors.Is(err, ErrUnknownNodeType) {
		t.Fatalf("expected ErrUnknownNodeType, got %v", err)
	}
	var ce *CompileError
	if !errors.As(err, &ce) || ce.Node != "noise_1" || ce.Type != "noise" {
		t.Errorf("unexpected error detail: %#v", err)
	}
	if !strings.Contains(err.Error(), `"noise"`) {
		t.Errorf("error message %q should name the type", err)
	}
}

func TestCompileMissingSink(t *testing.T) {
	g := newGraph(t, node("add_1", "add"))
	_, err := New(registry.Builtins()).Compile(g)
	if !errors.Is(err, ErrMissingSink) {
		t.Fatalf("expected ErrMissingSink, got %v", err)
	}

	_, err = New(registry.Builtins()).Compile(graph.New())
	if !errors.Is(err, ErrMissingSink) {
		t.Fatalf("empty graph: expected ErrMissingSink, got %v", err)
	}
}

func TestCompileMultipleSinks(t *testing.T) {
	g := newGraph(t, node("output_1", "output"), node("output_2", "output"))
	_, err := New(registry.Builtins()).Compile(g)
	if !errors.Is(err, ErrMultipleSinks) {
		t.Fatalf("expected ErrMultipleSinks, got %v", err)
	}
	if !strings.Contains(err.Error(), "output_1, output_2") {
		t.Errorf("error %q should list both sinks", err)
	}
}

func TestCompileCycle(t *testing.T) {
	g := newGraph(t, node("add_1", "add"), node("multiply_1", "multiply"), node("output_1", "output"))
	link(g, "add_1", "out", "multiply_1", "a")
	link(g, "multiply_1", "out", "add_1", "a")
	link(g, "add_1", "out", "output_1", "r")

	_, err := New(registry.Builtins()).Compile(g)
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompileError, got %T", err)
	}
	want := []graph.NodeID{"add_1", "multiply_1", "add_1"}
	if len(ce.Nodes) != len(want) {
		t.Fatalf("cycle path = %v, want %v", ce.Nodes, want)
	}
	for i := range want {
		if ce.Nodes[i] != want[i] {
			t.Fatalf("cycle path = %v, want %v", ce.Nodes, want)
		}
	}
	if !strings.Contains(err.Error(), "add_1 -> multiply_1 -> add_1") {
		t.Errorf("error message = %q", err)
	}
}

func TestCompileSelfLoop(t *testing.T) {
	g := newGraph(t, node("add_1", "add"), node("output_1", "output"))
	link(g, "add_1", "out", "add_1", "b")
	link(g, "add_1", "out", "output_1", "r")

	_, err := New(registry.Builtins()).Compile(g)
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestCompileUnreachableCycleIsIgnored(t *testing.T) {
	g := newGraph(t, node("add_1", "add"), node("output_1", "output"))
	link(g, "add_1", "out", "add_1", "a")

	if _, err := New(registry.Builtins()).Compile(g); err != nil {
		t.Fatalf("cycle not reachable from the sink should compile, got %v", err)
	}
}

func TestCompileRecoversFromComputePanic(t *testing.T) {
	b := registry.NewBuilder()
	registry.RegisterBuiltins(b)
	calls := 0
	b.MustRegister(registry.NodeType{
		Type:    "fragile",
		Outputs: []graph.Socket{{Name: "out"}},
		Compute: func(registry.Args, *graph.Node) registry.Exprs {
			calls++
			if calls > 1 { // first call is the trial run at registration
				panic("boom")
			}
			return registry.Exprs{"out": "0"}
		},
	})

	g := newGraph(t, node("fragile_1", "fragile"), node("output_1", "output"))
	link(g, "fragile_1", "out", "output_1", "r")

	p, err := New(b.Build()).Compile(g)
	if err == nil || p != nil {
		t.Fatalf("expected error from panicking compute, got %v / %v", p, err)
	}
	if !errors.Is(err, ErrComputePanic) {
		t.Errorf("expected ErrComputePanic, got %v", err)
	}
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompileError, got %T", err)
	}
	if ce.Node != "fragile_1" || ce.Type != "fragile" {
		t.Errorf("panic attributed to %s (%s), want fragile_1 (fragile)", ce.Node, ce.Type)
	}
	if want := "node fragile_1: node compute panicked: boom"; err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}
}

func TestSourceHelper(t *testing.T) {
	g := newGraph(t, node("output_1", "output"))
	src, err := Source(registry.Builtins(), g)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(src, "vec4(0,0,0,0)") {
		t.Errorf("source = %q", src)
	}
	if _, err := Source(registry.Builtins(), graph.New()); err == nil {
		t.Error("expected error for graph without sink")
	}
}
