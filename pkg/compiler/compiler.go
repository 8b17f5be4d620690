// Package compiler turns a node graph into shader source. Compilation
// starts at the single output node and walks connections backwards,
// emitting one binding per node output the first time it is reached.
package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/shadegraph/pkg/graph"
	"github.com/chazu/shadegraph/pkg/logging"
	"github.com/chazu/shadegraph/pkg/registry"
)

// ZeroExpr feeds every input that has no usable connection.
const ZeroExpr = "0"

// Statement binds one node output to its generated expression.
type Statement struct {
	Symbol string
	Expr   string
}

func (s Statement) String() string {
	return fmt.Sprintf("let %s = %s;", s.Symbol, s.Expr)
}

// Program is the result of one compilation.
type Program struct {
	Sink       graph.NodeID
	Statements []Statement // dependencies always precede their users
	Result     string      // the sink's color expression
}

// Source renders the program as binding lines followed by the result
// expression on the last line.
func (p *Program) Source() string {
	lines := make([]string, len(p.Statements))
	for i, s := range p.Statements {
		lines[i] = s.String()
	}
	return strings.Join(lines, "\n") + "\n" + p.Result
}

// Symbol returns the identifier bound to one node output.
func Symbol(id graph.NodeID, socket string) string {
	return string(id) + "_" + socket
}

// Compiler compiles graphs against a fixed registry. It holds no
// per-compilation state and is safe for concurrent use.
type Compiler struct {
	reg *registry.Registry
}

// New returns a Compiler for node types in reg.
func New(reg *registry.Registry) *Compiler {
	return &Compiler{reg: reg}
}

// Source compiles g with reg and returns the program text.
func Source(reg *registry.Registry, g *graph.Graph) (string, error) {
	p, err := New(reg).Compile(g)
	if err != nil {
		return "", err
	}
	return p.Source(), nil
}

// Compile builds the program for g. g must not be mutated during the call.
// On failure no partial program is returned.
func (c *Compiler) Compile(g *graph.Graph) (prog *Program, err error) {
	s := &state{
		g:         g,
		types:     make(map[graph.NodeID]*registry.NodeType, g.NodeCount()),
		into:      make(map[graph.Endpoint]graph.Connection),
		emitted:   make(map[string]bool),
		expanding: make(map[graph.NodeID]bool),
		prog:      &Program{},
	}
	defer func() {
		if r := recover(); r != nil {
			// The node whose Compute ran is on top of the stack.
			ce := &CompileError{Kind: ErrComputePanic, Panic: r}
			if len(s.stack) > 0 {
				ce.Node = s.stack[len(s.stack)-1]
				ce.Type = s.g.Node(ce.Node).Type
			}
			prog, err = nil, ce
		}
	}()

	var sinks []graph.NodeID
	for _, n := range g.Nodes() {
		nt, ok := c.reg.Lookup(n.Type)
		if !ok {
			return nil, &CompileError{Kind: ErrUnknownNodeType, Node: n.ID, Type: n.Type}
		}
		s.types[n.ID] = nt
		if nt.IsSink() {
			sinks = append(sinks, n.ID)
		}
	}
	switch {
	case len(sinks) == 0:
		return nil, &CompileError{Kind: ErrMissingSink}
	case len(sinks) > 1:
		return nil, &CompileError{Kind: ErrMultipleSinks, Nodes: sinks}
	}

	for _, conn := range g.Connections() {
		if _, dup := s.into[conn.To]; !dup {
			s.into[conn.To] = conn
		}
	}

	sink := g.Node(sinks[0])
	s.prog.Sink = sink.ID
	s.expanding[sink.ID] = true
	s.stack = append(s.stack, sink.ID)
	args, err := s.args(sink, s.types[sink.ID])
	if err != nil {
		return nil, err
	}
	s.prog.Result = s.types[sink.ID].Compute(args, sink)[registry.SinkResult]

	logging.Logger().Debug("compiled graph",
		"sink", sink.ID,
		"nodes", g.NodeCount(),
		"statements", len(s.prog.Statements))
	return s.prog, nil
}

// state is the scratch space of one compilation.
type state struct {
	g         *graph.Graph
	types     map[graph.NodeID]*registry.NodeType
	into      map[graph.Endpoint]graph.Connection
	emitted   map[string]bool
	expanding map[graph.NodeID]bool // on the expansion stack, not yet emitted
	stack     []graph.NodeID
	prog      *Program
}

// args resolves every declared input of n in declaration order.
func (s *state) args(n *graph.Node, nt *registry.NodeType) (registry.Args, error) {
	args := make(registry.Args, len(nt.Inputs))
	for _, in := range nt.Inputs {
		expr, err := s.input(graph.Endpoint{Node: n.ID, Socket: in.Name})
		if err != nil {
			return nil, err
		}
		args[in.Name] = expr
	}
	return args, nil
}

// input returns the expression feeding ep. Unconnected inputs and
// connections whose source node or socket does not exist yield ZeroExpr.
func (s *state) input(ep graph.Endpoint) (string, error) {
	conn, ok := s.into[ep]
	if !ok {
		return ZeroExpr, nil
	}
	src := s.g.Node(conn.From.Node)
	if src == nil || !s.types[src.ID].HasOutput(conn.From.Socket) {
		logging.Logger().Debug("ignoring dangling connection", "from", conn.From, "to", conn.To)
		return ZeroExpr, nil
	}
	return s.output(src, conn.From.Socket)
}

// output returns the symbol for one output of n, emitting n first if it
// has not been emitted yet.
func (s *state) output(n *graph.Node, socket string) (string, error) {
	sym := Symbol(n.ID, socket)
	if s.emitted[sym] {
		return sym, nil
	}
	if s.expanding[n.ID] {
		start := slices.Index(s.stack, n.ID)
		path := append(slices.Clone(s.stack[start:]), n.ID)
		return "", &CompileError{Kind: ErrCycle, Node: n.ID, Nodes: path}
	}

	s.expanding[n.ID] = true
	s.stack = append(s.stack, n.ID)

	nt := s.types[n.ID]
	args, err := s.args(n, nt)
	if err != nil {
		return "", err
	}
	exprs := nt.Compute(args, n)
	for _, out := range nt.Outputs {
		name := Symbol(n.ID, out.Name)
		s.prog.Statements = append(s.prog.Statements, Statement{Symbol: name, Expr: exprs[out.Name]})
		s.emitted[name] = true
	}

	s.stack = s.stack[:len(s.stack)-1]
	delete(s.expanding, n.ID)
	return sym, nil
}
