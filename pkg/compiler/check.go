package compiler

import (
	"fmt"

	"github.com/chazu/shadegraph/pkg/graph"
	"github.com/chazu/shadegraph/pkg/registry"
)

// Severity tells whether a diagnostic blocks compilation or is advisory.
type Severity int

const (
	SeverityError   Severity = iota // compilation will fail
	SeverityWarning                 // compiles, but the input reads as zero
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Diagnostic describes one finding about a graph.
type Diagnostic struct {
	Node     graph.NodeID // zero for graph-level findings
	Socket   string
	Message  string
	Severity Severity
}

func (d Diagnostic) Error() string {
	if d.Node.IsZero() {
		return fmt.Sprintf("[%s] %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", d.Severity, d.Node, d.Message)
}

// Check inspects g without compiling it and reports every problem an
// editor may want to surface. It never mutates g.
func Check(reg *registry.Registry, g *graph.Graph) []Diagnostic {
	var out []Diagnostic
	out = append(out, checkTypes(reg, g)...)
	out = append(out, checkSinks(reg, g)...)
	out = append(out, checkConnections(reg, g)...)
	out = append(out, checkCycles(reg, g)...)
	return out
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(ds []Diagnostic) bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func checkTypes(reg *registry.Registry, g *graph.Graph) []Diagnostic {
	var out []Diagnostic
	for _, n := range g.Nodes() {
		if _, ok := reg.Lookup(n.Type); !ok {
			out = append(out, Diagnostic{
				Node:     n.ID,
				Message:  fmt.Sprintf("unknown node type %q", n.Type),
				Severity: SeverityError,
			})
		}
	}
	return out
}

func checkSinks(reg *registry.Registry, g *graph.Graph) []Diagnostic {
	var sinks []graph.NodeID
	for _, n := range g.Nodes() {
		if nt, ok := reg.Lookup(n.Type); ok && nt.IsSink() {
			sinks = append(sinks, n.ID)
		}
	}
	switch {
	case len(sinks) == 0:
		return []Diagnostic{{Message: "graph has no output node", Severity: SeverityError}}
	case len(sinks) > 1:
		out := make([]Diagnostic, 0, len(sinks))
		for _, id := range sinks {
			out = append(out, Diagnostic{
				Node:     id,
				Message:  fmt.Sprintf("one of %d output nodes; exactly one is allowed", len(sinks)),
				Severity: SeverityError,
			})
		}
		return out
	}
	return nil
}

// checkConnections reports dangling endpoints, undeclared sockets, and
// inputs fed by more than one connection.
func checkConnections(reg *registry.Registry, g *graph.Graph) []Diagnostic {
	var out []Diagnostic
	seen := make(map[graph.Endpoint]bool)

	for _, c := range g.Connections() {
		if seen[c.To] {
			out = append(out, Diagnostic{
				Node:     c.To.Node,
				Socket:   c.To.Socket,
				Message:  fmt.Sprintf("input %s has more than one connection", c.To),
				Severity: SeverityError,
			})
		}
		seen[c.To] = true

		src := g.Node(c.From.Node)
		if src == nil {
			out = append(out, Diagnostic{
				Node:     c.To.Node,
				Socket:   c.To.Socket,
				Message:  fmt.Sprintf("connection from missing node %s", c.From.Node),
				Severity: SeverityWarning,
			})
		} else if nt, ok := reg.Lookup(src.Type); ok && !nt.HasOutput(c.From.Socket) {
			out = append(out, Diagnostic{
				Node:     src.ID,
				Socket:   c.From.Socket,
				Message:  fmt.Sprintf("%s has no output socket %q", src.Type, c.From.Socket),
				Severity: SeverityWarning,
			})
		}

		dst := g.Node(c.To.Node)
		if dst == nil {
			out = append(out, Diagnostic{
				Node:     c.From.Node,
				Socket:   c.From.Socket,
				Message:  fmt.Sprintf("connection to missing node %s", c.To.Node),
				Severity: SeverityWarning,
			})
		} else if nt, ok := reg.Lookup(dst.Type); ok && !nt.HasInput(c.To.Socket) {
			out = append(out, Diagnostic{
				Node:     dst.ID,
				Socket:   c.To.Socket,
				Message:  fmt.Sprintf("%s has no input socket %q", dst.Type, c.To.Socket),
				Severity: SeverityWarning,
			})
		}
	}
	return out
}

// checkCycles looks for a node that depends on its own output, following
// only the edges Compile follows: declared output to declared input, first
// connection per input. The walk starts at the output nodes, so a cycle
// they reach is an error; one they cannot reach never gets compiled and is
// only a warning. At most one cycle is reported.
//
// Colors: white (0) unvisited, gray (1) on the current path, black (2) done.
func checkCycles(reg *registry.Registry, g *graph.Graph) []Diagnostic {
	const (
		white = iota
		gray
		black
	)

	declared := func(id graph.NodeID) *registry.NodeType {
		n := g.Node(id)
		if n == nil {
			return nil
		}
		nt, _ := reg.Lookup(n.Type)
		return nt
	}

	producers := make(map[graph.NodeID][]graph.NodeID)
	fed := make(map[graph.Endpoint]bool)
	for _, c := range g.Connections() {
		if fed[c.To] {
			continue
		}
		fed[c.To] = true
		src, dst := declared(c.From.Node), declared(c.To.Node)
		if src == nil || dst == nil || !src.HasOutput(c.From.Socket) || !dst.HasInput(c.To.Socket) {
			continue
		}
		producers[c.To.Node] = append(producers[c.To.Node], c.From.Node)
	}

	var roots, rest []graph.NodeID
	for _, n := range g.Nodes() {
		if nt := declared(n.ID); nt != nil && nt.IsSink() {
			roots = append(roots, n.ID)
		} else {
			rest = append(rest, n.ID)
		}
	}
	sinkRoots := len(roots)
	roots = append(roots, rest...)

	color := make(map[graph.NodeID]int)
	var found graph.NodeID

	var visit func(id graph.NodeID) bool
	visit = func(id graph.NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			found = id
			return true
		}
		color[id] = gray
		for _, p := range producers[id] {
			if visit(p) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for i, id := range roots {
		if color[id] != white || !visit(id) {
			continue
		}
		if i < sinkRoots {
			return []Diagnostic{{
				Node:     found,
				Message:  fmt.Sprintf("cycle detected: node %s depends on its own output", found),
				Severity: SeverityError,
			}}
		}
		return []Diagnostic{{
			Node:     found,
			Message:  fmt.Sprintf("cycle detected: node %s depends on its own output; the output node does not use it", found),
			Severity: SeverityWarning,
		}}
	}
	return nil
}
