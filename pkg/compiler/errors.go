package compiler

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/chazu/shadegraph/pkg/graph"
)

// Fatal compile conditions. Test with errors.Is.
var (
	ErrUnknownNodeType = errors.New("unknown node type")
	ErrMissingSink     = errors.New("no output node")
	ErrMultipleSinks   = errors.New("more than one output node")
	ErrCycle           = errors.New("cycle detected")
	ErrComputePanic    = errors.New("node compute panicked")
)

// CompileError carries the node context of a failed compilation.
type CompileError struct {
	Kind  error          // one of the Err* sentinels
	Node  graph.NodeID   // offending node, zero for graph-level failures
	Type  string         // node type, for ErrUnknownNodeType and ErrComputePanic
	Nodes []graph.NodeID // sinks for ErrMultipleSinks, the cycle path for ErrCycle
	Panic any            // recovered value, for ErrComputePanic
}

func (e *CompileError) Error() string {
	switch e.Kind {
	case ErrUnknownNodeType:
		return fmt.Sprintf("node %s: %s %q", e.Node, e.Kind, e.Type)
	case ErrMultipleSinks:
		return fmt.Sprintf("%s: %s", e.Kind, joinIDs(e.Nodes, ", "))
	case ErrCycle:
		return fmt.Sprintf("%s: %s", e.Kind, joinIDs(e.Nodes, " -> "))
	case ErrComputePanic:
		if e.Node.IsZero() {
			return fmt.Sprintf("%s: %v", e.Kind, e.Panic)
		}
		return fmt.Sprintf("node %s: %s: %v", e.Node, e.Kind, e.Panic)
	default:
		return e.Kind.Error()
	}
}

// Unwrap lets errors.Is match the sentinel.
func (e *CompileError) Unwrap() error { return e.Kind }

func joinIDs(ids []graph.NodeID, sep string) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	return strings.Join(s, sep)
}
