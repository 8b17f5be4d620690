// Package registry catalogs the node types a graph may contain. A Registry
// is assembled once with a Builder and is read-only afterwards, so it can be
// shared by the compiler, the editor and the script engine.
package registry

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/chazu/shadegraph/pkg/graph"
)

// Reserved type names. The sink's compiled expression is the program result.
const (
	TypeInput  = "input"
	TypeOutput = "output"
)

// SinkResult is the single key a sink type's Compute must return.
const SinkResult = "rgba"

// Args maps each input socket name to the expression feeding it.
type Args map[string]string

// Exprs maps each output socket name to its generated expression.
type Exprs map[string]string

// ComputeFunc generates code for one node instance. It must depend only on
// its arguments.
type ComputeFunc func(args Args, n *graph.Node) Exprs

// NodeType is the static interface and code generator of one node type.
type NodeType struct {
	Type     string
	Inputs   []graph.Socket
	Outputs  []graph.Socket
	Compute  ComputeFunc
	Defaults func() graph.Data // optional; data for newly added instances
}

// IsSink reports whether nt is the program sink.
func (nt *NodeType) IsSink() bool {
	return nt.Type == TypeOutput
}

// HasOutput reports whether nt declares an output socket with that name.
func (nt *NodeType) HasOutput(name string) bool {
	return slices.ContainsFunc(nt.Outputs, func(s graph.Socket) bool { return s.Name == name })
}

// HasInput reports whether nt declares an input socket with that name.
func (nt *NodeType) HasInput(name string) bool {
	return slices.ContainsFunc(nt.Inputs, func(s graph.Socket) bool { return s.Name == name })
}

// NewData returns fresh instance data for nt.
func (nt *NodeType) NewData() graph.Data {
	if nt.Defaults == nil {
		return graph.Data{}
	}
	return nt.Defaults().Clone()
}

// Registry is an immutable catalog of node types.
type Registry struct {
	types map[string]*NodeType
	order []string
}

// Lookup returns the node type registered under name.
func (r *Registry) Lookup(name string) (*NodeType, bool) {
	nt, ok := r.types[name]
	return nt, ok
}

// Types returns every registered type name in registration order.
func (r *Registry) Types() []string {
	return slices.Clone(r.order)
}

// Addable returns the type names an editor may offer in an "add node"
// listing: every type except the structurally singular terminals.
func (r *Registry) Addable() []string {
	out := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if name == TypeInput || name == TypeOutput {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Builder collects node types before freezing them into a Registry.
type Builder struct {
	types map[string]*NodeType
	order []string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{types: make(map[string]*NodeType)}
}

// Register inserts nt, overwriting any earlier type with the same name. The
// earlier type's listing position is kept. Register validates the type's
// shape once so compilation never has to.
func (b *Builder) Register(nt NodeType) error {
	if err := validate(&nt); err != nil {
		return err
	}
	if _, ok := b.types[nt.Type]; !ok {
		b.order = append(b.order, nt.Type)
	}
	b.types[nt.Type] = &nt
	return nil
}

// MustRegister is like Register but panics on an invalid type.
func (b *Builder) MustRegister(nt NodeType) {
	if err := b.Register(nt); err != nil {
		panic(err)
	}
}

// Build returns a Registry holding a snapshot of the registered types.
// The Builder may keep being used without affecting the result.
func (b *Builder) Build() *Registry {
	r := &Registry{
		types: make(map[string]*NodeType, len(b.types)),
		order: slices.Clone(b.order),
	}
	for name, nt := range b.types {
		c := *nt
		c.Inputs = slices.Clone(nt.Inputs)
		c.Outputs = slices.Clone(nt.Outputs)
		r.types[name] = &c
	}
	return r
}

// ErrInvalidType wraps every registration failure.
var ErrInvalidType = errors.New("invalid node type")

func validate(nt *NodeType) error {
	if nt.Type == "" {
		return errors.Wrap(ErrInvalidType, "empty type name")
	}
	if nt.Compute == nil {
		return errors.Wrapf(ErrInvalidType, "%s: nil compute", nt.Type)
	}
	if err := uniqueSockets(nt.Type, "input", nt.Inputs); err != nil {
		return err
	}
	if err := uniqueSockets(nt.Type, "output", nt.Outputs); err != nil {
		return err
	}
	if nt.IsSink() && len(nt.Outputs) > 0 {
		return errors.Wrapf(ErrInvalidType, "%s: sink type declares outputs", nt.Type)
	}

	// Run compute once with placeholder expressions and check the result
	// keys against the declared outputs.
	args := make(Args, len(nt.Inputs))
	for _, s := range nt.Inputs {
		args[s.Name] = s.Name
	}
	sample := &graph.Node{ID: "sample", Type: nt.Type, Data: nt.NewData()}
	got := nt.Compute(args, sample)

	want := make([]string, 0, len(nt.Outputs))
	for _, s := range nt.Outputs {
		want = append(want, s.Name)
	}
	if nt.IsSink() {
		want = []string{SinkResult}
	}
	if len(got) != len(want) {
		return errors.Wrapf(ErrInvalidType, "%s: compute returned %d expressions, want %d", nt.Type, len(got), len(want))
	}
	for _, name := range want {
		if _, ok := got[name]; !ok {
			return errors.Wrapf(ErrInvalidType, "%s: compute result missing %q", nt.Type, name)
		}
	}
	return nil
}

func uniqueSockets(typ, side string, sockets []graph.Socket) error {
	seen := make(map[string]bool, len(sockets))
	for _, s := range sockets {
		if s.Name == "" {
			return errors.Wrapf(ErrInvalidType, "%s: empty %s socket name", typ, side)
		}
		if seen[s.Name] {
			return errors.Wrapf(ErrInvalidType, "%s: duplicate %s socket %q", typ, side, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}
