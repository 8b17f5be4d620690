package registry

import (
	"fmt"
	"math"

	"github.com/spf13/cast"

	"github.com/chazu/shadegraph/pkg/graph"
)

// DefaultConstant is the value a constant node emits when its "value"
// parameter is missing or unusable.
const DefaultConstant = 1.0

func number(names ...string) []graph.Socket {
	out := make([]graph.Socket, len(names))
	for i, n := range names {
		out[i] = graph.Socket{Name: n, Kind: graph.SocketNumber}
	}
	return out
}

func binary(typ, op string) NodeType {
	return NodeType{
		Type:    typ,
		Inputs:  number("a", "b"),
		Outputs: number("out"),
		Compute: func(args Args, _ *graph.Node) Exprs {
			return Exprs{"out": fmt.Sprintf("(%s %s %s)", args["a"], op, args["b"])}
		},
	}
}

// RegisterBuiltins adds the built-in node types to b in listing order.
func RegisterBuiltins(b *Builder) {
	b.MustRegister(NodeType{
		Type:    TypeInput,
		Outputs: number("u", "v"),
		Compute: func(Args, *graph.Node) Exprs {
			return Exprs{"u": "u", "v": "v"}
		},
	})
	b.MustRegister(NodeType{
		Type:   TypeOutput,
		Inputs: number("r", "g", "b", "a"),
		Compute: func(args Args, _ *graph.Node) Exprs {
			return Exprs{SinkResult: fmt.Sprintf("vec4(%s,%s,%s,%s)", args["r"], args["g"], args["b"], args["a"])}
		},
	})
	b.MustRegister(binary("add", "+"))
	b.MustRegister(binary("multiply", "*"))
	b.MustRegister(binary("divide", "/"))
	b.MustRegister(binary("modulo", "%"))
	b.MustRegister(NodeType{
		Type:    "constant",
		Outputs: number("out"),
		Compute: func(_ Args, n *graph.Node) Exprs {
			return Exprs{"out": FormatNumber(ConstantValue(n.Data))}
		},
		Defaults: func() graph.Data {
			return graph.Data{"value": DefaultConstant}
		},
	})
}

// Builtins returns a registry holding only the built-in node types.
func Builtins() *Registry {
	b := NewBuilder()
	RegisterBuiltins(b)
	return b.Build()
}

// ConstantValue reads the "value" parameter of a constant node. Missing,
// non-numeric and non-finite values yield DefaultConstant.
func ConstantValue(d graph.Data) float64 {
	raw, ok := d["value"]
	if !ok || raw == nil {
		return DefaultConstant
	}
	if _, isBool := raw.(bool); isBool {
		return DefaultConstant
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return DefaultConstant
	}
	return v
}

// FormatNumber renders v as a shader float literal with four decimals.
func FormatNumber(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
