package registry

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/shadegraph/pkg/graph"
)

func TestBuiltinsListing(t *testing.T) {
	r := Builtins()

	assert.Equal(t, []string{"input", "output", "add", "multiply", "divide", "modulo", "constant"}, r.Types())
	assert.Equal(t, []string{"add", "multiply", "divide", "modulo", "constant"}, r.Addable())
}

func TestBuiltinCompute(t *testing.T) {
	r := Builtins()
	ab := Args{"a": "x", "b": "y"}

	tests := []struct {
		typ  string
		args Args
		data graph.Data
		want Exprs
	}{
		{"input", nil, nil, Exprs{"u": "u", "v": "v"}},
		{"output", Args{"r": "1", "g": "2", "b": "3", "a": "4"}, nil, Exprs{"rgba": "vec4(1,2,3,4)"}},
		{"add", ab, nil, Exprs{"out": "(x + y)"}},
		{"multiply", ab, nil, Exprs{"out": "(x * y)"}},
		{"divide", ab, nil, Exprs{"out": "(x / y)"}},
		{"modulo", ab, nil, Exprs{"out": "(x % y)"}},
		{"constant", nil, graph.Data{"value": 5}, Exprs{"out": "5.0000"}},
		{"constant", nil, graph.Data{}, Exprs{"out": "1.0000"}},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			nt, ok := r.Lookup(tt.typ)
			require.True(t, ok)
			got := nt.Compute(tt.args, &graph.Node{ID: "n", Type: tt.typ, Data: tt.data})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConstantValue(t *testing.T) {
	tests := []struct {
		name string
		data graph.Data
		want string
	}{
		{"unset", graph.Data{}, "1.0000"},
		{"nil", graph.Data{"value": nil}, "1.0000"},
		{"int", graph.Data{"value": 5}, "5.0000"},
		{"float", graph.Data{"value": 0.123456}, "0.1235"},
		{"negative", graph.Data{"value": -2.5}, "-2.5000"},
		{"numeric string", graph.Data{"value": "2.5"}, "2.5000"},
		{"garbage string", graph.Data{"value": "abc"}, "1.0000"},
		{"bool", graph.Data{"value": true}, "1.0000"},
		{"NaN string", graph.Data{"value": "NaN"}, "1.0000"},
		{"inf string", graph.Data{"value": "+Inf"}, "1.0000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNumber(ConstantValue(tt.data)))
		})
	}
}

func TestRegisterOverwriteKeepsPosition(t *testing.T) {
	b := NewBuilder()
	RegisterBuiltins(b)
	require.NoError(t, b.Register(NodeType{
		Type:    "add",
		Inputs:  number("a", "b"),
		Outputs: number("out"),
		Compute: func(args Args, _ *graph.Node) Exprs {
			return Exprs{"out": "add(" + args["a"] + ", " + args["b"] + ")"}
		},
	}))
	r := b.Build()

	nt, ok := r.Lookup("add")
	require.True(t, ok)
	assert.Equal(t, Exprs{"out": "add(p, q)"}, nt.Compute(Args{"a": "p", "b": "q"}, &graph.Node{}))
	assert.Equal(t, "add", r.Types()[2])
}

func TestBuildSnapshotsBuilder(t *testing.T) {
	b := NewBuilder()
	RegisterBuiltins(b)
	r := b.Build()
	b.MustRegister(binary("subtract", "-"))

	_, ok := r.Lookup("subtract")
	assert.False(t, ok, "registry must not see types registered after Build")
	assert.Len(t, r.Types(), 7)
}

func TestRegisterRejectsBadShapes(t *testing.T) {
	ok := func(Args, *graph.Node) Exprs { return Exprs{"out": "0"} }

	tests := []struct {
		name string
		nt   NodeType
	}{
		{"empty name", NodeType{Outputs: number("out"), Compute: ok}},
		{"nil compute", NodeType{Type: "x", Outputs: number("out")}},
		{"duplicate input", NodeType{Type: "x", Inputs: number("a", "a"), Outputs: number("out"), Compute: ok}},
		{"empty output name", NodeType{Type: "x", Outputs: number(""), Compute: ok}},
		{"missing output", NodeType{Type: "x", Outputs: number("out", "extra"), Compute: ok}},
		{"extra output", NodeType{Type: "x", Compute: ok}},
		{"sink with outputs", NodeType{Type: TypeOutput, Outputs: number("out"), Compute: ok}},
		{"sink without rgba", NodeType{Type: TypeOutput, Inputs: number("r"), Compute: ok}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBuilder().Register(tt.nt)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidType), "got %v", err)
		})
	}
}

func TestNewDataIsFresh(t *testing.T) {
	r := Builtins()
	nt, _ := r.Lookup("constant")

	d := nt.NewData()
	d["value"] = 9.0
	assert.Equal(t, DefaultConstant, nt.NewData()["value"])

	add, _ := r.Lookup("add")
	assert.Empty(t, add.NewData())
	assert.True(t, add.HasInput("a"))
	assert.True(t, add.HasOutput("out"))
	assert.False(t, add.HasOutput("a"))
}
