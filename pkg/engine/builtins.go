package engine

import (
	"fmt"
	"regexp"
	"strings"

	v2 "github.com/deadsy/sdfx/vec/v2"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/chazu/shadegraph/pkg/graph"
	"github.com/chazu/shadegraph/pkg/registry"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites script source into a form zygomys reads:
//
//   - :keyword becomes the string literal "__kw_keyword", so keywords never
//     collide with user variables of the same name.
//   - kebab-case identifiers become snake_case (set-data -> set_data), since
//     zygomys parses a hyphen as subtraction.
//   - ; line comments become // comments.
//
// Double-quoted strings are copied through untouched.
func preprocessSource(source string) string {
	var out strings.Builder
	out.Grow(len(source) + len(source)/4)
	for i := 0; i < len(source); {
		c := source[i]
		switch {
		case c == '"':
			j := skipString(source, i)
			out.WriteString(source[i:j])
			i = j
		case c == ';':
			out.WriteString("//")
			for i < len(source) && source[i] == ';' {
				i++
			}
			j := i
			for j < len(source) && source[j] != '\n' {
				j++
			}
			out.WriteString(source[i:j])
			i = j
		case c == ':' && i+1 < len(source) && isAlpha(source[i+1]):
			j := i + 1
			for j < len(source) && (isWordChar(source[j]) || source[j] == '-') {
				j++
			}
			out.WriteString(`"` + kwPrefix + source[i+1:j] + `"`)
			i = j
		case c == '-' && i > 0 && i+1 < len(source) && isWordChar(source[i-1]) && isAlpha(source[i+1]):
			// A hyphen between identifier characters is part of the name,
			// not a minus sign.
			out.WriteByte('_')
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

// skipString returns the index just past the double-quoted literal that
// starts at i, honouring backslash escapes. An unterminated literal runs to
// the end of src.
func skipString(src string, i int) int {
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '"':
			return j + 1
		}
	}
	return len(src)
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordChar(c byte) bool {
	return isAlpha(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Node references
// ---------------------------------------------------------------------------

// sexpNodeRef wraps a graph.NodeID so it can be passed between builtins.
type sexpNodeRef struct {
	id graph.NodeID
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(noderef %s)", n.id)
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	order      []string // keywords in source order
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		if _, seen := result.kw[name]; !seen {
			result.order = append(result.order, name)
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i += 2
		} else {
			// Keyword at end with no value: a flag with nil.
			result.kw[name] = zygo.SexpNull
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toValue converts a scalar Sexp to the Go value stored in node data.
// Keywords become their bare names.
func toValue(s zygo.Sexp) (any, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return v.Val, nil
	case *zygo.SexpFloat:
		return v.Val, nil
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpStr:
		if name, ok := isKW(v); ok {
			return name, nil
		}
		return v.S, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, errors.Errorf("expected number, string or bool, got %T (%s)", s, s.SexpString(nil))
}

// toFloat64 extracts a float64 from a number or numeric string.
func toFloat64(s zygo.Sexp) (float64, error) {
	v, err := toValue(s)
	if err != nil {
		return 0, err
	}
	if _, isBool := v.(bool); isBool {
		return 0, errors.Errorf("expected number, got %v", v)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, errors.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
	}
	return f, nil
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_out) and plain strings ("out").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", errors.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if name, ok := isKW(str); ok {
		return name, nil
	}
	return str.S, nil
}

// toNodeID accepts a node reference or a node id given as string/keyword.
func toNodeID(s zygo.Sexp) (graph.NodeID, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref.id, nil
	}
	name, err := toKeywordString(s)
	if err != nil {
		return "", errors.Errorf("expected node reference or id, got %T (%s)", s, s.SexpString(nil))
	}
	return graph.NodeID(name), nil
}

// identPattern matches ids usable as shader identifiers.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the graph builtins into a zygomys environment.
// The builtins populate g during evaluation; node types come from reg.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, g *graph.Graph, reg *registry.Registry) {

	// -----------------------------------------------------------------------
	// (node :constant :id "c1" :x 40 :y 80 :value 0.5)
	// -----------------------------------------------------------------------
	env.AddFunction("node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		// The type comes first and is usually a bare keyword, so it is taken
		// before the remaining args are paired up as keyword/value options.
		if len(args) < 1 {
			return zygo.SexpNull, errors.New("node requires a node type")
		}
		typ, err := toKeywordString(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "node: type")
		}
		pa := parseArgs(args[1:])
		if len(pa.positional) > 0 {
			return zygo.SexpNull, errors.Errorf("node: unexpected argument %s", pa.positional[0].SexpString(nil))
		}
		nt, ok := reg.Lookup(typ)
		if !ok {
			return zygo.SexpNull, errors.Errorf("node: unknown node type %q", typ)
		}

		n := &graph.Node{Type: typ, Data: nt.NewData()}
		for _, key := range pa.order {
			v := pa.kw[key]
			switch key {
			case "id":
				id, err := toKeywordString(v)
				if err != nil {
					return zygo.SexpNull, errors.Wrap(err, "node: id")
				}
				if !identPattern.MatchString(id) {
					return zygo.SexpNull, errors.Errorf("node: id %q is not a valid identifier", id)
				}
				n.ID = graph.NodeID(id)
			case "x", "y":
				f, err := toFloat64(v)
				if err != nil {
					return zygo.SexpNull, errors.Wrapf(err, "node: %s", key)
				}
				if key == "x" {
					n.Position = v2.Vec{X: f, Y: n.Position.Y}
				} else {
					n.Position = v2.Vec{X: n.Position.X, Y: f}
				}
			default:
				val, err := toValue(v)
				if err != nil {
					return zygo.SexpNull, errors.Wrapf(err, "node: %s", key)
				}
				n.Data[key] = val
			}
		}
		if n.ID.IsZero() {
			n.ID = g.NextID(typ)
		}
		if err := g.AddNode(n); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "node")
		}
		return &sexpNodeRef{id: n.ID}, nil
	})

	// -----------------------------------------------------------------------
	// (connect in :u add :a)
	// -----------------------------------------------------------------------
	env.AddFunction("connect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 4 {
			return zygo.SexpNull, errors.Errorf("connect requires 4 arguments (from socket to socket), got %d", len(args))
		}
		var ep [2]graph.Endpoint
		for i := range ep {
			id, err := toNodeID(args[2*i])
			if err != nil {
				return zygo.SexpNull, errors.Wrap(err, "connect: node")
			}
			socket, err := toKeywordString(args[2*i+1])
			if err != nil {
				return zygo.SexpNull, errors.Wrap(err, "connect: socket")
			}
			ep[i] = graph.Endpoint{Node: id, Socket: socket}
		}
		// Endpoints are not checked: dangling connections are tolerated
		// downstream and reported by diagnostics.
		g.Connect(graph.Connection{From: ep[0], To: ep[1]})
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (disconnect add :a) or (disconnect add)
	// -----------------------------------------------------------------------
	env.AddFunction("disconnect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 || len(args) > 2 {
			return zygo.SexpNull, errors.Errorf("disconnect requires a node and an optional socket, got %d arguments", len(args))
		}
		id, err := toNodeID(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "disconnect: node")
		}
		var socket string
		if len(args) == 2 {
			if socket, err = toKeywordString(args[1]); err != nil {
				return zygo.SexpNull, errors.Wrap(err, "disconnect: socket")
			}
		}
		return &zygo.SexpInt{Val: int64(g.Disconnect(id, socket))}, nil
	})

	// -----------------------------------------------------------------------
	// (set-data c :value 2.5)
	//
	// Registered as "set_data"; the preprocessor rewrites set-data.
	// -----------------------------------------------------------------------
	env.AddFunction("set_data", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, errors.New("set-data requires exactly one node")
		}
		id, err := toNodeID(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "set-data: node")
		}
		patch := make(graph.Data, len(pa.order))
		for _, key := range pa.order {
			val, err := toValue(pa.kw[key])
			if err != nil {
				return zygo.SexpNull, errors.Wrapf(err, "set-data: %s", key)
			}
			patch[key] = val
		}
		if err := g.SetData(id, patch); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "set-data")
		}
		return pa.positional[0], nil
	})

	// -----------------------------------------------------------------------
	// (top add)
	// -----------------------------------------------------------------------
	env.AddFunction("top", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.New("top requires exactly one node")
		}
		id, err := toNodeID(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "top")
		}
		if err := g.SetTop(id); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "top")
		}
		return args[0], nil
	})
}
