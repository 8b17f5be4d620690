// Package editor holds one interactive editing session: the graph being
// edited, the connection gesture in progress, and the most recent valid
// shader. Every mutation recompiles the graph.
package editor

import (
	"sync"

	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/pkg/errors"

	"github.com/chazu/shadegraph/pkg/compiler"
	"github.com/chazu/shadegraph/pkg/graph"
	"github.com/chazu/shadegraph/pkg/logging"
	"github.com/chazu/shadegraph/pkg/registry"
	"github.com/chazu/shadegraph/pkg/resolver"
	"github.com/chazu/shadegraph/pkg/shader"
)

var (
	// ErrSinkProtected is returned when removing the output node.
	ErrSinkProtected = errors.New("the output node cannot be removed")
	// ErrNotAddable is returned by AddNode for unknown or reserved types.
	ErrNotAddable = errors.New("node type cannot be added")
	// ErrNoDrag is returned by EndDrag when no gesture is in progress.
	ErrNoDrag = errors.New("no connection drag in progress")
)

// Result describes one recompilation.
type Result struct {
	Program  *compiler.Program
	Source   string
	Artifact *shader.Artifact // set when the session validates shaders
	Err      error
}

// OK reports whether the compilation succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Option configures a Session.
type Option func(*Session)

// WithDefaultGraph seeds the starter graph: an input, an add and the
// output node, unconnected.
func WithDefaultGraph() Option {
	return func(s *Session) {
		for _, n := range []*graph.Node{
			{ID: "input_1", Type: registry.TypeInput, Position: v2.Vec{X: 50, Y: 100}},
			{ID: "add_1", Type: "add", Position: v2.Vec{X: 250, Y: 150}},
			{ID: "output_1", Type: registry.TypeOutput, Position: v2.Vec{X: 450, Y: 200}},
		} {
			if nt, ok := s.reg.Lookup(n.Type); ok {
				n.Data = nt.NewData()
			}
			// Fresh graph, ids are unique.
			_ = s.g.AddNode(n)
		}
	}
}

// WithGraph starts the session from a copy of g.
func WithGraph(g *graph.Graph) Option {
	return func(s *Session) {
		s.g = g.Clone()
	}
}

// WithSnapThreshold overrides the resolver's snap distance.
func WithSnapThreshold(d float64) Option {
	return func(s *Session) {
		s.threshold = d
	}
}

// WithValidator compiles every successful program to SPIR-V with sc. A
// module the validator rejects counts as a failed compilation.
func WithValidator(sc *shader.Compiler) Option {
	return func(s *Session) {
		s.validator = sc
	}
}

// Session is a single-writer editing session. All methods are safe for
// concurrent use.
//
// Subscribers are called with mu released, so they may read the session,
// but they run under pubMu and must not mutate it. pubMu makes the
// recompile and its delivery one step, so subscribers see results in the
// order the mutations were applied.
type Session struct {
	pubMu sync.Mutex // held from mutation through publish; taken before mu
	mu    sync.Mutex

	reg       *registry.Registry
	comp      *compiler.Compiler
	validator *shader.Compiler
	g         *graph.Graph

	anchors   *resolver.Anchors
	res       *resolver.Resolver
	drag      *resolver.Drag
	threshold float64

	last    Result // most recent compilation
	good    Result // most recent successful compilation
	hasGood bool

	subs []func(Result)
}

// NewSession creates a session over reg and compiles the initial graph.
func NewSession(reg *registry.Registry, opts ...Option) *Session {
	s := &Session{
		reg:  reg,
		comp: compiler.New(reg),
		g:    graph.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.anchors = resolver.NewAnchors()
	s.res = resolver.New(s.anchors, s.threshold)
	s.drag = resolver.NewDrag(s.res)
	s.recompile()
	return s
}

// Registry returns the session's node type catalog.
func (s *Session) Registry() *registry.Registry { return s.reg }

// OnCompile registers fn to receive every compilation result, in the order
// the compilations happened. fn must not call mutating methods.
func (s *Session) OnCompile(fn func(Result)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Graph returns a snapshot of the edited graph.
func (s *Session) Graph() *graph.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g.Clone()
}

// Shader returns the source of the most recent valid program and whether
// any compilation has succeeded yet.
func (s *Session) Shader() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.good.Source, s.hasGood
}

// Program returns the most recent valid program, or nil.
func (s *Session) Program() *compiler.Program {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.good.Program
}

// Artifact returns the most recent validated module, or nil.
func (s *Session) Artifact() *shader.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.good.Artifact
}

// LastError returns the error of the most recent compilation, or nil if it
// succeeded.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Err
}

// Diagnostics reports every problem in the current graph.
func (s *Session) Diagnostics() []compiler.Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return compiler.Check(s.reg, s.g)
}

// Recompile compiles the current graph again and returns the result.
func (s *Session) Recompile() Result {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Lock()
	r := s.recompile()
	s.mu.Unlock()
	s.publish(r)
	return r
}

// recompile compiles a snapshot of the graph. Callers hold mu.
func (s *Session) recompile() Result {
	var r Result
	r.Program, r.Err = s.comp.Compile(s.g.Clone())
	if r.Err == nil {
		r.Source = r.Program.Source()
		if s.validator != nil {
			r.Artifact, r.Err = s.validator.Compile(r.Program)
		}
	}
	if r.Err != nil {
		logging.Logger().Warn("compile failed, keeping previous shader", "err", r.Err)
		r.Program, r.Source, r.Artifact = nil, "", nil
	} else {
		s.good = r
		s.hasGood = true
	}
	s.last = r
	return r
}

func (s *Session) publish(r Result) {
	s.mu.Lock()
	subs := make([]func(Result), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(r)
	}
}

// mutate runs fn under the lock and recompiles when fn reports a change.
func (s *Session) mutate(fn func() (bool, error)) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Lock()
	changed, err := fn()
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}
	r := s.recompile()
	s.mu.Unlock()
	s.publish(r)
	return nil
}
