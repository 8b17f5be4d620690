package main

import (
	"context"
	"sync"

	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/chazu/shadegraph/pkg/compiler"
	"github.com/chazu/shadegraph/pkg/config"
	"github.com/chazu/shadegraph/pkg/editor"
	"github.com/chazu/shadegraph/pkg/engine"
	"github.com/chazu/shadegraph/pkg/graph"
	"github.com/chazu/shadegraph/pkg/logging"
	"github.com/chazu/shadegraph/pkg/registry"
	"github.com/chazu/shadegraph/pkg/shader"
)

// CompiledEvent is emitted to the frontend after every recompilation.
const CompiledEvent = "shader:compiled"

// App is the Wails backend. It exposes methods to the frontend via bindings.
type App struct {
	ctx    context.Context
	cfg    config.Config
	reg    *registry.Registry
	engine *engine.Engine

	mu      sync.RWMutex
	session *editor.Session // replaced by Evaluate

	// emit forwards events to the frontend. Nil until the desktop runtime
	// is up.
	emit func(ctx context.Context, name string, data ...any)
}

// NodeData is the JSON-serializable node format sent to the frontend.
type NodeData struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	X    float64        `json:"x"`
	Y    float64        `json:"y"`
	Data map[string]any `json:"data"`
}

// EndpointData addresses one socket.
type EndpointData struct {
	NodeID string `json:"nodeId"`
	Socket string `json:"socket"`
}

// ConnectionData is one edge, output to input.
type ConnectionData struct {
	From EndpointData `json:"from"`
	To   EndpointData `json:"to"`
}

// DiagnosticData is a JSON-serializable graph diagnostic.
type DiagnosticData struct {
	NodeID   string `json:"nodeId,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// CompileData is the state of the shader after the latest edit.
type CompileData struct {
	Shader string `json:"shader"` // last valid program
	Error  string `json:"error"`  // empty when the latest compile succeeded
}

// GraphState is the full editor state returned to the frontend.
type GraphState struct {
	Nodes       []NodeData       `json:"nodes"`
	Connections []ConnectionData `json:"connections"`
	Top         string           `json:"top"`
	Compile     CompileData      `json:"compile"`
	Diagnostics []DiagnosticData `json:"diagnostics"`
	Error       string           `json:"error"` // rejected edit
}

// NodeTypeData describes one node type for the palette.
type NodeTypeData struct {
	Type    string   `json:"type"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
	Addable bool     `json:"addable"`
}

// GhostData is the provisional connection line during a drag.
type GhostData struct {
	Active  bool       `json:"active"`
	Start   [2]float64 `json:"start"`
	End     [2]float64 `json:"end"`
	Snapped bool       `json:"snapped"`
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is returned when a graph script replaces the edited graph.
type EvalResult struct {
	State  GraphState      `json:"state"`
	Errors []EvalErrorData `json:"errors"`
}

// NewApp creates an App over the built-in node types, seeded with the
// starter graph.
func NewApp(cfg config.Config) *App {
	reg := registry.Builtins()
	a := &App{
		cfg:    cfg,
		reg:    reg,
		engine: engine.NewEngine(reg, engine.WithTimeout(cfg.EvalTimeout)),
	}
	a.session = a.newSession(editor.WithDefaultGraph())
	return a
}

// startup is called by Wails on app startup. The context is saved
// so we can call Wails runtime methods later.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

func (a *App) sess() *editor.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

func (a *App) newSession(opts ...editor.Option) *editor.Session {
	opts = append(opts, editor.WithSnapThreshold(a.cfg.SnapThreshold))
	s := editor.NewSession(a.reg, opts...)
	s.OnCompile(func(editor.Result) {
		if a.emit == nil || a.ctx == nil {
			return
		}
		a.emit(a.ctx, CompiledEvent, a.compileData())
	})
	return s
}

// NodeTypes lists every registered node type in registration order.
func (a *App) NodeTypes() []NodeTypeData {
	addable := make(map[string]bool)
	for _, t := range a.reg.Addable() {
		addable[t] = true
	}
	out := []NodeTypeData{}
	for _, name := range a.reg.Types() {
		nt, _ := a.reg.Lookup(name)
		out = append(out, NodeTypeData{
			Type:    name,
			Inputs:  socketNames(nt.Inputs),
			Outputs: socketNames(nt.Outputs),
			Addable: addable[name],
		})
	}
	return out
}

// State returns the current graph and shader.
func (a *App) State() GraphState {
	return a.state(nil)
}

// Shader returns the WGSL module of the last valid program.
func (a *App) Shader() string {
	p := a.sess().Program()
	if p == nil {
		return ""
	}
	return shader.Module(p, a.cfg.Shader)
}

// AddNode adds a node of the given type at (x, y).
func (a *App) AddNode(typ string, x, y float64) GraphState {
	_, err := a.sess().AddNode(typ, v2.Vec{X: x, Y: y})
	return a.state(err)
}

// RemoveNode deletes a node and its connections.
func (a *App) RemoveNode(id string) GraphState {
	return a.state(a.sess().RemoveNode(graph.NodeID(id)))
}

// SetNodeData merges data into a node's parameters.
func (a *App) SetNodeData(id string, data map[string]any) GraphState {
	return a.state(a.sess().SetNodeData(graph.NodeID(id), data))
}

// MoveNode repositions a node.
func (a *App) MoveNode(id string, x, y float64) GraphState {
	return a.state(a.sess().MoveNode(graph.NodeID(id), v2.Vec{X: x, Y: y}))
}

// Connect links an output socket to an input socket.
func (a *App) Connect(from, to EndpointData) GraphState {
	return a.state(a.sess().Connect(from.endpoint(), to.endpoint()))
}

// Disconnect removes the connections touching a socket, or every
// connection of the node when socket is empty.
func (a *App) Disconnect(id, socket string) GraphState {
	_, err := a.sess().Disconnect(graph.NodeID(id), socket)
	return a.state(err)
}

// SetTop selects a node. An empty id clears the selection.
func (a *App) SetTop(id string) GraphState {
	return a.state(a.sess().SetTop(graph.NodeID(id)))
}

// MeasureSocket records where the frontend drew a socket.
func (a *App) MeasureSocket(ep EndpointData, output bool, x, y float64) {
	a.sess().MeasureSocket(ep.endpoint(), direction(output), v2.Vec{X: x, Y: y})
}

// BeginDrag starts dragging a connection from a socket.
func (a *App) BeginDrag(ep EndpointData, output bool, x, y float64) GhostData {
	if err := a.sess().BeginDrag(ep.endpoint(), direction(output), v2.Vec{X: x, Y: y}); err != nil {
		logging.Logger().Warn("drag rejected", "socket", ep.endpoint(), "err", err)
	}
	return a.ghost()
}

// DragTo moves the dragged connection end.
func (a *App) DragTo(x, y float64) GhostData {
	a.sess().DragTo(v2.Vec{X: x, Y: y})
	return a.ghost()
}

// EndDrag drops the dragged connection, committing it when it snapped to
// a compatible socket.
func (a *App) EndDrag(x, y float64) GraphState {
	_, _, err := a.sess().EndDrag(v2.Vec{X: x, Y: y})
	return a.state(err)
}

// CancelDrag abandons the drag in progress.
func (a *App) CancelDrag() {
	a.sess().CancelDrag()
}

// Evaluate runs a graph script and, when it succeeds, replaces the edited
// graph with the one it built.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{Errors: []EvalErrorData{}}

	g, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		logging.Logger().Error("evaluate failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		result.State = a.State()
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		result.State = a.State()
		return result
	}

	s := a.newSession(editor.WithGraph(g))
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
	result.State = a.State()
	return result
}

func (a *App) state(err error) GraphState {
	g := a.sess().Graph()
	st := GraphState{
		Nodes:       []NodeData{},
		Connections: []ConnectionData{},
		Top:         string(g.Top()),
		Compile:     a.compileData(),
		Diagnostics: []DiagnosticData{},
	}
	for _, n := range g.Nodes() {
		data := map[string]any(n.Data.Clone())
		if data == nil {
			data = map[string]any{}
		}
		st.Nodes = append(st.Nodes, NodeData{
			ID:   string(n.ID),
			Type: n.Type,
			X:    n.Position.X,
			Y:    n.Position.Y,
			Data: data,
		})
	}
	for _, c := range g.Connections() {
		st.Connections = append(st.Connections, ConnectionData{
			From: endpointData(c.From),
			To:   endpointData(c.To),
		})
	}
	for _, d := range compiler.Check(a.reg, g) {
		st.Diagnostics = append(st.Diagnostics, DiagnosticData{
			NodeID:   string(d.Node),
			Message:  d.Message,
			Severity: d.Severity.String(),
		})
	}
	if err != nil {
		logging.Logger().Warn("edit rejected", "err", err)
		st.Error = err.Error()
	}
	return st
}

func (a *App) compileData() CompileData {
	src, _ := a.sess().Shader()
	cd := CompileData{Shader: src}
	if err := a.sess().LastError(); err != nil {
		cd.Error = err.Error()
	}
	return cd
}

func (a *App) ghost() GhostData {
	g, ok := a.sess().Ghost()
	if !ok {
		return GhostData{}
	}
	return GhostData{
		Active:  true,
		Start:   [2]float64{g.Start.X, g.Start.Y},
		End:     [2]float64{g.End.X, g.End.Y},
		Snapped: g.Snapped,
	}
}

func (e EndpointData) endpoint() graph.Endpoint {
	return graph.Endpoint{Node: graph.NodeID(e.NodeID), Socket: e.Socket}
}

func endpointData(ep graph.Endpoint) EndpointData {
	return EndpointData{NodeID: string(ep.Node), Socket: ep.Socket}
}

func direction(output bool) graph.Direction {
	if output {
		return graph.Output
	}
	return graph.Input
}

func socketNames(ss []graph.Socket) []string {
	names := make([]string, len(ss))
	for i, s := range ss {
		names[i] = s.Name
	}
	return names
}
