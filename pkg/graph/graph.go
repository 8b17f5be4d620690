package graph

import (
	"fmt"
	"slices"

	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/pkg/errors"
)

// ErrNodeExists is returned by AddNode when the ID is already taken.
var ErrNodeExists = errors.New("node already exists")

// ErrNodeNotFound is returned by operations addressing an absent node.
var ErrNodeNotFound = errors.New("node not found")

// Graph is the mutable node set and connection list of one editing session.
// It is not safe for concurrent use; callers hand the compiler a Clone.
type Graph struct {
	order []NodeID
	nodes map[NodeID]*Node
	conns []Connection
	top   NodeID
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// AddNode inserts n at the end of the node order.
func (g *Graph) AddNode(n *Node) error {
	if n.ID.IsZero() {
		return errors.New("node id is empty")
	}
	if _, ok := g.nodes[n.ID]; ok {
		return errors.Wrapf(ErrNodeExists, "add %s", n.ID)
	}
	if n.Data == nil {
		n.Data = Data{}
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return nil
}

// NextID returns the first ID of the form {prefix}_{n}, n >= 1, that is not
// used in g.
func (g *Graph) NextID(prefix string) NodeID {
	for i := 1; ; i++ {
		id := NodeID(fmt.Sprintf("%s_%d", prefix, i))
		if _, ok := g.nodes[id]; !ok {
			return id
		}
	}
}

// Node returns the node with the given ID, or nil.
func (g *Graph) Node(id NodeID) *Node {
	return g.nodes[id]
}

// Has reports whether a node with the given ID exists.
func (g *Graph) Has(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodeCount returns the total number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.order)
}

// RemoveNode deletes the node and every connection touching it, and clears
// the top reference if it pointed at the node. It returns false when the
// node was already absent.
func (g *Graph) RemoveNode(id NodeID) bool {
	if _, ok := g.nodes[id]; !ok {
		return false
	}
	delete(g.nodes, id)
	g.order = slices.DeleteFunc(g.order, func(x NodeID) bool { return x == id })
	g.conns = slices.DeleteFunc(g.conns, func(c Connection) bool { return c.Touches(id) })
	if g.top == id {
		g.top = ""
	}
	return true
}

// SetData merges patch into the node's data.
func (g *Graph) SetData(id NodeID, patch Data) error {
	n, ok := g.nodes[id]
	if !ok {
		return errors.Wrapf(ErrNodeNotFound, "set data on %s", id)
	}
	n.Data = n.Data.Merge(patch)
	return nil
}

// Move sets the node's display position.
func (g *Graph) Move(id NodeID, pos v2.Vec) error {
	n, ok := g.nodes[id]
	if !ok {
		return errors.Wrapf(ErrNodeNotFound, "move %s", id)
	}
	n.Position = pos
	return nil
}

// Connect adds c, replacing any connection that already terminates at
// c.To. A replacement keeps the position of the connection it replaces.
// Endpoints are not checked against the node set.
func (g *Graph) Connect(c Connection) (replaced bool) {
	for i, existing := range g.conns {
		if existing.To == c.To {
			g.conns[i] = c
			return true
		}
	}
	g.conns = append(g.conns, c)
	return false
}

// Disconnect removes every connection touching the socket (id, socket) on
// either end. An empty socket removes every connection touching the node.
// It returns the number of connections removed.
func (g *Graph) Disconnect(id NodeID, socket string) int {
	before := len(g.conns)
	ep := Endpoint{Node: id, Socket: socket}
	g.conns = slices.DeleteFunc(g.conns, func(c Connection) bool {
		if socket == "" {
			return c.Touches(id)
		}
		return c.From == ep || c.To == ep
	})
	return before - len(g.conns)
}

// Connections returns a copy of the connection list.
func (g *Graph) Connections() []Connection {
	return slices.Clone(g.conns)
}

// ConnectionInto returns the first connection terminating at ep.
func (g *Graph) ConnectionInto(ep Endpoint) (Connection, bool) {
	for _, c := range g.conns {
		if c.To == ep {
			return c, true
		}
	}
	return Connection{}, false
}

// SetTop marks a node as the currently selected (front-most) node.
func (g *Graph) SetTop(id NodeID) error {
	if !id.IsZero() && !g.Has(id) {
		return errors.Wrapf(ErrNodeNotFound, "select %s", id)
	}
	g.top = id
	return nil
}

// Top returns the selected node ID, or the zero ID.
func (g *Graph) Top() NodeID {
	return g.top
}

// Clone returns a deep copy of g, suitable as an immutable snapshot.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		order: slices.Clone(g.order),
		nodes: make(map[NodeID]*Node, len(g.nodes)),
		conns: slices.Clone(g.conns),
		top:   g.top,
	}
	for id, n := range g.nodes {
		c.nodes[id] = n.clone()
	}
	return c
}
