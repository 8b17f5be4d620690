package graph

import (
	"maps"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// SocketKind enumerates the data kinds a socket can carry.
type SocketKind int

const (
	SocketNumber SocketKind = iota // scalar shader value
)

func (k SocketKind) String() string {
	switch k {
	case SocketNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Socket is a named slot on a node type.
type Socket struct {
	Name string     `json:"name"`
	Kind SocketKind `json:"kind"`
}

// Direction tells whether a socket receives or produces a value.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// NodeID identifies a node instance within one graph. IDs generated by
// NextID are valid shader identifiers.
type NodeID string

// IsZero reports whether the ID is empty.
func (id NodeID) IsZero() bool { return id == "" }

// Data holds instance-specific parameters, e.g. {"value": 5} for a constant.
type Data map[string]any

// Clone returns a shallow copy of d. A nil Data clones to an empty map.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	maps.Copy(out, d)
	return out
}

// Merge returns a copy of d with every key of patch applied on top.
// A nil value in patch deletes the key.
func (d Data) Merge(patch Data) Data {
	out := d.Clone()
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// Node is one instance of a registered node type.
type Node struct {
	ID       NodeID `json:"id"`
	Type     string `json:"type"`
	Position v2.Vec `json:"position"` // display only
	Data     Data   `json:"data,omitempty"`
}

func (n *Node) clone() *Node {
	c := *n
	c.Data = n.Data.Clone()
	return &c
}

// Endpoint addresses one socket of one node.
type Endpoint struct {
	Node   NodeID `json:"nodeId"`
	Socket string `json:"socket"`
}

func (e Endpoint) String() string {
	return string(e.Node) + "." + e.Socket
}

// Connection is a directed edge from an output socket to an input socket.
type Connection struct {
	From Endpoint `json:"from"`
	To   Endpoint `json:"to"`
}

// Touches reports whether either end of c is the given node.
func (c Connection) Touches(id NodeID) bool {
	return c.From.Node == id || c.To.Node == id
}
