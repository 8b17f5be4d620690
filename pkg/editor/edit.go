package editor

import (
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/pkg/errors"

	"github.com/chazu/shadegraph/pkg/graph"
)

// AddNode adds a node of type typ with the type's default data and returns
// its fresh id. The output type cannot be added.
func (s *Session) AddNode(typ string, pos v2.Vec) (graph.NodeID, error) {
	var id graph.NodeID
	err := s.mutate(func() (bool, error) {
		nt, ok := s.reg.Lookup(typ)
		if !ok || nt.IsSink() {
			return false, errors.Wrapf(ErrNotAddable, "%q", typ)
		}
		id = s.g.NextID(typ)
		if err := s.g.AddNode(&graph.Node{ID: id, Type: typ, Position: pos, Data: nt.NewData()}); err != nil {
			return false, err
		}
		return true, nil
	})
	return id, err
}

// RemoveNode deletes a node and every connection touching it. Removing a
// missing node is a no-op.
func (s *Session) RemoveNode(id graph.NodeID) error {
	return s.mutate(func() (bool, error) {
		n := s.g.Node(id)
		if n == nil {
			return false, nil
		}
		if nt, ok := s.reg.Lookup(n.Type); ok && nt.IsSink() {
			return false, errors.Wrapf(ErrSinkProtected, "node %s", id)
		}
		s.anchors.Forget(id)
		if src, _ := s.drag.Source(); s.drag.Active() && src.Node == id {
			s.drag.Cancel()
		}
		return s.g.RemoveNode(id), nil
	})
}

// SetNodeData merges patch into a node's data.
func (s *Session) SetNodeData(id graph.NodeID, patch graph.Data) error {
	return s.mutate(func() (bool, error) {
		return true, s.g.SetData(id, patch)
	})
}

// MoveNode repositions a node. Position does not affect the program, so no
// recompilation happens.
func (s *Session) MoveNode(id graph.NodeID, pos v2.Vec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g.Move(id, pos)
}

// Connect links an output socket to an input socket, replacing any
// existing connection into the input.
func (s *Session) Connect(from, to graph.Endpoint) error {
	return s.mutate(func() (bool, error) {
		if err := s.checkEndpoint(from, graph.Output); err != nil {
			return false, err
		}
		if err := s.checkEndpoint(to, graph.Input); err != nil {
			return false, err
		}
		s.g.Connect(graph.Connection{From: from, To: to})
		return true, nil
	})
}

// Disconnect removes every connection touching (id, socket). An empty
// socket removes every connection of the node. It returns the number of
// connections removed.
func (s *Session) Disconnect(id graph.NodeID, socket string) (int, error) {
	var n int
	err := s.mutate(func() (bool, error) {
		n = s.g.Disconnect(id, socket)
		return n > 0, nil
	})
	return n, err
}

// SetTop marks a node as selected. An empty id clears the selection.
func (s *Session) SetTop(id graph.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g.SetTop(id)
}

func (s *Session) checkEndpoint(ep graph.Endpoint, dir graph.Direction) error {
	n := s.g.Node(ep.Node)
	if n == nil {
		return errors.Wrapf(graph.ErrNodeNotFound, "%s", ep.Node)
	}
	nt, ok := s.reg.Lookup(n.Type)
	if !ok {
		return errors.Errorf("node %s: unknown node type %q", n.ID, n.Type)
	}
	if dir == graph.Output && !nt.HasOutput(ep.Socket) ||
		dir == graph.Input && !nt.HasInput(ep.Socket) {
		return errors.Errorf("%s is not an %s socket of %s", ep.Socket, dir, nt.Type)
	}
	return nil
}
