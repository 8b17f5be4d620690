package editor

import (
	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/chazu/shadegraph/pkg/graph"
	"github.com/chazu/shadegraph/pkg/resolver"
)

// MeasureSocket records where a socket is drawn. The view reports every
// socket after layout; unmeasured sockets are never snap targets.
func (s *Session) MeasureSocket(ep graph.Endpoint, dir graph.Direction, at v2.Vec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors.Measure(resolver.Anchor{Endpoint: ep, Direction: dir, Point: at})
}

// BeginDrag starts a connection gesture from a socket.
func (s *Session) BeginDrag(src graph.Endpoint, dir graph.Direction, at v2.Vec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEndpoint(src, dir); err != nil {
		return err
	}
	s.drag.Begin(src, dir, at)
	return nil
}

// DragTo moves the pointer and returns the socket the gesture would snap
// to, if any.
func (s *Session) DragTo(at v2.Vec) (resolver.Anchor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.Move(at)
}

// Ghost returns the provisional line of the current gesture.
func (s *Session) Ghost() (resolver.Ghost, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.Ghost()
}

// EndDrag drops the gesture at the pointer. When a compatible socket is
// within the snap threshold the connection is committed and returned.
func (s *Session) EndDrag(at v2.Vec) (graph.Connection, bool, error) {
	s.mu.Lock()
	if !s.drag.Active() {
		s.mu.Unlock()
		return graph.Connection{}, false, ErrNoDrag
	}
	c, ok := s.drag.End(at)
	s.mu.Unlock()
	if !ok {
		return graph.Connection{}, false, nil
	}
	if err := s.Connect(c.From, c.To); err != nil {
		return graph.Connection{}, false, err
	}
	return c, true, nil
}

// CancelDrag abandons the current gesture.
func (s *Session) CancelDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag.Cancel()
}
