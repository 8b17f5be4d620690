// Package resolver turns a dropped connection drag into a graph connection
// by snapping to the nearest compatible socket on screen.
package resolver

import (
	"cmp"
	"math"
	"slices"

	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/chazu/shadegraph/pkg/graph"
)

// DefaultSnapThreshold is the screen distance under which a drop binds.
const DefaultSnapThreshold = 50.0

// Anchor is the measured screen position of one socket.
type Anchor struct {
	Endpoint  graph.Endpoint
	Direction graph.Direction
	Point     v2.Vec
}

// Anchors holds the latest measured anchor of every visible socket.
type Anchors struct {
	m map[graph.Endpoint]Anchor
}

// NewAnchors returns an empty anchor set.
func NewAnchors() *Anchors {
	return &Anchors{m: make(map[graph.Endpoint]Anchor)}
}

// Measure records or updates a socket anchor.
func (a *Anchors) Measure(an Anchor) {
	a.m[an.Endpoint] = an
}

// Get returns the anchor of ep.
func (a *Anchors) Get(ep graph.Endpoint) (Anchor, bool) {
	an, ok := a.m[ep]
	return an, ok
}

// Forget drops every anchor belonging to the node.
func (a *Anchors) Forget(id graph.NodeID) {
	for ep := range a.m {
		if ep.Node == id {
			delete(a.m, ep)
		}
	}
}

// Len returns the number of anchors.
func (a *Anchors) Len() int { return len(a.m) }

// sorted returns anchors ordered by node then socket, so ties resolve the
// same way on every call.
func (a *Anchors) sorted() []Anchor {
	out := make([]Anchor, 0, len(a.m))
	for _, an := range a.m {
		out = append(out, an)
	}
	slices.SortFunc(out, func(x, y Anchor) int {
		if c := cmp.Compare(x.Endpoint.Node, y.Endpoint.Node); c != 0 {
			return c
		}
		return cmp.Compare(x.Endpoint.Socket, y.Endpoint.Socket)
	})
	return out
}

// Resolver finds snap targets among a set of anchors.
type Resolver struct {
	Anchors   *Anchors
	Threshold float64
}

// New returns a Resolver over anchors. A non-positive threshold selects
// DefaultSnapThreshold.
func New(anchors *Anchors, threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultSnapThreshold
	}
	return &Resolver{Anchors: anchors, Threshold: threshold}
}

// Nearest returns the closest anchor to at that could pair with the dragged
// socket: not the socket itself and not of the same direction.
func (r *Resolver) Nearest(dragged graph.Endpoint, dir graph.Direction, at v2.Vec) (Anchor, float64, bool) {
	var (
		best  Anchor
		bestD = math.Inf(1)
		found bool
	)
	for _, an := range r.Anchors.sorted() {
		if an.Endpoint == dragged || an.Direction == dir {
			continue
		}
		if d := an.Point.Sub(at).Length(); d < bestD {
			best, bestD, found = an, d, true
		}
	}
	return best, bestD, found
}

// Propose returns the connection a drop at the given point would create.
// The output side always becomes From and the input side To, whichever end
// was dragged. ok is false when nothing lies strictly within the threshold.
func (r *Resolver) Propose(dragged graph.Endpoint, dir graph.Direction, at v2.Vec) (graph.Connection, bool) {
	target, d, found := r.Nearest(dragged, dir, at)
	if !found || d >= r.Threshold {
		return graph.Connection{}, false
	}
	return Orient(dragged, dir, target.Endpoint), true
}

// Orient builds the connection between a socket of direction dir and a
// socket of the opposite direction.
func Orient(a graph.Endpoint, dir graph.Direction, b graph.Endpoint) graph.Connection {
	if dir == graph.Output {
		return graph.Connection{From: a, To: b}
	}
	return graph.Connection{From: b, To: a}
}
