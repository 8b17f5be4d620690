package resolver

import (
	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/chazu/shadegraph/pkg/graph"
)

// Ghost is the provisional line drawn while a connection is dragged.
type Ghost struct {
	Start   v2.Vec
	End     v2.Vec
	Snapped bool // End sits on a snap target
}

// Drag is the transient state of one connection gesture. The zero value is
// idle; a Drag is owned by a single interactive session.
type Drag struct {
	r      *Resolver
	active bool
	source graph.Endpoint
	dir    graph.Direction
	start  v2.Vec
	end    v2.Vec
	snap   *Anchor
}

// NewDrag returns an idle drag that snaps with r.
func NewDrag(r *Resolver) *Drag {
	return &Drag{r: r}
}

// Begin starts dragging from src. The ghost starts at the measured anchor
// of src when one exists, otherwise at the pointer.
func (d *Drag) Begin(src graph.Endpoint, dir graph.Direction, at v2.Vec) {
	d.active = true
	d.source = src
	d.dir = dir
	d.start = at
	if an, ok := d.r.Anchors.Get(src); ok {
		d.start = an.Point
	}
	d.end = at
	d.snap = nil
}

// Move updates the pointer and returns the current snap target, if any.
func (d *Drag) Move(at v2.Vec) (Anchor, bool) {
	if !d.active {
		return Anchor{}, false
	}
	d.end = at
	d.snap = nil
	if an, dist, ok := d.r.Nearest(d.source, d.dir, at); ok && dist < d.r.Threshold {
		d.snap = &an
		return an, true
	}
	return Anchor{}, false
}

// End finishes the gesture at the pointer and returns the connection to
// commit, if the drop landed on a compatible socket. The drag is idle
// afterwards.
func (d *Drag) End(at v2.Vec) (graph.Connection, bool) {
	if !d.active {
		return graph.Connection{}, false
	}
	c, ok := d.r.Propose(d.source, d.dir, at)
	d.Cancel()
	return c, ok
}

// Cancel abandons the gesture.
func (d *Drag) Cancel() {
	d.active = false
	d.snap = nil
}

// Active reports whether a gesture is in progress.
func (d *Drag) Active() bool { return d.active }

// Source returns the dragged socket and its direction.
func (d *Drag) Source() (graph.Endpoint, graph.Direction) { return d.source, d.dir }

// Ghost returns the line to draw for the current gesture.
func (d *Drag) Ghost() (Ghost, bool) {
	if !d.active {
		return Ghost{}, false
	}
	g := Ghost{Start: d.start, End: d.end}
	if d.snap != nil {
		g.End = d.snap.Point
		g.Snapped = true
	}
	return g, true
}
