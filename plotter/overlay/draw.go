package overlay

import (
	"fmt"
	"time"

	"marine/plotter/geo"
)

const (
	// MinPointSeparation is the closest, in meters, a new path point may be
	// to an existing one.
	MinPointSeparation = 30.0
	// DragSettle ignores clicks right after a point was dragged.
	DragSettle = 50 * time.Millisecond
)

type pathPoint struct {
	id  string
	pos geo.LatLon
}

// Click handles a map click: it adds a path point in draw mode and places
// the waypoint in waypoint mode.
func (c *Controller) Click(p geo.LatLon) {
	if c.settings.DrawMode {
		c.addPathPoint(p)
	}
	if c.settings.Waypoint {
		c.placeWaypoint(p)
	}
}

func (c *Controller) addPathPoint(p geo.LatLon) {
	for _, pt := range c.path {
		if geo.Distance(p, pt.pos) <= MinPointSeparation {
			return
		}
	}
	if !c.lastMoveAt.IsZero() && c.clock.Now().Sub(c.lastMoveAt) <= DragSettle {
		return
	}
	c.pathSeq++
	pt := &pathPoint{id: fmt.Sprintf("%v%d", pathPointPrefix, c.pathSeq), pos: p}
	c.m.AddMarker(pt.id, p, MarkerOptions{Icon: IconPathMarker, Draggable: true, ZIndex: 900})
	c.path = append(c.path, pt)
	c.redrawPath()
}

// MovePathPoint follows a dragged path point.
func (c *Controller) MovePathPoint(id string, p geo.LatLon) bool {
	for _, pt := range c.path {
		if pt.id == id {
			pt.pos = p
			c.m.MoveMarker(id, p)
			c.redrawPath()
			return true
		}
	}
	return false
}

// DeletePath removes every path point.
func (c *Controller) DeletePath() {
	c.clearPath()
}

func (c *Controller) clearPath() {
	for _, pt := range c.path {
		c.m.RemoveMarker(pt.id)
	}
	c.path = nil
	c.redrawPath()
}

func (c *Controller) redrawPath() {
	c.lastMoveAt = c.clock.Now()
	points := c.Path()
	c.m.SetPolyline(PathID, points, Style{Color: "#3e3e86", Weight: 5})
	if c.opts.OnPathDistance != nil {
		c.opts.OnPathDistance(geo.PathLength(points))
	}
}

// Path is the drawn path in point order.
func (c *Controller) Path() []geo.LatLon {
	points := make([]geo.LatLon, len(c.path))
	for i, pt := range c.path {
		points[i] = pt.pos
	}
	return points
}

func (c *Controller) PathDistance() float64 {
	return geo.PathLength(c.Path())
}

func (c *Controller) placeWaypoint(p geo.LatLon) {
	if c.waypoint != nil {
		c.m.RemoveMarker(WaypointID)
	}
	c.m.AddMarker(WaypointID, p, MarkerOptions{Icon: IconPathMarker, ZIndex: 900})
	c.waypoint = &p
	c.settings.Waypoint = false
	c.feedback.SetWaypointMode(false)
}

// Waypoint is the placed waypoint, nil before the first placement.
func (c *Controller) Waypoint() *geo.LatLon {
	if c.waypoint == nil {
		return nil
	}
	w := *c.waypoint
	return &w
}
