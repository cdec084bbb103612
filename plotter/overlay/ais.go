package overlay

import (
	"sort"
	"strings"
	"time"

	"marine/plotter/ais"
)

const (
	// ExpireAfter drops AIS markers without updates for this long.
	ExpireAfter = 180 * time.Second
	// ExpireInterval is the period of the expiry scan.
	ExpireInterval = 60 * time.Second
)

type aisMarker struct {
	lastUpdatedAt time.Time
}

// MarkerID is the map id of the AIS marker of a vessel.
func MarkerID(vesselID string) string {
	return aisPrefix + vesselID
}

// VesselID reverses MarkerID.
func VesselID(markerID string) (string, bool) {
	if !strings.HasPrefix(markerID, aisPrefix) {
		return "", false
	}
	return strings.TrimPrefix(markerID, aisPrefix), true
}

// AISDelta creates, moves and rotates the markers of the changed vessels.
// A marker is created once position and course are both known; every touch
// refreshes its tooltip and stamps it updated.
func (c *Controller) AISDelta(d ais.Delta) {
	if !c.settings.AIS.Enabled {
		return
	}
	for _, id := range d.Removed {
		if _, ok := c.ais[id]; ok {
			c.m.RemoveMarker(MarkerID(id))
			delete(c.ais, id)
		}
	}
	ids := make([]string, 0, len(d.Changed))
	for id := range d.Changed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	now := c.clock.Now()
	for _, id := range ids {
		state := d.Full[id]
		if state == nil {
			state = d.Changed[id]
		}
		pos, hasPos := state.Position()
		course, hasCourse := ais.Course(state)
		marker, exists := c.ais[id]
		switch {
		case exists:
			if hasCourse {
				c.m.RotateMarker(MarkerID(id), course)
			}
			if hasPos {
				c.m.MoveMarker(MarkerID(id), pos)
			}
		case hasPos && hasCourse:
			c.m.AddMarker(MarkerID(id), pos, MarkerOptions{
				Icon:      c.aisIcon(id),
				Rotation:  course,
				Clickable: true,
				ZIndex:    980,
			})
			marker = &aisMarker{}
			c.ais[id] = marker
		default:
			continue
		}
		c.m.SetTooltip(MarkerID(id), ais.NewTooltip(state).String())
		marker.lastUpdatedAt = now
	}
}

func (c *Controller) aisIcon(id string) Icon {
	if id != "" && id == c.selected {
		return IconAISTargetSelected
	}
	return IconAISTarget
}

// ExpireAIS removes markers not updated within ExpireAfter.
func (c *Controller) ExpireAIS() int {
	if !c.settings.AIS.Enabled {
		return 0
	}
	now := c.clock.Now()
	removed := 0
	for id, marker := range c.ais {
		if now.Sub(marker.lastUpdatedAt) > ExpireAfter {
			c.m.RemoveMarker(MarkerID(id))
			delete(c.ais, id)
			removed++
		}
	}
	if removed > 0 {
		tr.Logf("expired %v AIS markers", removed)
	}
	return removed
}

func (c *Controller) clearAIS() {
	for id := range c.ais {
		c.m.RemoveMarker(MarkerID(id))
	}
	c.ais = make(map[string]*aisMarker)
	c.selected = ""
}

// SelectVessel highlights the marker of id; an empty id clears the selection.
func (c *Controller) SelectVessel(id string) {
	c.selected = id
	if !c.settings.AIS.Enabled {
		return
	}
	for vessel := range c.ais {
		c.m.SetMarkerIcon(MarkerID(vessel), c.aisIcon(vessel))
	}
}

func (c *Controller) Selected() string {
	return c.selected
}

// AISMarkers lists the vessels that currently have a marker.
func (c *Controller) AISMarkers() []string {
	ids := make([]string, 0, len(c.ais))
	for id := range c.ais {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
