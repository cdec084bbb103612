// Package overlay keeps the map in step with vessel state and settings.
//
// A Controller is owned by one goroutine. Every input is a method call and
// every effect is a call on the Map, so applying the same state twice leaves
// the map unchanged.
package overlay

import (
	"time"

	"marine/plotter/charts"
	"marine/plotter/geo"
	"marine/plotter/log"
	"marine/plotter/navigation"
	"marine/plotter/settings"
	"marine/plotter/signalk"
	"marine/plotter/util/clock"
)

const (
	SelfID          = "self"
	ExtensionID     = "extension-line"
	ExtensionEndID  = "extension-end"
	WaypointID      = "waypoint"
	PathID          = "draw-path"
	pathPointPrefix = "path-"
	aisPrefix       = "ais:"

	// FollowThreshold is the drift in meters before the map re-centers.
	FollowThreshold = 100.0
	// LineMinZoom hides the extension line when zoomed out further.
	LineMinZoom    = 12
	RelayoutDelay  = 250 * time.Millisecond
	extensionColor = "red"
)

var tr = log.GetTracer("overlay")

// Feedback receives the settings changes the map originates.
type Feedback interface {
	SetFollow(on bool)
	SetZoom(zoom int)
	SetWaypointMode(on bool)
}

type Options struct {
	Clock clock.C
	// RoundSelfIcon draws the own vessel as a dot, for position-only providers.
	RoundSelfIcon bool
	// OnPathDistance is told the drawn path length in meters after each change.
	OnPathDistance func(meters float64)
}

type Controller struct {
	m        Map
	feedback Feedback
	clock    clock.C
	opts     Options

	settings settings.Settings
	self     signalk.VesselState

	layers map[string]bool

	ais      map[string]*aisMarker
	selected string

	path       []*pathPoint
	pathSeq    int
	lastMoveAt time.Time
	waypoint   *geo.LatLon

	relayoutC    <-chan time.Time
	stopRelayout func()
}

// New draws the initial overlay for s.
func New(m Map, feedback Feedback, s settings.Settings, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = &clock.Real{}
	}
	c := &Controller{
		m:        m,
		feedback: feedback,
		clock:    opts.Clock,
		opts:     opts,
		settings: s,
		layers:   make(map[string]bool),
		ais:      make(map[string]*aisMarker),
	}
	if s.WorldBaseChart {
		m.AddBaseMap()
	}
	m.SetZoom(s.Zoom)
	m.SetScrollWheelZoom(s.Follow)
	m.AddMarker(SelfID, geo.LatLon{}, MarkerOptions{Icon: c.selfIcon(s.Zoom), ZIndex: 990})
	m.SetCircle(ExtensionEndID, geo.LatLon{}, Style{Color: extensionColor, Radius: 20})
	m.SetPolyline(ExtensionID, placeholder(), Style{Color: extensionColor})
	m.SetPolyline(PathID, nil, Style{Color: "#3e3e86", Weight: 5})
	c.applyZoomVisibility(s.Zoom)
	c.syncCharts(s.ChartProviders)
	return c
}

func placeholder() []geo.LatLon {
	return []geo.LatLon{{}, {}}
}

// Settings is the controller's view of the settings.
func (c *Controller) Settings() settings.Settings {
	return c.settings
}

func (c *Controller) selfIcon(zoom int) Icon {
	if c.opts.RoundSelfIcon {
		return IconVesselRound
	}
	switch {
	case zoom < 7:
		return IconVesselSmall
	case zoom < 12:
		return IconVesselMedium
	default:
		return IconVesselLarge
	}
}

func (c *Controller) coursePath() string {
	if c.settings.Course == settings.CourseHDG {
		return signalk.PathHeadingTrue
	}
	return signalk.PathCourseOverGround
}

// SelfUpdate renders the own vessel, its extension line and follows it.
func (c *Controller) SelfUpdate(self signalk.VesselState) {
	c.self = self
	c.renderSelf()
}

func (c *Controller) renderSelf() {
	self := c.self
	if self == nil {
		return
	}
	pos, hasPos := self.Position()
	if hasPos {
		c.m.MoveMarker(SelfID, pos)
	}
	if course, ok := self.Float(c.coursePath()); ok {
		c.m.RotateMarker(SelfID, course*geo.RadianToDegree)
	} else {
		c.m.RotateMarker(SelfID, 0)
	}

	line, hasLine := navigation.ExtensionLine(self, c.coursePath(), c.settings.ExtensionLine)
	if hasLine {
		c.m.SetPolyline(ExtensionID, []geo.LatLon{line.Start, line.End}, Style{Color: extensionColor})
		c.m.SetCircle(ExtensionEndID, line.End, Style{Color: extensionColor, Radius: 20})
	} else {
		c.m.SetPolyline(ExtensionID, placeholder(), Style{Color: extensionColor})
		c.m.SetCircle(ExtensionEndID, geo.LatLon{}, Style{Color: extensionColor, Radius: 20})
	}

	if !c.settings.Follow || (!hasLine && !hasPos) {
		return
	}
	target := pos
	if hasLine {
		target = line.Middle
	}
	if geo.Distance(c.m.Center(), target) > FollowThreshold {
		tr.Logf("follow pan to %v", target)
		c.m.PanTo(target)
	}
}

// SettingsChanged applies the differences between the previous settings and s.
func (c *Controller) SettingsChanged(s settings.Settings) {
	prev := c.settings
	c.settings = s

	if s.Zoom != prev.Zoom {
		c.m.SetZoom(s.Zoom)
		c.m.SetMarkerIcon(SelfID, c.selfIcon(s.Zoom))
		c.applyZoomVisibility(s.Zoom)
	}
	if s.Follow != prev.Follow {
		c.m.SetScrollWheelZoom(s.Follow)
	}
	if s.ShowMenu != prev.ShowMenu || s.ShowInstruments != prev.ShowInstruments {
		c.armRelayout()
	}
	if prev.AIS.Enabled && !s.AIS.Enabled {
		c.clearAIS()
	}
	if s.DrawMode != prev.DrawMode {
		c.clearPath()
	}
	c.syncCharts(s.ChartProviders)
	c.renderSelf()
}

func (c *Controller) applyZoomVisibility(zoom int) {
	visible := zoom >= LineMinZoom
	c.m.SetVisible(ExtensionID, visible)
	c.m.SetVisible(ExtensionEndID, visible)
}

// ZoomEnd writes a zoom level reached on the map back to the settings.
func (c *Controller) ZoomEnd(zoom int) {
	if zoom == c.settings.Zoom {
		return
	}
	c.feedback.SetZoom(zoom)
}

// DragStart turns following off when the user drags the map.
func (c *Controller) DragStart() {
	if !c.settings.Follow {
		return
	}
	c.settings.Follow = false
	c.m.SetScrollWheelZoom(false)
	c.feedback.SetFollow(false)
}

func (c *Controller) armRelayout() {
	if c.stopRelayout != nil {
		c.stopRelayout()
	}
	c.relayoutC, c.stopRelayout = c.clock.After(RelayoutDelay)
}

// RelayoutC fires when a pending relayout is due; nil when none is pending.
func (c *Controller) RelayoutC() <-chan time.Time {
	return c.relayoutC
}

// Relayout resizes the map after a panel toggle.
func (c *Controller) Relayout() {
	c.relayoutC, c.stopRelayout = nil, nil
	c.m.InvalidateSize()
}

func (c *Controller) syncCharts(providers []charts.Provider) {
	for _, p := range providers {
		registered, known := c.layers[p.ID]
		if !known {
			if p.Type != charts.TypeTiles {
				log.Warn("unsupported chart type %v for chart %v", p.Type, p.Name)
				c.layers[p.ID] = false
				continue
			}
			if p.TilemapURL == "" {
				log.Warn("missing tilemapUrl for chart %v", p.Name)
				c.layers[p.ID] = false
				continue
			}
			c.m.AddTileLayer(p)
			c.layers[p.ID] = true
			if p.Enabled {
				c.m.ShowLayer(p.ID)
				c.centerOnChart(p)
			}
			continue
		}
		if !registered {
			continue
		}
		if p.Enabled {
			c.m.ShowLayer(p.ID)
		} else {
			c.m.HideLayer(p.ID)
		}
	}
}

func (c *Controller) centerOnChart(p charts.Provider) {
	if len(p.Center) == 2 {
		c.m.PanTo(geo.LatLon{Lat: p.Center[1], Lon: p.Center[0]})
		return
	}
	if b, err := p.Box(); err == nil && b != nil {
		c.m.FitBounds(*b)
	}
}

// Close releases pending timers.
func (c *Controller) Close() {
	if c.stopRelayout != nil {
		c.stopRelayout()
	}
	c.relayoutC, c.stopRelayout = nil, nil
}
