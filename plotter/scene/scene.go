// Package scene implements the overlay map as a replayable scene whose
// operations are streamed to browser renderers.
//
// A Scene is owned by the plotter loop and is not safe for concurrent use.
package scene

import (
	"reflect"
	"sort"

	"marine/plotter/charts"
	"marine/plotter/geo"
	"marine/plotter/log"
	"marine/plotter/overlay"
	"marine/plotter/ws"
)

const (
	// EnvelopeOp carries one operation, EnvelopeReplay the full scene.
	EnvelopeOp     = "scene"
	EnvelopeReplay = "scene-replay"
)

var tr = log.GetTracer("scene")

// Publisher is satisfied by *ws.Hub.
type Publisher interface {
	Publish(env ws.Envelope) error
}

// Op is one rendering operation.
type Op struct {
	Op       string                 `json:"op"`
	ID       string                 `json:"id,omitempty"`
	Pos      *geo.LatLon            `json:"pos,omitempty"`
	Points   []geo.LatLon           `json:"points,omitempty"`
	Marker   *overlay.MarkerOptions `json:"marker,omitempty"`
	Style    *overlay.Style         `json:"style,omitempty"`
	Rotation *float64               `json:"rotation,omitempty"`
	Icon     overlay.Icon           `json:"icon,omitempty"`
	Text     *string                `json:"text,omitempty"`
	Visible  *bool                  `json:"visible,omitempty"`
	Zoom     *int                   `json:"zoom,omitempty"`
	Bounds   *geo.Bounds            `json:"bounds,omitempty"`
	Layer    *charts.Provider       `json:"layer,omitempty"`
}

const (
	OpReset          = "reset"
	OpAddMarker      = "addMarker"
	OpMoveMarker     = "moveMarker"
	OpRotateMarker   = "rotateMarker"
	OpSetIcon        = "setIcon"
	OpSetTooltip     = "setTooltip"
	OpRemoveMarker   = "removeMarker"
	OpPolyline       = "polyline"
	OpCircle         = "circle"
	OpVisible        = "visible"
	OpPanTo          = "panTo"
	OpFitBounds      = "fitBounds"
	OpZoom           = "zoom"
	OpScrollWheel    = "scrollWheelZoom"
	OpInvalidateSize = "invalidateSize"
	OpBaseMap        = "baseMap"
	OpTileLayer      = "tileLayer"
	OpShowLayer      = "showLayer"
	OpHideLayer      = "hideLayer"
)

type marker struct {
	pos     geo.LatLon
	opts    overlay.MarkerOptions
	tooltip string
}

type shape struct {
	op     string
	points []geo.LatLon
	center geo.LatLon
	style  overlay.Style
}

type layer struct {
	provider charts.Provider
	shown    bool
}

type Scene struct {
	pub Publisher

	markers map[string]*marker
	shapes  map[string]*shape
	hidden  map[string]bool
	layers  map[string]*layer
	order   []string

	baseMap     bool
	center      geo.LatLon
	zoom        int
	scrollWheel bool
}

// New creates an empty scene publishing through pub; pub may be nil.
func New(pub Publisher) *Scene {
	return &Scene{
		pub:     pub,
		markers: make(map[string]*marker),
		shapes:  make(map[string]*shape),
		hidden:  make(map[string]bool),
		layers:  make(map[string]*layer),
	}
}

var _ overlay.Map = (*Scene)(nil)

func (s *Scene) emit(op Op) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ws.Envelope{Type: EnvelopeOp, Data: op}); err != nil {
		log.Error("could not publish %v: %v", op.Op, err)
	}
}

func (s *Scene) AddMarker(id string, pos geo.LatLon, opts overlay.MarkerOptions) {
	s.markers[id] = &marker{pos: pos, opts: opts}
	p, o := pos, opts
	s.emit(Op{Op: OpAddMarker, ID: id, Pos: &p, Marker: &o})
}

func (s *Scene) MoveMarker(id string, pos geo.LatLon) {
	m, ok := s.markers[id]
	if !ok {
		tr.Logf("move of unknown marker %v", id)
		return
	}
	if m.pos == pos {
		return
	}
	m.pos = pos
	s.emit(Op{Op: OpMoveMarker, ID: id, Pos: &pos})
}

func (s *Scene) RotateMarker(id string, degrees float64) {
	m, ok := s.markers[id]
	if !ok || m.opts.Rotation == degrees {
		return
	}
	m.opts.Rotation = degrees
	s.emit(Op{Op: OpRotateMarker, ID: id, Rotation: &degrees})
}

func (s *Scene) SetMarkerIcon(id string, icon overlay.Icon) {
	m, ok := s.markers[id]
	if !ok || m.opts.Icon == icon {
		return
	}
	m.opts.Icon = icon
	s.emit(Op{Op: OpSetIcon, ID: id, Icon: icon})
}

func (s *Scene) SetTooltip(id string, text string) {
	m, ok := s.markers[id]
	if !ok || m.tooltip == text {
		return
	}
	m.tooltip = text
	s.emit(Op{Op: OpSetTooltip, ID: id, Text: &text})
}

func (s *Scene) RemoveMarker(id string) {
	if _, ok := s.markers[id]; !ok {
		return
	}
	delete(s.markers, id)
	delete(s.hidden, id)
	s.emit(Op{Op: OpRemoveMarker, ID: id})
}

func (s *Scene) SetPolyline(id string, points []geo.LatLon, style overlay.Style) {
	next := &shape{op: OpPolyline, points: append([]geo.LatLon(nil), points...), style: style}
	if prev, ok := s.shapes[id]; ok && reflect.DeepEqual(prev, next) {
		return
	}
	s.putShape(id, next)
	st := style
	s.emit(Op{Op: OpPolyline, ID: id, Points: next.points, Style: &st})
}

func (s *Scene) SetCircle(id string, center geo.LatLon, style overlay.Style) {
	next := &shape{op: OpCircle, center: center, style: style}
	if prev, ok := s.shapes[id]; ok && reflect.DeepEqual(prev, next) {
		return
	}
	s.putShape(id, next)
	st := style
	s.emit(Op{Op: OpCircle, ID: id, Pos: &center, Style: &st})
}

func (s *Scene) putShape(id string, sh *shape) {
	if _, ok := s.shapes[id]; !ok {
		s.order = append(s.order, id)
	}
	s.shapes[id] = sh
}

func (s *Scene) SetVisible(id string, visible bool) {
	if s.hidden[id] == !visible {
		return
	}
	if visible {
		delete(s.hidden, id)
	} else {
		s.hidden[id] = true
	}
	s.emit(Op{Op: OpVisible, ID: id, Visible: &visible})
}

// Center is the last center reported by a renderer or requested by a pan.
func (s *Scene) Center() geo.LatLon {
	return s.center
}

// ViewMoved records the center a renderer settled on.
func (s *Scene) ViewMoved(center geo.LatLon) {
	s.center = center
}

func (s *Scene) PanTo(p geo.LatLon) {
	s.center = p
	s.emit(Op{Op: OpPanTo, Pos: &p})
}

func (s *Scene) FitBounds(b geo.Bounds) {
	s.center = b.Center()
	s.emit(Op{Op: OpFitBounds, Bounds: &b})
}

func (s *Scene) SetZoom(zoom int) {
	if s.zoom == zoom {
		return
	}
	s.zoom = zoom
	s.emit(Op{Op: OpZoom, Zoom: &zoom})
}

func (s *Scene) SetScrollWheelZoom(aroundCenter bool) {
	if s.scrollWheel == aroundCenter {
		return
	}
	s.scrollWheel = aroundCenter
	s.emit(Op{Op: OpScrollWheel, Visible: &aroundCenter})
}

func (s *Scene) InvalidateSize() {
	s.emit(Op{Op: OpInvalidateSize})
}

func (s *Scene) AddBaseMap() {
	if s.baseMap {
		return
	}
	s.baseMap = true
	s.emit(Op{Op: OpBaseMap})
}

func (s *Scene) AddTileLayer(p charts.Provider) {
	s.layers[p.ID] = &layer{provider: p}
	s.emit(Op{Op: OpTileLayer, ID: p.ID, Layer: &p})
}

func (s *Scene) ShowLayer(id string) {
	l, ok := s.layers[id]
	if !ok || l.shown {
		return
	}
	l.shown = true
	s.emit(Op{Op: OpShowLayer, ID: id})
}

func (s *Scene) HideLayer(id string) {
	l, ok := s.layers[id]
	if !ok || !l.shown {
		return
	}
	l.shown = false
	s.emit(Op{Op: OpHideLayer, ID: id})
}

// Replay lists the operations that rebuild the current scene on a fresh
// renderer, starting with a reset.
func (s *Scene) Replay() []Op {
	ops := []Op{{Op: OpReset}}
	if s.baseMap {
		ops = append(ops, Op{Op: OpBaseMap})
	}
	for _, id := range sortedKeys(s.layers) {
		l := s.layers[id]
		p := l.provider
		ops = append(ops, Op{Op: OpTileLayer, ID: id, Layer: &p})
		if l.shown {
			ops = append(ops, Op{Op: OpShowLayer, ID: id})
		}
	}
	zoom, center, wheel := s.zoom, s.center, s.scrollWheel
	ops = append(ops,
		Op{Op: OpZoom, Zoom: &zoom},
		Op{Op: OpPanTo, Pos: &center},
		Op{Op: OpScrollWheel, Visible: &wheel})
	for _, id := range s.order {
		sh := s.shapes[id]
		st := sh.style
		if sh.op == OpCircle {
			c := sh.center
			ops = append(ops, Op{Op: OpCircle, ID: id, Pos: &c, Style: &st})
		} else {
			ops = append(ops, Op{Op: OpPolyline, ID: id, Points: sh.points, Style: &st})
		}
	}
	for _, id := range sortedKeys(s.markers) {
		m := s.markers[id]
		pos, opts := m.pos, m.opts
		ops = append(ops, Op{Op: OpAddMarker, ID: id, Pos: &pos, Marker: &opts})
		if m.tooltip != "" {
			text := m.tooltip
			ops = append(ops, Op{Op: OpSetTooltip, ID: id, Text: &text})
		}
	}
	for _, id := range sortedKeys(s.hidden) {
		f := false
		ops = append(ops, Op{Op: OpVisible, ID: id, Visible: &f})
	}
	return ops
}

// SendReplay publishes the replay privately to client.
func (s *Scene) SendReplay(client string) error {
	if s.pub == nil {
		return nil
	}
	return s.pub.Publish(ws.Envelope{Type: EnvelopeReplay, Data: s.Replay(), Client: client})
}

// Markers lists the ids of the markers in the scene.
func (s *Scene) Markers() []string {
	return sortedKeys(s.markers)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
