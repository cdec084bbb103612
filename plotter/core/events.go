package core

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"marine/plotter/geo"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Input events sent by renderers.
const (
	EventClick         = "click"
	EventDragStart     = "dragstart"
	EventPathPoint     = "pathPoint"
	EventZoomEnd       = "zoomend"
	EventMoveEnd       = "moveend"
	EventSelectVessel  = "selectVessel"
	EventToggle        = "toggle"
	EventDeletePath    = "deletePath"
	EventChart         = "chart"
	EventInstruments   = "instruments"
	EventTracks        = "tracks"
	EventUnits         = "units"
	EventClearSettings = "clearSettings"
)

// Toggle targets of EventToggle.
const (
	ToggleFullscreen    = "fullscreen"
	ToggleDrawMode      = "drawMode"
	ToggleCourse        = "course"
	ToggleFollow        = "follow"
	ToggleMenu          = "showMenu"
	ToggleInstruments   = "showInstruments"
	ToggleExtensionLine = "extensionLine"
	ToggleAIS           = "ais"
	ToggleWaypoint      = "waypoint"
	ToggleWorldBase     = "worldBaseChart"
)

// Outbound envelope types besides the scene ones.
const (
	EnvelopeSettings     = "settings"
	EnvelopeConnection   = "connection"
	EnvelopeInstruments  = "instruments"
	EnvelopeAISDetail    = "aisDetail"
	EnvelopePathDistance = "pathDistance"
	EnvelopeTracks       = "tracks"
	EnvelopeUnits        = "units"
	EnvelopeError        = "error"
)

var ErrUnknownEvent = errors.New("unknown event")

type Event struct {
	Type    string    `json:"type"`
	Lat     float64   `json:"lat"`
	Lon     float64   `json:"lon"`
	ID      string    `json:"id,omitempty"`
	Zoom    int       `json:"zoom,omitempty"`
	Enabled bool      `json:"enabled,omitempty"`
	Setting string    `json:"setting,omitempty"`
	Keys    []string  `json:"keys,omitempty"`
	Bounds  []float64 `json:"bbox,omitempty"`
	Paths   []string  `json:"paths,omitempty"`
	Path    string    `json:"path,omitempty"`
}

func (e Event) LatLon() geo.LatLon {
	return geo.LatLon{Lat: e.Lat, Lon: e.Lon}
}

func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return e, errors.Wrap(err, "malformed event")
	}
	if e.Type == "" {
		return e, errors.Wrap(ErrUnknownEvent, "missing type")
	}
	return e, nil
}

// UnitsReply answers EventUnits; Unit is "n/a" when the server has none.
type UnitsReply struct {
	Path string `json:"path"`
	Unit string `json:"unit"`
}
