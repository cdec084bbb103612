package overlay

import (
	"marine/plotter/charts"
	"marine/plotter/geo"
)

type Icon string

const (
	IconVesselLarge       Icon = "vessel-large"
	IconVesselMedium      Icon = "vessel-medium"
	IconVesselSmall       Icon = "vessel-small"
	IconVesselRound       Icon = "vessel-marker-round"
	IconAISTarget         Icon = "ais-target"
	IconAISTargetSelected Icon = "ais-target-selected"
	IconPathMarker        Icon = "path-marker"
)

type MarkerOptions struct {
	Icon      Icon    `json:"icon"`
	Rotation  float64 `json:"rotation"`
	Draggable bool    `json:"draggable,omitempty"`
	Clickable bool    `json:"clickable,omitempty"`
	ZIndex    int     `json:"zIndex"`
}

type Style struct {
	Color  string `json:"color"`
	Weight int    `json:"weight,omitempty"`
	// Radius in meters, circles only.
	Radius float64 `json:"radius,omitempty"`
}

// Map is the rendering surface driven by the Controller. Ids are owned by the
// caller; adding an existing id replaces it.
type Map interface {
	AddMarker(id string, pos geo.LatLon, opts MarkerOptions)
	MoveMarker(id string, pos geo.LatLon)
	RotateMarker(id string, degrees float64)
	SetMarkerIcon(id string, icon Icon)
	SetTooltip(id string, text string)
	RemoveMarker(id string)

	SetPolyline(id string, points []geo.LatLon, style Style)
	SetCircle(id string, center geo.LatLon, style Style)
	SetVisible(id string, visible bool)

	Center() geo.LatLon
	PanTo(p geo.LatLon)
	FitBounds(b geo.Bounds)
	SetZoom(zoom int)
	SetScrollWheelZoom(aroundCenter bool)
	InvalidateSize()

	AddBaseMap()
	AddTileLayer(p charts.Provider)
	ShowLayer(id string)
	HideLayer(id string)
}
