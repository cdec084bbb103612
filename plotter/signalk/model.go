// Package signalk contains the SignalK wire model, the REST vessel snapshot
// reader and the streaming delta Connection.
package signalk

import (
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"marine/plotter/geo"
	"marine/plotter/util/units"
)

// Well known paths.
const (
	PathPosition          = "navigation.position"
	PathSpeedOverGround   = "navigation.speedOverGround"
	PathCourseOverGround  = "navigation.courseOverGroundTrue"
	PathHeadingTrue       = "navigation.headingTrue"
	PathSpeedThroughWater = "navigation.speedThroughWater"
	PathState             = "navigation.state"
	PathName              = "name"
	PathMMSI              = "mmsi"
	PathShipType          = "design.aisShipType"
	PathLength            = "design.length"
	PathBeam              = "design.beam"
	PathDraft             = "design.draft"

	ContextSelf    = "vessels.self"
	ContextVessels = "vessels.*"
	contextPrefix  = "vessels."
)

// PathValue is the latest value of one path and the time the source stamped it.
type PathValue struct {
	Value     interface{} `json:"value"`
	Timestamp time.Time   `json:"timestamp"`
}

// VesselState maps dot-delimited paths to their latest values.
type VesselState map[string]PathValue

// Partial maps vessel ids to the paths that changed in one update.
type Partial map[string]VesselState

// Position is the value shape of navigation.position.
type Position struct {
	Latitude  float64  `mapstructure:"latitude" json:"latitude"`
	Longitude float64  `mapstructure:"longitude" json:"longitude"`
	Altitude  *float64 `mapstructure:"altitude" json:"altitude,omitempty"`
}

func (p Position) LatLon() geo.LatLon {
	return geo.LatLon{Lat: p.Latitude, Lon: p.Longitude}
}

// Clone returns a shallow copy; values themselves are never mutated in place.
func (s VesselState) Clone() VesselState {
	out := make(VesselState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge overwrites s with every path of update, last write wins.
func (s VesselState) Merge(update VesselState) {
	for k, v := range update {
		s[k] = v
	}
}

// Paths lists the paths in lexical order.
func (s VesselState) Paths() []string {
	paths := make([]string, 0, len(s))
	for k := range s {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	return paths
}

// Value returns the raw value of path.
func (s VesselState) Value(path string) (interface{}, bool) {
	v, ok := s[path]
	if !ok {
		return nil, false
	}
	return v.Value, true
}

// Float returns a finite numeric value of path.
func (s VesselState) Float(path string) (float64, bool) {
	v, ok := s[path]
	if !ok {
		return 0, false
	}
	return units.Float(v.Value)
}

// String returns a string value of path.
func (s VesselState) String(path string) (string, bool) {
	v, ok := s[path]
	if !ok {
		return "", false
	}
	str, ok := v.Value.(string)
	return str, ok
}

// Position decodes navigation.position. A position without finite
// coordinates is treated as absent.
func (s VesselState) Position() (geo.LatLon, bool) {
	v, ok := s[PathPosition]
	if !ok || v.Value == nil {
		return geo.LatLon{}, false
	}
	var pos Position
	switch p := v.Value.(type) {
	case Position:
		pos = p
	case *Position:
		pos = *p
	default:
		if err := mapstructure.Decode(v.Value, &pos); err != nil {
			return geo.LatLon{}, false
		}
	}
	ll := pos.LatLon()
	if !ll.Valid() {
		return geo.LatLon{}, false
	}
	return ll, true
}

// Field reads a nested key of an object value, e.g. Field("design.length", "overall").
func (s VesselState) Field(path string, keys ...string) (interface{}, bool) {
	v, ok := s.Value(path)
	for _, k := range keys {
		if !ok {
			return nil, false
		}
		m, isMap := v.(map[string]interface{})
		if !isMap {
			return nil, false
		}
		v, ok = m[k]
	}
	return v, ok && v != nil
}

// VesselIDFromContext strips the "vessels." prefix of a delta context.
func VesselIDFromContext(ctx string) string {
	return strings.TrimPrefix(ctx, contextPrefix)
}

// ContextForVessel is the inverse of VesselIDFromContext.
func ContextForVessel(id string) string {
	return contextPrefix + id
}
