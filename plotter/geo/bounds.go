package geo

import (
	"github.com/pkg/errors"

	"marine/plotter/util/units"
)

// Bounds is a geographic box as carried by MBTiles metadata and bbox queries.
type Bounds struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// ParseBounds reads a [west, south, east, north] array.
func ParseBounds(raw interface{}) (*Bounds, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		if fl, isFloats := raw.([]float64); isFloats {
			list = make([]interface{}, len(fl))
			for i, f := range fl {
				list[i] = f
			}
			ok = true
		}
	}
	if !ok || len(list) != 4 {
		return nil, errors.Errorf("unrecognized bounds format: %v", raw)
	}
	var v [4]float64
	for i, item := range list {
		f, isNum := units.Float(item)
		if !isNum {
			return nil, errors.Errorf("unrecognized bounds format: %v", raw)
		}
		v[i] = f
	}
	b := &Bounds{West: v[0], South: v[1], East: v[2], North: v[3]}
	if !b.Valid() {
		return nil, errors.Errorf("invalid bounds: %v", raw)
	}
	return b, nil
}

func (b Bounds) Valid() bool {
	sw := LatLon{Lat: b.South, Lon: b.West}
	ne := LatLon{Lat: b.North, Lon: b.East}
	return sw.Valid() && ne.Valid() && b.South <= b.North
}

// Contains reports whether p is inside b. Boxes crossing the antimeridian have West > East.
func (b Bounds) Contains(p LatLon) bool {
	if p.Lat < b.South || p.Lat > b.North {
		return false
	}
	if b.West <= b.East {
		return p.Lon >= b.West && p.Lon <= b.East
	}
	return p.Lon >= b.West || p.Lon <= b.East
}

// Center is the midpoint of the box.
func (b Bounds) Center() LatLon {
	east := b.East
	if b.West > east {
		east += 360
	}
	lon := (b.West + east) / 2
	if lon > Longitude_Max {
		lon -= 360
	}
	return LatLon{Lat: (b.South + b.North) / 2, Lon: lon}
}
