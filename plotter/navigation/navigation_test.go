package navigation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marine/plotter/geo"
	"marine/plotter/signalk"
)

func selfAt(pos geo.LatLon, course, sog interface{}) signalk.VesselState {
	s := signalk.VesselState{
		signalk.PathPosition: {Value: signalk.Position{Latitude: pos.Lat, Longitude: pos.Lon}},
	}
	if course != nil {
		s[signalk.PathCourseOverGround] = signalk.PathValue{Value: course}
	}
	if sog != nil {
		s[signalk.PathSpeedOverGround] = signalk.PathValue{Value: sog}
	}
	return s
}

func TestFoldBearing(t *testing.T) {
	tt := []struct {
		raw, want float64
	}{
		{200, 160},
		{10, 10},
		{180, 180},
		{180.5, 179.5},
		{359, 1},
		{0, 0},
	}
	for _, tc := range tt {
		assert.Equal(t, tc.want, FoldBearing(tc.raw), "raw %v", tc.raw)
	}
}

func TestDeriveWithoutWaypoint(t *testing.T) {
	self := selfAt(geo.LatLon{Lat: 60, Lon: 25}, 0.0, 3.0)
	self[PathVMG] = signalk.PathValue{Value: 1.0}
	out := Derive(self, nil)
	assert.NotContains(t, out, PathDTW)
	assert.NotContains(t, out, PathVMG)
	assert.Contains(t, self, PathVMG, "input untouched")
}

func TestDeriveWaypoint(t *testing.T) {
	// waypoint due east on the equator
	self := selfAt(geo.LatLon{Lat: 0, Lon: 0}, 0.0, 5.0)
	wp := geo.LatLon{Lat: 0, Lon: 0.1}
	out := Derive(self, &wp)

	dtw, ok := out.Float(PathDTW)
	require.True(t, ok)
	assert.InDelta(t, 11131.9, dtw, 1)
	btw, ok := out.Float(PathBTW)
	require.True(t, ok)
	assert.InDelta(t, math.Pi/2, btw, 1e-6)
	vmg, ok := out.Float(PathVMG)
	require.True(t, ok)
	assert.InDelta(t, 0, vmg, 1e-6)

	// waypoint to the west: raw bearing 270 folds to 90
	wp = geo.LatLon{Lat: 0, Lon: -0.1}
	out = Derive(self, &wp)
	btw, _ = out.Float(PathBTW)
	assert.InDelta(t, math.Pi/2, btw, 1e-6)

	// due north: offset 0, VMG equals SOG
	wp = geo.LatLon{Lat: 0.1, Lon: 0}
	out = Derive(self, &wp)
	vmg, _ = out.Float(PathVMG)
	assert.InDelta(t, 5.0, vmg, 1e-6)
	eta, ok := out.Float(PathETA)
	require.True(t, ok)
	dtw, _ = out.Float(PathDTW)
	assert.InDelta(t, dtw*0.000539957/(5*1.94384), eta, 1e-6)
}

func TestComputeWaypointZeroVMG(t *testing.T) {
	w := ComputeWaypoint(geo.LatLon{Lat: 0, Lon: 0}, 0, true, geo.LatLon{Lat: 0.1, Lon: 0})
	assert.True(t, w.HasVMG)
	assert.Zero(t, w.VMG)
	assert.False(t, w.HasETA, "infinite ETA is omitted")
}

func TestDeriveNonFinite(t *testing.T) {
	wp := geo.LatLon{Lat: 0.1, Lon: 0}
	out := Derive(selfAt(geo.LatLon{}, nil, math.NaN()), &wp)
	assert.Contains(t, out, PathDTW)
	assert.NotContains(t, out, PathVMG)
	assert.NotContains(t, out, PathETA)

	out = Derive(signalk.VesselState{}, &wp)
	assert.Empty(t, out)
}

func TestExtensionLine(t *testing.T) {
	p := geo.LatLon{Lat: 60.15, Lon: 24.95}
	course := math.Pi / 4

	_, ok := ExtensionLine(selfAt(p, course, 0.0), signalk.PathCourseOverGround, Extension5Min)
	assert.False(t, ok)
	_, ok = ExtensionLine(selfAt(p, course, 0.5), signalk.PathCourseOverGround, Extension5Min)
	assert.False(t, ok, "threshold is exclusive")
	_, ok = ExtensionLine(selfAt(p, course, 5.0), signalk.PathCourseOverGround, ExtensionOff)
	assert.False(t, ok)
	_, ok = ExtensionLine(selfAt(p, nil, 5.0), signalk.PathCourseOverGround, Extension5Min)
	assert.False(t, ok)

	line, ok := ExtensionLine(selfAt(p, course, 5.0), signalk.PathCourseOverGround, Extension5Min)
	require.True(t, ok)
	assert.Equal(t, p, line.Start)
	assert.InDelta(t, 1500, geo.Distance(p, line.End), 0.01)
	assert.InDelta(t, 750, geo.Distance(p, line.Middle), 0.01)
	assert.InDelta(t, 45, geo.Bearing(p, line.End), 0.01)

	line, _ = ExtensionLine(selfAt(p, course, 5.0), signalk.PathCourseOverGround, Extension10Min)
	assert.InDelta(t, 3000, geo.Distance(p, line.End), 0.01)
}

func TestExtensionSettings(t *testing.T) {
	m, ok := ExtensionMinutes("2 min")
	assert.True(t, ok)
	assert.Equal(t, 2, m)
	_, ok = ExtensionMinutes("soon")
	assert.False(t, ok)
	_, ok = ExtensionMinutes("")
	assert.False(t, ok)

	assert.Equal(t, Extension2Min, NextExtensionLine(ExtensionOff))
	assert.Equal(t, Extension5Min, NextExtensionLine(Extension2Min))
	assert.Equal(t, Extension10Min, NextExtensionLine(Extension5Min))
	assert.Equal(t, ExtensionOff, NextExtensionLine(Extension10Min))
	assert.Equal(t, ExtensionOff, NextExtensionLine("bogus"))
}

func TestReadings(t *testing.T) {
	state := signalk.VesselState{
		signalk.PathSpeedOverGround:  {Value: 1.0},
		signalk.PathCourseOverGround: {Value: math.Pi / 36},
		PathETA:                      {Value: 1.5},
		PathDTW:                      {Value: 1852.0},
	}
	readings := Readings(state, []string{"sog", "cog", "eta", "dtw", "stw", "nope"})
	require.Len(t, readings, 5)
	assert.Equal(t, "1.94", readings[0].Value)
	assert.Equal(t, "05", readings[1].Value)
	assert.Equal(t, "1:30", readings[2].Value)
	assert.Equal(t, "1.00", readings[3].Value)
	assert.Equal(t, NullValue, readings[4].Value)
	assert.Len(t, Readings(state, nil), len(Instruments))
}
