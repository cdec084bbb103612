package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceAlongEquator(t *testing.T) {
	// one degree of longitude on the WGS84 equator
	assert.InDelta(t, 111319.49, Distance(LatLon{0, 0}, LatLon{0, 1}), 1)
	assert.Zero(t, Distance(LatLon{10, 10}, LatLon{10, 10}))
}

func TestBearing(t *testing.T) {
	assert.InDelta(t, 90, Bearing(LatLon{0, 0}, LatLon{0, 1}), 0.01)
	assert.InDelta(t, 270, Bearing(LatLon{0, 1}, LatLon{0, 0}), 0.01)
	assert.InDelta(t, 0, Bearing(LatLon{0, 0}, LatLon{1, 0}), 0.01)
	assert.InDelta(t, 180, Bearing(LatLon{1, 0}, LatLon{0, 0}), 0.01)
}

func TestDestinationRoundTrip(t *testing.T) {
	start := LatLon{Lat: 60.15, Lon: 24.95}
	end := Destination(start, 1500, 45)
	assert.InDelta(t, 1500, Distance(start, end), 0.01)
	assert.InDelta(t, 45, Bearing(start, end), 0.01)
	assert.Equal(t, start, Destination(start, 0, 45))
}

func TestPathLength(t *testing.T) {
	points := []LatLon{{0, 0}, {0, 1}, {0, 2}}
	want := Distance(points[0], points[1]) + Distance(points[1], points[2])
	assert.InDelta(t, want, PathLength(points), 1e-6)
	assert.InDelta(t, 222638.98, PathLength(points), 2)
	assert.Zero(t, PathLength(points[:1]))
	assert.Zero(t, PathLength(nil))
}

func TestParseBounds(t *testing.T) {
	b, err := ParseBounds([]interface{}{24.0, 59.0, 26.0, 61.0})
	require.NoError(t, err)
	assert.Equal(t, &Bounds{West: 24, South: 59, East: 26, North: 61}, b)
	assert.True(t, b.Contains(LatLon{60, 25}))
	assert.False(t, b.Contains(LatLon{62, 25}))
	assert.Equal(t, LatLon{60, 25}, b.Center())

	b, err = ParseBounds(nil)
	assert.NoError(t, err)
	assert.Nil(t, b)

	_, err = ParseBounds([]interface{}{1.0, 2.0})
	assert.Error(t, err)
	_, err = ParseBounds([]interface{}{"a", 2.0, 3.0, 4.0})
	assert.Error(t, err)
	_, err = ParseBounds([]interface{}{0.0, 95.0, 1.0, 96.0})
	assert.Error(t, err)
	_, err = ParseBounds("24,59,26,61")
	assert.Error(t, err)
}

func TestBoundsAcrossAntimeridian(t *testing.T) {
	b := Bounds{West: 170, South: -10, East: -170, North: 10}
	assert.True(t, b.Contains(LatLon{0, 179}))
	assert.True(t, b.Contains(LatLon{0, -175}))
	assert.False(t, b.Contains(LatLon{0, 0}))
	assert.Equal(t, LatLon{0, 180}, b.Center())
}
