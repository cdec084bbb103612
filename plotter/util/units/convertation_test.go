package units

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromKnotsToMetersSecond(t *testing.T) {
	assert.InDelta(t, 51.4444, FromKnotsToMetersSecond(100), 0.001)
	assert.Zero(t, FromKnotsToMetersSecond(0))
	assert.InDelta(t, 0.514444, FromKnotsToMetersSecond(1), 0.001)
}

func TestFromMetersSecondToKnots(t *testing.T) {
	assert.InDelta(t, 194.384, FromMetersSecondToKnots(100), 0.001)
	assert.Zero(t, FromMetersSecondToKnots(0))
	assert.InDelta(t, 1.94384, FromMetersSecondToKnots(1), 0.001)
}

func TestToKnotsRejectsMissingValues(t *testing.T) {
	for _, v := range []interface{}{nil, math.NaN(), math.Inf(1), "1.0", map[string]interface{}{}} {
		_, ok := ToKnots(v)
		assert.False(t, ok, "%v", v)
	}
	kn, ok := ToKnots(1.0)
	assert.True(t, ok)
	assert.Equal(t, 1*1.94384, kn)

	kn, ok = ToKnots(json.Number("2"))
	assert.True(t, ok)
	assert.InDelta(t, 3.88768, kn, 1e-9)
}

func TestAngles(t *testing.T) {
	deg, ok := ToDegrees(math.Pi)
	assert.True(t, ok)
	assert.InDelta(t, 180, deg, 1e-9)

	rad, ok := ToRadians(90)
	assert.True(t, ok)
	assert.InDelta(t, math.Pi/2, rad, 1e-9)

	_, ok = ToDegrees(nil)
	assert.False(t, ok)
}

func TestToNauticalMiles(t *testing.T) {
	nm, ok := ToNauticalMiles(1852.0)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, nm, 0.001)
}

func TestToHhmm(t *testing.T) {
	tt := []struct {
		hours interface{}
		want  string
	}{
		{1.5, "1:30"},
		{0.0, "0:00"},
		{2.09, "2:05"},
		{-3.0, "0:00"},
		{25.75, "25:45"},
	}
	for _, tc := range tt {
		got, ok := ToHhmm(tc.hours)
		assert.True(t, ok)
		assert.Equal(t, tc.want, got, "%v", tc.hours)
	}
	_, ok := ToHhmm(math.Inf(1))
	assert.False(t, ok)
}
