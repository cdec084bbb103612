// Package units contains functions that convert between different units.
//
// The To* variants accept raw telemetry values and report ok=false for
// anything that is not a finite number, so a missing or NaN reading never
// turns into a displayed NaN.
package units

import (
	"encoding/json"
	"fmt"
	"math"
)

const (
	MSToKnots = 1.94384
	KnotsToMS = 0.514444
	MToNM     = 0.000539957
)

// FromMetersSecondToKnots converts meters/second to knots
func FromMetersSecondToKnots(ms float64) float64 {
	return ms * MSToKnots
}

// FromKnotsToMetersSecond converts knots to meters/second
func FromKnotsToMetersSecond(kn float64) float64 {
	return kn * KnotsToMS
}

// Float extracts a finite number from a decoded JSON value.
func Float(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func ToDegrees(angle interface{}) (float64, bool) {
	f, ok := Float(angle)
	if !ok {
		return 0, false
	}
	return f * (180 / math.Pi), true
}

func ToRadians(angle interface{}) (float64, bool) {
	f, ok := Float(angle)
	if !ok {
		return 0, false
	}
	return f * math.Pi / 180, true
}

func ToKnots(speed interface{}) (float64, bool) {
	f, ok := Float(speed)
	if !ok {
		return 0, false
	}
	return FromMetersSecondToKnots(f), true
}

func ToNauticalMiles(distance interface{}) (float64, bool) {
	f, ok := Float(distance)
	if !ok {
		return 0, false
	}
	return f * MToNM, true
}

// ToHhmm formats decimal hours as h:mm. Negative values are shown as zero.
func ToHhmm(decimalHours interface{}) (string, bool) {
	h, ok := Float(decimalHours)
	if !ok {
		return "", false
	}
	if h < 0 {
		h = 0
	}
	whole := math.Floor(h)
	min := math.Floor((h - whole) * 60)
	return fmt.Sprintf("%d:%02d", int64(whole), int64(min)), true
}
