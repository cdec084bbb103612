package navigation

import (
	"strconv"
	"strings"

	"marine/plotter/geo"
	"marine/plotter/signalk"
)

// Extension line settings.
const (
	ExtensionOff   = "Off"
	Extension2Min  = "2 min"
	Extension5Min  = "5 min"
	Extension10Min = "10 min"

	// MinExtensionSpeed is meters/second; slower vessels get no line.
	MinExtensionSpeed = 0.5
)

var ExtensionLineSettings = []string{ExtensionOff, Extension2Min, Extension5Min, Extension10Min}

// Line is a projected course line.
type Line struct {
	Start  geo.LatLon `json:"start"`
	Middle geo.LatLon `json:"middle"`
	End    geo.LatLon `json:"end"`
}

// ExtensionMinutes reads the leading minute count of a setting such as
// "5 min". Off or unreadable settings yield false.
func ExtensionMinutes(setting string) (int, bool) {
	if setting == ExtensionOff {
		return 0, false
	}
	field := strings.Fields(setting)
	if len(field) == 0 {
		return 0, false
	}
	minutes, err := strconv.Atoi(field[0])
	if err != nil || minutes <= 0 {
		return 0, false
	}
	return minutes, true
}

// ExtensionLine projects the own position along the course read from
// coursePath (radians) for the distance covered at speed over ground within
// the minutes of setting.
func ExtensionLine(self signalk.VesselState, coursePath, setting string) (Line, bool) {
	minutes, ok := ExtensionMinutes(setting)
	if !ok {
		return Line{}, false
	}
	pos, hasPos := self.Position()
	course, hasCourse := self.Float(coursePath)
	speed, hasSpeed := self.Float(signalk.PathSpeedOverGround)
	if !hasPos || !hasCourse || !hasSpeed || speed <= MinExtensionSpeed {
		return Line{}, false
	}
	return Project(pos, course*geo.RadianToDegree, speed*float64(60*minutes)), true
}

// Project builds the line from pos along bearing (degrees) over distance
// meters.
func Project(pos geo.LatLon, bearing, distance float64) Line {
	return Line{
		Start:  pos,
		Middle: geo.Destination(pos, distance/2, bearing),
		End:    geo.Destination(pos, distance, bearing),
	}
}

// NextExtensionLine cycles Off, 2, 5, 10 minutes.
func NextExtensionLine(setting string) string {
	for i, s := range ExtensionLineSettings {
		if s == setting {
			return ExtensionLineSettings[(i+1)%len(ExtensionLineSettings)]
		}
	}
	return ExtensionOff
}
