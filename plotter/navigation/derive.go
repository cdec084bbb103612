// Package navigation derives waypoint instruments and the course extension
// line from the self vessel state.
package navigation

import (
	"math"

	"marine/plotter/geo"
	"marine/plotter/signalk"
	"marine/plotter/util/units"
)

// Synthetic paths injected into the self state.
const (
	PathDTW = "performance.dtw"
	PathBTW = "performance.btw"
	PathVMG = "performance.vmg"
	PathETA = "performance.eta"
)

// FoldBearing maps a compass bearing onto the 0..180 offset used for VMG:
// anything above 180 becomes 180-(raw-180); 180 itself is kept.
func FoldBearing(raw float64) float64 {
	if raw > 180 {
		return 180 - (raw - 180)
	}
	return raw
}

// Waypoint figures towards one target point.
type Waypoint struct {
	// DTW is meters.
	DTW float64
	// BTW is the folded bearing in degrees.
	BTW float64
	// VMG is meters/second.
	VMG float64
	// ETA is hours.
	ETA float64

	HasDTW, HasBTW, HasVMG, HasETA bool
}

// ComputeWaypoint works out the waypoint figures. A figure whose inputs are
// missing or not finite is left unset.
func ComputeWaypoint(pos geo.LatLon, sog float64, hasSOG bool, waypoint geo.LatLon) Waypoint {
	var w Waypoint
	if !pos.Valid() || !waypoint.Valid() {
		return w
	}
	w.DTW = geo.Distance(pos, waypoint)
	w.HasDTW = finite(w.DTW)
	w.BTW = FoldBearing(geo.Bearing(pos, waypoint))
	w.HasBTW = finite(w.BTW)
	if !hasSOG || !finite(sog) || !w.HasBTW {
		return w
	}
	w.VMG = sog * (1 - w.BTW/90)
	w.HasVMG = finite(w.VMG)
	if !w.HasVMG || !w.HasDTW {
		return w
	}
	w.ETA = (w.DTW * units.MToNM) / units.FromMetersSecondToKnots(w.VMG)
	w.HasETA = finite(w.ETA)
	return w
}

// Derive returns self with the waypoint paths added. Without a waypoint the
// paths are absent. self itself is not modified.
func Derive(self signalk.VesselState, waypoint *geo.LatLon) signalk.VesselState {
	out := self.Clone()
	for _, p := range []string{PathDTW, PathBTW, PathVMG, PathETA} {
		delete(out, p)
	}
	if waypoint == nil {
		return out
	}
	pos, ok := self.Position()
	if !ok {
		return out
	}
	sog, hasSOG := self.Float(signalk.PathSpeedOverGround)
	ts := self[signalk.PathPosition].Timestamp
	w := ComputeWaypoint(pos, sog, hasSOG, *waypoint)
	set := func(path string, v float64, ok bool) {
		if ok {
			out[path] = signalk.PathValue{Value: v, Timestamp: ts}
		}
	}
	set(PathDTW, w.DTW, w.HasDTW)
	set(PathBTW, w.BTW*geo.DegreeToRadian, w.HasBTW)
	set(PathVMG, w.VMG, w.HasVMG)
	set(PathETA, w.ETA, w.HasETA)
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
