package ais

import (
	"fmt"

	"marine/plotter/signalk"
	aisutil "marine/plotter/util/ais"
	"marine/plotter/util/units"
)

const (
	notAvailable = "N/A"
	unknown      = "Unknown"
)

// Detail is the view of a selected AIS target.
type Detail struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MMSI       string `json:"mmsi"`
	VesselType string `json:"vesselType"`
	State      string `json:"state"`
	SOG        string `json:"sog"`
	COG        string `json:"cog"`
	Length     string `json:"length"`
	Beam       string `json:"beam"`
	Draft      string `json:"draft"`
}

// Tooltip is the hover text of an AIS marker.
type Tooltip struct {
	Name string `json:"name"`
	SOG  string `json:"sog"`
	COG  string `json:"cog"`
}

func (t Tooltip) String() string {
	return fmt.Sprintf("%v SOG: %v kn COG: %v", t.Name, t.SOG, t.COG)
}

// Name is the vessel name, either a plain value or a {value: name} object.
func Name(state signalk.VesselState) (string, bool) {
	v, ok := state.Value(signalk.PathName)
	if !ok {
		return "", false
	}
	switch n := v.(type) {
	case string:
		return n, n != ""
	case map[string]interface{}:
		s, isStr := n["value"].(string)
		return s, isStr && s != ""
	}
	return "", false
}

// Course is the course over ground in degrees.
func Course(state signalk.VesselState) (float64, bool) {
	v, ok := state.Value(signalk.PathCourseOverGround)
	if !ok {
		return 0, false
	}
	return units.ToDegrees(v)
}

func NewTooltip(state signalk.VesselState) Tooltip {
	t := Tooltip{Name: unknown, SOG: "0.0", COG: "0"}
	if name, ok := Name(state); ok {
		t.Name = name
	}
	if v, ok := state.Value(signalk.PathSpeedOverGround); ok {
		if sog, ok := units.ToKnots(v); ok {
			t.SOG = fmt.Sprintf("%.1f", sog)
		}
	}
	if cog, ok := Course(state); ok {
		t.COG = fmt.Sprintf("%.0f", cog)
	}
	return t
}

func NewDetail(id string, state signalk.VesselState) Detail {
	d := Detail{
		ID:         id,
		Name:       unknown,
		MMSI:       unknown,
		VesselType: notAvailable,
		State:      unknown,
	}
	if name, ok := Name(state); ok {
		d.Name = name
	}
	if mmsi, ok := state.String(signalk.PathMMSI); ok && mmsi != "" {
		d.MMSI = mmsi
	} else if mmsi, ok := aisutil.MMSIFromVesselID(id); ok {
		d.MMSI = mmsi
	}
	if shipType, ok := state.Field(signalk.PathShipType, "name"); ok {
		if s, isStr := shipType.(string); isStr && s != "" {
			d.VesselType = s
		}
	}
	if navState, ok := state.String(signalk.PathState); ok && navState != "" {
		d.State = navState
	}
	sog, _ := state.Value(signalk.PathSpeedOverGround)
	d.SOG = withUnit(units.ToKnots(sog))("%.1f kn")
	cog, _ := state.Value(signalk.PathCourseOverGround)
	d.COG = withUnit(units.ToDegrees(cog))("%.0f °")
	length, _ := state.Field(signalk.PathLength, "overall")
	d.Length = withUnit(units.Float(length))("%.1f m")
	beam, _ := state.Value(signalk.PathBeam)
	d.Beam = withUnit(units.Float(beam))("%.1f m")
	draft, _ := state.Field(signalk.PathDraft, "maximum")
	d.Draft = withUnit(units.Float(draft))("%.1f m")
	return d
}

func withUnit(v float64, ok bool) func(format string) string {
	return func(format string) string {
		if !ok {
			return notAvailable
		}
		return fmt.Sprintf(format, v)
	}
}
