package navigation

import (
	"fmt"

	"marine/plotter/signalk"
	"marine/plotter/util/units"
)

const NullValue = "N/A"

type transform func(v interface{}) (float64, bool)

func identity(v interface{}) (float64, bool) {
	return units.Float(v)
}

// Instrument describes one cell of the instrument panel.
type Instrument struct {
	Key       string `json:"key"`
	DataKey   string `json:"dataKey"`
	ClassName string `json:"className"`
	Title     string `json:"title"`
	Unit      string `json:"unit"`
	// Format is a printf verb for the transformed value; empty means h:mm.
	Format string `json:"-"`

	transform transform
}

// Reading is a formatted instrument value.
type Reading struct {
	Key       string `json:"key"`
	ClassName string `json:"className"`
	Title     string `json:"title"`
	Unit      string `json:"unit"`
	Value     string `json:"value"`
}

var Instruments = []Instrument{
	{Key: "sog", DataKey: signalk.PathSpeedOverGround, ClassName: "sog", Title: "SOG", Unit: "kn", Format: "%.2f", transform: units.ToKnots},
	{Key: "stw", DataKey: signalk.PathSpeedThroughWater, ClassName: "stw", Title: "STW", Unit: "kn", Format: "%.2f", transform: units.ToKnots},
	{Key: "heading", DataKey: signalk.PathHeadingTrue, ClassName: "heading", Title: "HDG", Unit: "°", Format: "%02.0f", transform: units.ToDegrees},
	{Key: "cog", DataKey: signalk.PathCourseOverGround, ClassName: "cog", Title: "COG", Unit: "°", Format: "%02.0f", transform: units.ToDegrees},
	{Key: "dbt", DataKey: "environment.depth.belowTransducer", ClassName: "dbt", Title: "Depth", Unit: "m", Format: "%.1f", transform: identity},
	{Key: "tws", DataKey: "environment.wind.speedTrue", ClassName: "tws", Title: "TWS", Unit: "m", Format: "%.1f", transform: identity},
	{Key: "aws", DataKey: "environment.wind.speedApparent", ClassName: "aws", Title: "AWS", Unit: "m", Format: "%.1f", transform: identity},
	{Key: "awaSog", DataKey: "environment.wind.angleApparent", ClassName: "awa", Title: "AWA", Unit: "°", Format: "%.0f", transform: units.ToDegrees},
	{Key: "awaWater", DataKey: "environment.wind.angleTrueWater", ClassName: "awa", Title: "AWA (STW)", Unit: "°", Format: "%.0f", transform: units.ToDegrees},
	{Key: "vmg", DataKey: PathVMG, ClassName: "vmg", Title: "VMG", Unit: "kn", Format: "%.2f", transform: units.ToKnots},
	{Key: "eta", DataKey: PathETA, ClassName: "eta", Title: "ETA", Unit: "h", transform: identity},
	{Key: "dtw", DataKey: PathDTW, ClassName: "dtw", Title: "DTW", Unit: "Nm", Format: "%.2f", transform: units.ToNauticalMiles},
	{Key: "btw", DataKey: PathBTW, ClassName: "btw", Title: "BTW", Unit: "°", Format: "%.0f", transform: units.ToDegrees},
}

// InstrumentKeys lists every known instrument in panel order.
func InstrumentKeys() []string {
	keys := make([]string, len(Instruments))
	for i, in := range Instruments {
		keys[i] = in.Key
	}
	return keys
}

func FindInstrument(key string) (Instrument, bool) {
	for _, in := range Instruments {
		if in.Key == key {
			return in, true
		}
	}
	return Instrument{}, false
}

// Read formats the instrument value of state, NullValue when absent.
func (in Instrument) Read(state signalk.VesselState) Reading {
	r := Reading{Key: in.Key, ClassName: in.ClassName, Title: in.Title, Unit: in.Unit, Value: NullValue}
	raw, ok := state.Value(in.DataKey)
	if !ok {
		return r
	}
	v, ok := in.transform(raw)
	if !ok {
		return r
	}
	if in.Format == "" {
		if hhmm, ok := units.ToHhmm(v); ok {
			r.Value = hhmm
		}
		return r
	}
	r.Value = fmt.Sprintf(in.Format, v)
	return r
}

// Readings formats the listed instruments; unknown keys are skipped. An
// empty list reads all of them.
func Readings(state signalk.VesselState, keys []string) []Reading {
	if len(keys) == 0 {
		keys = InstrumentKeys()
	}
	out := make([]Reading, 0, len(keys))
	for _, k := range keys {
		if in, ok := FindInstrument(k); ok {
			out = append(out, in.Read(state))
		}
	}
	return out
}
