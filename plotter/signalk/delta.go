package signalk

// Default subscription parameters for deltas, in milliseconds.
const (
	DefaultPeriod    = 2000
	DefaultMinPeriod = 1000
)

// DeltaMessage is every inbound stream message: the hello carries Self, data
// messages carry Context and Updates.
type DeltaMessage struct {
	Name    string   `json:"name,omitempty"`
	Version string   `json:"version,omitempty"`
	Self    string   `json:"self,omitempty"`
	Context string   `json:"context,omitempty"`
	Updates []Update `json:"updates,omitempty"`
}

type Update struct {
	Timestamp string  `json:"timestamp,omitempty"`
	Values    []Value `json:"values"`
}

type Value struct {
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

type Subscription struct {
	Path      string `json:"path"`
	Period    int    `json:"period,omitempty"`
	Format    string `json:"format,omitempty"`
	Policy    string `json:"policy,omitempty"`
	MinPeriod int    `json:"minPeriod,omitempty"`
}

type SubscribeRequest struct {
	Context   string         `json:"context"`
	Subscribe []Subscription `json:"subscribe"`
}

// Subscribe asks for every path of context as ideal-policy deltas.
func Subscribe(context string) SubscribeRequest {
	return SubscribeRequest{
		Context: context,
		Subscribe: []Subscription{{
			Path:      "*",
			Period:    DefaultPeriod,
			Format:    "delta",
			Policy:    "ideal",
			MinPeriod: DefaultMinPeriod,
		}},
	}
}

// Values flattens the updates of m into path values. A value with an empty
// path carries top level vessel fields (name, mmsi) as an object.
func (m *DeltaMessage) Values() VesselState {
	if len(m.Updates) == 0 {
		return nil
	}
	state := make(VesselState)
	for _, u := range m.Updates {
		ts := ParseTimestamp(u.Timestamp)
		for _, v := range u.Values {
			if v.Path != "" {
				state[v.Path] = PathValue{Value: v.Value, Timestamp: ts}
				continue
			}
			fields, ok := v.Value.(map[string]interface{})
			if !ok {
				continue
			}
			for k, fv := range fields {
				state[k] = PathValue{Value: fv, Timestamp: ts}
			}
		}
	}
	if len(state) == 0 {
		return nil
	}
	return state
}
