// Package settings holds the plotter user settings: defaults, the initial
// client configuration, persisted overrides and typed mutators.
package settings

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"marine/plotter/charts"
	"marine/plotter/connection"
	"marine/plotter/navigation"
	"marine/plotter/tracks"
)

const (
	CourseCOG = "COG"
	CourseHDG = "HDG"

	MinZoom     = charts.MinZoom
	MaxZoom     = charts.MaxZoom
	DefaultZoom = 13

	// StorageKey names the persisted settings blob.
	StorageKey = "plotter-settings"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type AIS struct {
	Enabled bool `json:"enabled"`
}

type Settings struct {
	Zoom                  int                 `json:"zoom"`
	Fullscreen            bool                `json:"fullscreen"`
	DrawMode              bool                `json:"drawMode"`
	Course                string              `json:"course"`
	Follow                bool                `json:"follow"`
	ShowMenu              bool                `json:"showMenu"`
	ExtensionLine         string              `json:"extensionLine"`
	ShowInstruments       bool                `json:"showInstruments"`
	AIS                   AIS                 `json:"ais"`
	WorldBaseChart        bool                `json:"worldBaseChart"`
	ChartProviders        []charts.Provider   `json:"chartProviders"`
	LoadingChartProviders bool                `json:"loadingChartProviders"`
	Data                  []connection.Config `json:"data"`
	Tracks                []tracks.Config     `json:"tracks,omitempty"`
	Instruments           []string            `json:"instruments"`
	// Waypoint is the one-shot placement mode, not the waypoint itself.
	Waypoint             bool     `json:"waypoint"`
	HiddenChartProviders []string `json:"hiddenChartProviders,omitempty"`
}

func Defaults() Settings {
	return Settings{
		Zoom:                  DefaultZoom,
		Course:                CourseCOG,
		Follow:                true,
		ExtensionLine:         navigation.Extension5Min,
		ShowInstruments:       true,
		WorldBaseChart:        true,
		ChartProviders:        []charts.Provider{},
		LoadingChartProviders: true,
		Data:                  []connection.Config{},
		Instruments:           navigation.InstrumentKeys(),
	}
}

// Persisted is the stored subset of Settings.
type Persisted struct {
	Fullscreen           bool            `json:"fullscreen"`
	Course               string          `json:"course"`
	Follow               bool            `json:"follow"`
	ShowMenu             bool            `json:"showMenu"`
	ExtensionLine        string          `json:"extensionLine"`
	ShowInstruments      bool            `json:"showInstruments"`
	AIS                  AIS             `json:"ais"`
	WorldBaseChart       bool            `json:"worldBaseChart"`
	Tracks               []tracks.Config `json:"tracks,omitempty"`
	Instruments          []string        `json:"instruments"`
	Waypoint             bool            `json:"waypoint"`
	HiddenChartProviders []string        `json:"hiddenChartProviders"`
}

// Load layers the initial client configuration and then the persisted blob
// over the defaults. The "charts" entry of the initial configuration lists
// chart sources and is returned separately.
func Load(initial map[string]interface{}, persisted []byte) (Settings, []charts.Source, error) {
	s := Defaults()
	var sources []charts.Source

	if len(initial) > 0 {
		rest := make(map[string]interface{}, len(initial))
		for k, v := range initial {
			if k != "charts" {
				rest[k] = v
			}
		}
		if err := overlay(&s, rest); err != nil {
			return s, nil, errors.Wrap(err, "initial settings")
		}
		if raw, ok := initial["charts"]; ok {
			if err := overlay(&sources, raw); err != nil {
				return s, nil, errors.Wrap(err, "chart sources")
			}
		}
	}

	if len(persisted) > 0 {
		if err := json.Unmarshal(persisted, &s); err != nil {
			return s, sources, errors.Wrap(err, "persisted settings")
		}
	}
	s.normalize()
	return s, sources, nil
}

// overlay assigns the top-level keys of raw onto target.
func overlay(target interface{}, raw interface{}) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, target)
}

func (s *Settings) normalize() {
	s.Zoom = clampZoom(s.Zoom)
	if s.Course != CourseHDG {
		s.Course = CourseCOG
	}
	if _, ok := navigation.ExtensionMinutes(s.ExtensionLine); !ok && s.ExtensionLine != navigation.ExtensionOff {
		s.ExtensionLine = navigation.Extension5Min
	}
}

func clampZoom(z int) int {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// Hidden lists the ids of disabled chart providers. Until providers have
// loaded the previously hidden ids are kept.
func (s Settings) Hidden() []string {
	if s.LoadingChartProviders {
		return append([]string{}, s.HiddenChartProviders...)
	}
	hidden := []string{}
	for _, p := range s.ChartProviders {
		if !p.Enabled {
			hidden = append(hidden, p.ID)
		}
	}
	return hidden
}

// Chart returns the chart provider with id.
func (s Settings) Chart(id string) (charts.Provider, bool) {
	for _, p := range s.ChartProviders {
		if p.ID == id {
			return p, true
		}
	}
	return charts.Provider{}, false
}
