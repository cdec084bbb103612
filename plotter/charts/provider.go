// Package charts serves MBTiles charts and resolves the chart providers a
// plotter client displays.
package charts

import (
	"github.com/pkg/errors"

	"marine/plotter/geo"
)

const (
	TypeLocal   = "local"
	TypeSignalK = "signalk"
	TypeTiles   = "tilelayer"

	MinZoom = 3
	MaxZoom = 16
)

var ErrEmptyAddress = errors.New("empty chart provider address")

// Provider is one chart layer offered to the map.
type Provider struct {
	ID          string    `json:"id" mapstructure:"id"`
	Name        string    `json:"name" mapstructure:"name"`
	TilemapURL  string    `json:"tilemapUrl" mapstructure:"tilemapUrl"`
	Index       int       `json:"index" mapstructure:"index"`
	Type        string    `json:"type" mapstructure:"type"`
	MinZoom     int       `json:"minzoom,omitempty" mapstructure:"minzoom"`
	MaxZoom     int       `json:"maxzoom,omitempty" mapstructure:"maxzoom"`
	Center      []float64 `json:"center,omitempty" mapstructure:"center"`
	Description string    `json:"description,omitempty" mapstructure:"description"`
	Format      string    `json:"format,omitempty" mapstructure:"format"`
	Bounds      []float64 `json:"bounds,omitempty" mapstructure:"bounds"`
	Attribution string    `json:"attribution,omitempty" mapstructure:"attribution"`
	Scheme      string    `json:"scheme,omitempty" mapstructure:"scheme"`
	Enabled     bool      `json:"enabled" mapstructure:"enabled"`
}

// Box returns the parsed bounds, nil when the provider has none.
func (p Provider) Box() (*geo.Bounds, error) {
	if p.Bounds == nil {
		return nil, nil
	}
	b, err := geo.ParseBounds(p.Bounds)
	return b, errors.Wrapf(err, "chart %v", p.ID)
}

// Source is a configured chart origin. Sources of type local and signalk
// expand to the charts they list, anything else is used as is.
type Source struct {
	Provider `mapstructure:",squash"`
	Address  string `json:"address,omitempty" mapstructure:"address"`
}
