// Package connection builds the telemetry provider named by the plotter
// settings.
package connection

import (
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"marine/gogroup"
	"marine/plotter/geolocation"
	"marine/plotter/signalk"
	"marine/plotter/util/clock"
)

const (
	TypeSignalK     = "signalk"
	TypeGeolocation = "geolocation"
)

var (
	ErrTooManyProviders = errors.New("only 1 data provider supported")
	ErrUnsupported      = errors.New("unsupported provider")

	validate = validator.New()
)

// Provider is the common face of every telemetry source.
type Provider interface {
	Kind() string
	SelfData() <-chan signalk.VesselState
	AISData() <-chan signalk.Partial
	State() signalk.State
	WatchState() *signalk.StateWatch
	VesselAISData(id string) (signalk.VesselState, bool)
	IsSelf(id string) bool
	Snapshot() signalk.Snapshotter
	Close()
	Done() <-chan struct{}
}

// Config is one entry of the "data" settings list.
type Config struct {
	Type    string `json:"type" yaml:"type" mapstructure:"type" validate:"required"`
	Address string `json:"address,omitempty" yaml:"address,omitempty" mapstructure:"address" validate:"required_if=Type signalk"`
	// Device is the gpsd address of a geolocation provider.
	Device string `json:"device,omitempty" yaml:"device,omitempty" mapstructure:"device"`
}

// Options carries process wide collaborators of the providers.
type Options struct {
	DefaultHost string
	Clock       clock.C
	HTTPClient  *http.Client
	// Locator overrides the gpsd locator of geolocation providers.
	Locator geolocation.Locator
}

// Decode reads provider configs out of generic settings values.
func Decode(raw interface{}) ([]Config, error) {
	var configs []Config
	if raw == nil {
		return configs, nil
	}
	if err := mapstructure.Decode(raw, &configs); err != nil {
		return nil, errors.Wrap(err, "malformed data providers")
	}
	return configs, nil
}

// Connect validates the configured providers and starts the single
// supported one. No providers yields an empty provider.
func Connect(ctxt gogroup.GoGroup, configs []Config, opts Options) (Provider, error) {
	if len(configs) > 1 {
		return nil, ErrTooManyProviders
	}
	if len(configs) == 0 {
		return NewEmpty(), nil
	}
	cfg := configs[0]
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid data provider")
	}
	switch cfg.Type {
	case TypeSignalK:
		conn, err := signalk.Dial(ctxt, signalk.Config{
			Address:     cfg.Address,
			DefaultHost: opts.DefaultHost,
			Clock:       opts.Clock,
			HTTPClient:  opts.HTTPClient,
		})
		if err != nil {
			return nil, err
		}
		return conn, nil
	case TypeGeolocation:
		locator := opts.Locator
		if locator == nil {
			locator = &geolocation.GPSD{Address: cfg.Device}
		}
		p, err := geolocation.New(ctxt, locator)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "%v", cfg.Type)
}

// Empty is the provider used when no telemetry source is configured: one
// empty self snapshot and nothing else.
type Empty struct {
	self   chan signalk.VesselState
	done   chan struct{}
	once   sync.Once
	fanout *signalk.StateFanout
}

func NewEmpty() *Empty {
	e := &Empty{
		self:   make(chan signalk.VesselState, 1),
		done:   make(chan struct{}),
		fanout: signalk.NewStateFanout(),
	}
	e.self <- signalk.VesselState{}
	return e
}

func (e *Empty) Kind() string { return "empty" }

func (e *Empty) SelfData() <-chan signalk.VesselState { return e.self }

func (e *Empty) AISData() <-chan signalk.Partial { return nil }

func (e *Empty) State() signalk.State { return signalk.Connected }

func (e *Empty) WatchState() *signalk.StateWatch { return e.fanout.Watch() }

func (e *Empty) VesselAISData(string) (signalk.VesselState, bool) { return nil, false }

func (e *Empty) IsSelf(id string) bool { return id == "self" }

func (e *Empty) Snapshot() signalk.Snapshotter { return signalk.NoVessels{} }

func (e *Empty) Done() <-chan struct{} { return e.done }

func (e *Empty) Close() {
	e.once.Do(func() {
		e.fanout.Close()
		close(e.done)
	})
}
