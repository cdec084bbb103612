package geolocation

import (
	"sync"

	"github.com/pkg/errors"

	"marine/gogroup"
	"marine/plotter/log"
	"marine/plotter/signalk"
	"marine/plotter/util/units"
)

var ErrNoLocator = errors.New("missing geolocation API")

// Provider maps device fixes onto the self vessel paths. It never produces
// AIS data.
type Provider struct {
	ctxt    gogroup.GoGroup
	locator Locator

	self   chan signalk.VesselState
	states *signalk.StateFanout
	done   chan struct{}

	mu    sync.Mutex
	state signalk.State
}

func New(ctxt gogroup.GoGroup, locator Locator) (*Provider, error) {
	if locator == nil {
		return nil, ErrNoLocator
	}
	p := &Provider{
		ctxt:    ctxt.Child("geolocation"),
		locator: locator,
		self:    make(chan signalk.VesselState, 1),
		states:  signalk.NewStateFanout(),
		done:    make(chan struct{}),
		state:   signalk.Connecting,
	}
	fixes := make(chan Fix)
	p.ctxt.Go(func(ctxt gogroup.GoGroup) error {
		if err := p.locator.Watch(ctxt, fixes); err != nil {
			log.Error("Geolocation error %v", err)
		}
		return nil
	})
	go p.run(fixes)
	return p, nil
}

func (p *Provider) run(fixes <-chan Fix) {
	defer func() {
		p.setState(signalk.Disconnected)
		close(p.self)
		p.states.Close()
		p.ctxt.Wait()
		close(p.done)
	}()
	for {
		select {
		case fix := <-fixes:
			p.emit(FixState(fix))
			p.setState(signalk.Connected)
		case <-p.ctxt.Done():
			return
		}
	}
}

// FixState converts a fix into self paths; heading is stored in radians.
func FixState(fix Fix) signalk.VesselState {
	state := signalk.VesselState{
		signalk.PathPosition: {
			Value:     signalk.Position{Latitude: fix.Latitude, Longitude: fix.Longitude},
			Timestamp: fix.Time,
		},
	}
	if fix.Speed != nil {
		if sog, ok := units.Float(*fix.Speed); ok {
			state[signalk.PathSpeedOverGround] = signalk.PathValue{Value: sog, Timestamp: fix.Time}
		}
	}
	if fix.Heading != nil {
		if hdg, ok := units.ToRadians(*fix.Heading); ok {
			state[signalk.PathHeadingTrue] = signalk.PathValue{Value: hdg, Timestamp: fix.Time}
		}
	}
	return state
}

func (p *Provider) emit(state signalk.VesselState) {
	select {
	case p.self <- state:
		return
	default:
	}
	select {
	case <-p.self:
	default:
	}
	p.self <- state
}

func (p *Provider) setState(s signalk.State) {
	p.mu.Lock()
	changed := p.state != s
	p.state = s
	p.mu.Unlock()
	if changed {
		p.states.Publish(s)
	}
}

func (p *Provider) Kind() string {
	return "geolocation"
}

func (p *Provider) SelfData() <-chan signalk.VesselState {
	return p.self
}

// AISData never delivers.
func (p *Provider) AISData() <-chan signalk.Partial {
	return nil
}

func (p *Provider) State() signalk.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Provider) WatchState() *signalk.StateWatch {
	return p.states.Watch()
}

func (p *Provider) VesselAISData(string) (signalk.VesselState, bool) {
	return nil, false
}

func (p *Provider) IsSelf(id string) bool {
	return id == "self"
}

func (p *Provider) Snapshot() signalk.Snapshotter {
	return signalk.NoVessels{}
}

func (p *Provider) Close() {
	p.ctxt.Cancel(nil)
}

func (p *Provider) Done() <-chan struct{} {
	return p.done
}
