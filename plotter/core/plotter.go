// Package core runs the plotter loop: the one goroutine that owns the AIS
// reconciler, the overlay and the scene.
package core

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"marine/gogroup"
	"marine/plotter/ais"
	"marine/plotter/charts"
	"marine/plotter/connection"
	"marine/plotter/geo"
	"marine/plotter/log"
	"marine/plotter/navigation"
	"marine/plotter/overlay"
	"marine/plotter/scene"
	"marine/plotter/settings"
	"marine/plotter/signalk"
	"marine/plotter/tracks"
	"marine/plotter/util/clock"
	"marine/plotter/ws"
)

const (
	unitNotAvailable = "n/a"
	trackTimeout     = 30 * time.Second
)

var tr = log.GetTracer("core")

// Hub is satisfied by *ws.Hub.
type Hub interface {
	Publish(env ws.Envelope) error
	Inbound() <-chan ws.Message
}

// ConnectFunc starts the telemetry provider.
type ConnectFunc func(ctxt gogroup.GoGroup, configs []connection.Config, opts connection.Options) (connection.Provider, error)

type Config struct {
	Store *settings.Store
	Hub   Hub
	// Resolver and ChartSources produce the chart providers; a nil
	// Resolver ends chart loading with none.
	Resolver     *charts.Resolver
	ChartSources []charts.Source
	Connection   connection.Options
	Connect      ConnectFunc
	HTTPClient   *http.Client
	Clock        clock.C
}

type Plotter struct {
	cfg   Config
	store *settings.Store
	hub   Hub
	clock clock.C

	provider   connection.Provider
	tracks     tracks.Provider
	scene      *scene.Scene
	overlay    *overlay.Controller
	reconciler *ais.Reconciler
	seeds      chan ais.SeedResult

	rawSelf signalk.VesselState
	self    signalk.VesselState
	state   signalk.State

	detail       *ais.Watch
	detailClient string
}

func New(cfg Config) *Plotter {
	if cfg.Clock == nil {
		cfg.Clock = &clock.Real{}
	}
	if cfg.Connect == nil {
		cfg.Connect = connection.Connect
	}
	if cfg.Connection.Clock == nil {
		cfg.Connection.Clock = cfg.Clock
	}
	return &Plotter{
		cfg:   cfg,
		store: cfg.Store,
		hub:   cfg.Hub,
		clock: cfg.Clock,
		seeds: make(chan ais.SeedResult, 1),
	}
}

// Run connects the configured provider and serves until ctxt is canceled.
// Provider configuration errors are returned before the loop starts.
func (p *Plotter) Run(ctxt gogroup.GoGroup) error {
	s := p.store.Get()
	provider, err := p.cfg.Connect(ctxt, s.Data, p.cfg.Connection)
	if err != nil {
		return errors.Wrap(err, "data provider")
	}
	p.provider = provider
	defer provider.Close()
	log.Info("telemetry provider %v started", provider.Kind())

	p.tracks, err = tracks.Connect(s.Tracks, p.cfg.HTTPClient)
	if err != nil {
		log.Error("track provider disabled: %v", err)
		p.tracks = tracks.Empty{}
	}

	p.reconciler = ais.NewReconciler(provider.IsSelf)
	p.state = provider.State()
	watch := provider.WatchState()
	defer watch.Close()
	sub := p.store.Subscribe()
	defer sub.Close()

	p.scene = scene.New(p.hub)
	p.overlay = overlay.New(p.scene, p.store, s, overlay.Options{
		Clock:          p.clock,
		RoundSelfIcon:  provider.Kind() == connection.TypeGeolocation,
		OnPathDistance: p.publishPathDistance,
	})
	defer p.overlay.Close()
	defer p.closeDetail()

	p.store.SetWaypointMode(false)
	if s.AIS.Enabled {
		p.enableAIS(ctxt)
	}
	p.resolveCharts(ctxt)

	expireC, stopExpire := p.clock.After(overlay.ExpireInterval)
	defer func() { stopExpire() }()

	selfC := provider.SelfData()
	aisC := provider.AISData()
	stateC := watch.C()
	inbound := p.hub.Inbound()
	for {
		select {
		case <-ctxt.Done():
			log.Info("plotter loop stopped")
			return nil
		case state, ok := <-selfC:
			if !ok {
				selfC = nil
				continue
			}
			p.onSelf(state)
		case partial, ok := <-aisC:
			if !ok {
				aisC = nil
				continue
			}
			if d, ok := p.reconciler.Apply(partial); ok {
				p.overlay.AISDelta(d)
			}
		case res := <-p.seeds:
			if d, ok := p.reconciler.Seed(res.Generation, res.Vessels, res.Err); ok {
				p.overlay.AISDelta(d)
			}
		case s := <-sub.C():
			p.onSettings(ctxt, s)
		case state, ok := <-stateC:
			if !ok {
				stateC = nil
				continue
			}
			p.state = state
			p.publish(ws.Envelope{Type: EnvelopeConnection, Data: state})
		case m := <-inbound:
			p.onMessage(ctxt, m)
		case state := <-p.detailC():
			p.onDetail(state)
		case <-expireC:
			p.overlay.ExpireAIS()
			expireC, stopExpire = p.clock.After(overlay.ExpireInterval)
		case <-p.overlay.RelayoutC():
			p.overlay.Relayout()
		}
	}
}

func (p *Plotter) publish(env ws.Envelope) {
	if err := p.hub.Publish(env); err != nil {
		log.Error("could not publish %v: %v", env.Type, err)
	}
}

func (p *Plotter) publishPathDistance(meters float64) {
	p.publish(ws.Envelope{Type: EnvelopePathDistance, Data: meters})
}

func (p *Plotter) onSelf(state signalk.VesselState) {
	p.rawSelf = state
	p.self = navigation.Derive(state, p.overlay.Waypoint())
	p.overlay.SelfUpdate(p.self)
	p.publishInstruments("")
}

func (p *Plotter) publishInstruments(client string) {
	if p.self == nil {
		return
	}
	readings := navigation.Readings(p.self, p.overlay.Settings().Instruments)
	p.publish(ws.Envelope{Type: EnvelopeInstruments, Data: readings, Client: client})
}

func (p *Plotter) onSettings(ctxt gogroup.GoGroup, s settings.Settings) {
	wasAIS := p.reconciler.Enabled()
	p.overlay.SettingsChanged(s)
	switch {
	case s.AIS.Enabled && !wasAIS:
		p.enableAIS(ctxt)
	case !s.AIS.Enabled && wasAIS:
		p.reconciler.Disable()
		p.closeDetail()
	}
	p.publish(ws.Envelope{Type: EnvelopeSettings, Data: s})
	p.publishInstruments("")
}

func (p *Plotter) enableAIS(ctxt gogroup.GoGroup) {
	req, ok := p.reconciler.Enable()
	if !ok {
		return
	}
	ais.Fetch(ctxt, p.provider.Snapshot(), req, p.seeds)
}

func (p *Plotter) resolveCharts(ctxt gogroup.GoGroup) {
	if p.cfg.Resolver == nil {
		p.store.SetChartProviders(nil)
		return
	}
	sources := p.cfg.ChartSources
	hidden := p.store.Get().Hidden()
	ctxt.Go(func(ctxt gogroup.GoGroup) error {
		providers, err := p.cfg.Resolver.Resolve(ctxt, sources, hidden)
		if err != nil {
			log.Warn("chart providers: %v", err)
		}
		if ctxt.Canceled() {
			return nil
		}
		p.store.SetChartProviders(providers)
		tr.Logf("resolved %v chart providers", len(providers))
		return nil
	})
}

func (p *Plotter) onMessage(ctxt gogroup.GoGroup, m ws.Message) {
	switch m.Kind {
	case ws.Join:
		if err := p.scene.SendReplay(m.Client); err != nil {
			log.Error("replay for %v: %v", m.Client, err)
		}
		p.publish(ws.Envelope{Type: EnvelopeSettings, Data: p.store.Get(), Client: m.Client})
		p.publish(ws.Envelope{Type: EnvelopeConnection, Data: p.state, Client: m.Client})
		p.publishInstruments(m.Client)
		return
	case ws.Leave:
		if m.Client == p.detailClient {
			p.closeDetail()
		}
		return
	}
	e, err := DecodeEvent(m.Data)
	if err != nil {
		log.Warn("client %v: %v", m.Client, err)
		p.publish(ws.Envelope{Type: EnvelopeError, Data: err.Error(), Client: m.Client})
		return
	}
	tr.Logf("event %v from %v", e.Type, m.Client)
	p.onEvent(ctxt, m.Client, e)
}

func (p *Plotter) onEvent(ctxt gogroup.GoGroup, client string, e Event) {
	switch e.Type {
	case EventClick:
		before := p.overlay.Waypoint()
		p.overlay.Click(e.LatLon())
		if after := p.overlay.Waypoint(); after != nil && (before == nil || *before != *after) && p.rawSelf != nil {
			p.onSelf(p.rawSelf)
		}
	case EventDragStart:
		p.overlay.DragStart()
	case EventPathPoint:
		p.overlay.MovePathPoint(e.ID, e.LatLon())
	case EventZoomEnd:
		p.overlay.ZoomEnd(e.Zoom)
	case EventMoveEnd:
		p.scene.ViewMoved(e.LatLon())
	case EventSelectVessel:
		p.selectVessel(client, e.ID)
	case EventDeletePath:
		p.overlay.DeletePath()
	case EventToggle:
		p.toggle(e.Setting)
	case EventChart:
		if !p.store.SetChartEnabled(e.ID, e.Enabled) {
			log.Warn("toggle of unknown chart %v", e.ID)
		}
	case EventInstruments:
		p.store.SetInstruments(e.Keys)
	case EventTracks:
		p.queryTracks(ctxt, client, e)
	case EventUnits:
		p.queryUnits(ctxt, client, e.Path)
	case EventClearSettings:
		if err := p.store.Clear(); err != nil {
			log.Error("clear settings: %v", err)
		}
	default:
		log.Warn("client %v: %v %v", client, ErrUnknownEvent, e.Type)
	}
}

func (p *Plotter) toggle(setting string) {
	switch setting {
	case ToggleFullscreen:
		p.store.ToggleFullscreen()
	case ToggleDrawMode:
		p.store.ToggleDrawMode()
	case ToggleCourse:
		p.store.ToggleCourse()
	case ToggleFollow:
		p.store.ToggleFollow()
	case ToggleMenu:
		p.store.ToggleMenu()
	case ToggleInstruments:
		p.store.ToggleInstruments()
	case ToggleExtensionLine:
		p.store.CycleExtensionLine()
	case ToggleAIS:
		p.store.ToggleAIS()
	case ToggleWaypoint:
		p.store.SetWaypointMode(!p.overlay.Settings().Waypoint)
	case ToggleWorldBase:
		p.store.SetWorldBaseChart(!p.overlay.Settings().WorldBaseChart)
	default:
		log.Warn("unknown setting %v", setting)
	}
}

func (p *Plotter) selectVessel(client, id string) {
	p.closeDetail()
	p.overlay.SelectVessel(id)
	if id == "" || !p.reconciler.Enabled() {
		return
	}
	p.detail = p.reconciler.Watch(id)
	p.detailClient = client
}

func (p *Plotter) detailC() <-chan signalk.VesselState {
	if p.detail == nil {
		return nil
	}
	return p.detail.C()
}

func (p *Plotter) onDetail(state signalk.VesselState) {
	if state == nil {
		p.publish(ws.Envelope{Type: EnvelopeAISDetail, Client: p.detailClient})
		p.closeDetail()
		return
	}
	p.publish(ws.Envelope{
		Type:   EnvelopeAISDetail,
		Data:   ais.NewDetail(p.detail.ID(), state),
		Client: p.detailClient,
	})
}

func (p *Plotter) closeDetail() {
	if p.detail != nil {
		p.detail.Close()
	}
	p.detail, p.detailClient = nil, ""
}

func (p *Plotter) queryTracks(ctxt gogroup.GoGroup, client string, e Event) {
	bounds, err := geo.ParseBounds(e.Bounds)
	if err != nil || bounds == nil {
		p.publish(ws.Envelope{Type: EnvelopeError, Data: "invalid track bbox", Client: client})
		return
	}
	provider := p.tracks
	ctxt.Go(func(ctxt gogroup.GoGroup) error {
		ctx, cancel := context.WithTimeout(ctxt, trackTimeout)
		defer cancel()
		fc, err := provider.QueryTracks(ctx, *bounds, e.Paths)
		if err != nil {
			log.Warn("tracks: %v", err)
			return nil
		}
		p.publish(ws.Envelope{Type: EnvelopeTracks, Data: fc, Client: client})
		return nil
	})
}

func (p *Plotter) queryUnits(ctxt gogroup.GoGroup, client, path string) {
	provider := p.tracks
	ctxt.Go(func(ctxt gogroup.GoGroup) error {
		ctx, cancel := context.WithTimeout(ctxt, trackTimeout)
		defer cancel()
		unit, err := provider.Units(ctx, path)
		if err != nil {
			if errors.Cause(err) != tracks.ErrUnitNotAvailable {
				log.Warn("units of %v: %v", path, err)
			}
			unit = unitNotAvailable
		}
		p.publish(ws.Envelope{Type: EnvelopeUnits, Data: UnitsReply{Path: path, Unit: unit}, Client: client})
		return nil
	})
}
