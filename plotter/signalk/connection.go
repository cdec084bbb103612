package signalk

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"marine/gogroup"
	"marine/plotter/log"
	"marine/plotter/util/clock"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	DefaultDebounce = 1000 * time.Millisecond

	aisBuffer = 256
)

var (
	ErrEmptyAddress = errors.New("empty SignalK address")

	tr = log.GetTracer("signalk")
)

type Config struct {
	// Address is host:port, optionally with a scheme. ":port" resolves
	// against DefaultHost.
	Address     string
	DefaultHost string
	// Debounce bounds how often self snapshots are emitted.
	Debounce time.Duration
	Clock    clock.C
	Dialer   *websocket.Dialer
	// HTTPClient is used by Snapshot.
	HTTPClient *http.Client
}

// Endpoint is a resolved provider address.
type Endpoint struct {
	Secure bool
	Host   string
}

// ParseAddress resolves a configured address. Relative addresses such as
// ":3000" take the host from defaultHost.
func ParseAddress(address, defaultHost string) (Endpoint, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Endpoint{}, ErrEmptyAddress
	}
	ep := Endpoint{}
	if i := strings.Index(address, "://"); i >= 0 {
		switch strings.ToLower(address[:i]) {
		case "https", "wss":
			ep.Secure = true
		case "http", "ws":
		default:
			return Endpoint{}, errors.Errorf("unsupported SignalK address scheme: %v", address)
		}
		address = strings.TrimSuffix(address[i+3:], "/")
	}
	if strings.HasPrefix(address, ":") {
		if defaultHost == "" {
			defaultHost = "localhost"
		}
		address = net.JoinHostPort(defaultHost, address[1:])
	}
	if address == "" {
		return Endpoint{}, ErrEmptyAddress
	}
	ep.Host = address
	return ep, nil
}

// StreamURL is the delta stream; the initial subscription is "none" and
// the connection subscribes explicitly.
func (e Endpoint) StreamURL() string {
	u := url.URL{Scheme: "ws", Host: e.Host, Path: "/signalk/v1/stream", RawQuery: "subscribe=none"}
	if e.Secure {
		u.Scheme = "wss"
	}
	return u.String()
}

// HTTPURL is an absolute URL to a REST path of the server.
func (e Endpoint) HTTPURL(path string) string {
	u := url.URL{Scheme: "http", Host: e.Host, Path: path}
	if e.Secure {
		u.Scheme = "https"
	}
	return u.String()
}

func (e Endpoint) Base() string {
	return e.HTTPURL("")
}

// Connection is one live delta stream. It is not reconnected: once it ends
// the state stays Disconnected and a new Connection is needed.
type Connection struct {
	cfg      Config
	endpoint Endpoint
	ctxt     gogroup.GoGroup

	self   chan VesselState
	ais    chan Partial
	errs   chan error
	states *StateFanout
	done   chan struct{}

	mu      sync.Mutex
	state   State
	selfID  string
	vessels map[string]VesselState
}

// Dial validates cfg and starts connecting in the background. Only
// configuration errors are returned; transport errors arrive on Errors().
func Dial(ctxt gogroup.GoGroup, cfg Config) (*Connection, error) {
	ep, err := ParseAddress(cfg.Address, cfg.DefaultHost)
	if err != nil {
		return nil, err
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Clock == nil {
		cfg.Clock = &clock.Real{}
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	c := &Connection{
		cfg:      cfg,
		endpoint: ep,
		ctxt:     ctxt.Child("signalk"),
		self:     make(chan VesselState, 1),
		ais:      make(chan Partial, aisBuffer),
		errs:     make(chan error, 4),
		states:   NewStateFanout(),
		done:     make(chan struct{}),
		state:    Connecting,
		vessels:  make(map[string]VesselState),
	}
	c.ctxt.Go(c.run)
	return c, nil
}

func (c *Connection) Kind() string {
	return "signalk"
}

func (c *Connection) Endpoint() Endpoint {
	return c.endpoint
}

// SelfData delivers debounced snapshots of the accumulated self state. Only
// the latest unread snapshot is kept. Closed when the connection ends.
func (c *Connection) SelfData() <-chan VesselState {
	return c.self
}

// AISData delivers per-vessel partial updates in arrival order.
func (c *Connection) AISData() <-chan Partial {
	return c.ais
}

// Errors delivers transport errors. A full buffer drops the error after
// logging it.
func (c *Connection) Errors() <-chan error {
	return c.errs
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) WatchState() *StateWatch {
	return c.states.Watch()
}

// SelfID is the vessel id announced by the server hello, empty until seen.
func (c *Connection) SelfID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID
}

// IsSelf reports whether id names the own vessel of this connection.
func (c *Connection) IsSelf(id string) bool {
	if id == "self" {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID != "" && c.selfID == id
}

// VesselAISData is the accumulated state of one AIS vessel.
func (c *Connection) VesselAISData(id string) (VesselState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.vessels[id]
	if !ok || len(state) == 0 {
		return nil, false
	}
	return state.Clone(), true
}

// Snapshot reads all vessels known to the server.
func (c *Connection) Snapshot() Snapshotter {
	return &SnapshotClient{URL: c.endpoint.HTTPURL("/signalk/v1/api/vessels"), Client: c.cfg.HTTPClient}
}

// Close tears the connection down.
func (c *Connection) Close() {
	c.ctxt.Cancel(nil)
}

// Done is closed once the connection has ended.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed {
		tr.Logf("state %v", s)
		c.states.Publish(s)
	}
}

func (c *Connection) reportError(err error) {
	select {
	case c.errs <- err:
	default:
		log.Error("signalk %v: dropped error %v", c.endpoint.Host, err)
	}
}

type frame struct {
	msg DeltaMessage
	err error
}

func (c *Connection) run(ctxt gogroup.GoGroup) error {
	defer func() {
		c.setState(Disconnected)
		close(c.self)
		close(c.ais)
		c.states.Close()
		close(c.done)
	}()
	c.states.Publish(Connecting)

	conn, _, err := c.cfg.Dialer.DialContext(ctxt, c.endpoint.StreamURL(), nil)
	if err != nil {
		err = errors.Wrapf(err, "dial %v", c.endpoint.StreamURL())
		log.Warn("%v", err)
		c.reportError(err)
		return nil
	}
	defer conn.Close()

	for _, req := range []SubscribeRequest{Subscribe(ContextSelf), Subscribe(ContextVessels)} {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(req); err != nil {
			err = errors.Wrap(err, "subscribe")
			c.reportError(err)
			return nil
		}
	}
	log.Info("signalk connected to %v", c.endpoint.Host)
	c.setState(Connected)

	frames := make(chan frame)
	stop := make(chan struct{})
	defer close(stop)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go readFrames(conn, frames, stop)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	var (
		accumulated = make(VesselState)
		timer       <-chan time.Time
		stopTimer   = func() {}
	)
	defer func() { stopTimer() }()

	for {
		select {
		case f := <-frames:
			if f.err != nil {
				if !websocket.IsCloseError(f.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					err := errors.Wrap(f.err, "signalk stream")
					log.Warn("%v", err)
					c.reportError(err)
				}
				return nil
			}
			conn.SetReadDeadline(time.Now().Add(pongWait))
			if c.handle(ctxt, &f.msg, accumulated) && timer == nil {
				timer, stopTimer = c.cfg.Clock.After(c.cfg.Debounce)
			}
		case <-timer:
			timer, stopTimer = nil, func() {}
			c.emitSelf(accumulated.Clone())
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				c.reportError(errors.Wrap(err, "ping"))
				return nil
			}
		case <-ctxt.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return nil
		}
	}
}

func readFrames(conn *websocket.Conn, out chan<- frame, stop <-chan struct{}) {
	for {
		var f frame
		_, data, err := conn.ReadMessage()
		if err != nil {
			f.err = err
		} else if err := json.Unmarshal(data, &f.msg); err != nil {
			tr.Logf("undecodable frame %q", data)
			continue
		}
		select {
		case out <- f:
		case <-stop:
			return
		}
		if f.err != nil {
			return
		}
	}
}

// handle folds one message and reports whether the self state changed.
func (c *Connection) handle(ctxt gogroup.GoGroup, msg *DeltaMessage, accumulated VesselState) bool {
	if msg.Self != "" {
		c.latchSelf(msg.Self)
	}
	if msg.Context == "" {
		return false
	}
	values := msg.Values()
	if values == nil {
		return false
	}
	id := VesselIDFromContext(msg.Context)
	if c.IsSelf(id) {
		accumulated.Merge(values)
		return true
	}
	if !strings.HasPrefix(msg.Context, contextPrefix) {
		return false
	}
	c.mu.Lock()
	vessel := c.vessels[id]
	if vessel == nil {
		vessel = make(VesselState)
		c.vessels[id] = vessel
	}
	vessel.Merge(values)
	c.mu.Unlock()

	select {
	case c.ais <- Partial{id: values}:
	case <-ctxt.Done():
	}
	return false
}

func (c *Connection) latchSelf(self string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selfID != "" {
		return
	}
	c.selfID = VesselIDFromContext(self)
	delete(c.vessels, c.selfID)
	log.Info("signalk self vessel %v", c.selfID)
}

func (c *Connection) emitSelf(state VesselState) {
	select {
	case c.self <- state:
		return
	default:
	}
	select {
	case <-c.self:
	default:
	}
	c.self <- state
}
