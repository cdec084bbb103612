// Package ws fans plotter messages out to browser websockets and collects
// their input events.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"

	"marine/gogroup"
	"marine/plotter/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var tr = log.GetTracer("ws")

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Envelope is one outbound message. An envelope with a Client goes to that
// client only.
type Envelope struct {
	Type   string      `json:"type"`
	Data   interface{} `json:"data,omitempty"`
	Client string      `json:"-"`
}

type Kind int

const (
	Join Kind = iota
	Data
	Leave
)

// Message is one inbound event of a client.
type Message struct {
	Kind   Kind
	Client string
	Data   []byte
}

type Hub struct {
	ctxt    gogroup.GoGroup
	mu      sync.RWMutex
	clients map[string]*Client
	inbound chan Message
}

func NewHub(ctxt gogroup.GoGroup) *Hub {
	return &Hub{
		ctxt:    ctxt,
		clients: make(map[string]*Client),
		inbound: make(chan Message, sendBuffer),
	}
}

// Inbound delivers joins, client messages and leaves in arrival order.
func (h *Hub) Inbound() <-chan Message {
	return h.inbound
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish marshals env and queues it for its recipients. A client whose
// queue is full is disconnected.
func (h *Hub) Publish(env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return errors.Wrapf(err, "marshal %v", env.Type)
	}
	h.mu.RLock()
	var targets []*Client
	if env.Client != "" {
		if c, ok := h.clients[env.Client]; ok {
			targets = append(targets, c)
		}
	} else {
		targets = make([]*Client, 0, len(h.clients))
		for _, c := range h.clients {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		select {
		case c.send <- payload:
		default:
			log.Warn("websocket client %v is too slow, dropping it", c.id)
			h.drop(c)
		}
	}
	return nil
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Warn("websocket upgrade failed: %v", err)
		return
	}
	c := &Client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		gone: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	tr.Logf("client %v connected from %v", c.id, req.RemoteAddr)
	h.deliver(Message{Kind: Join, Client: c.id})

	ctxt := h.ctxt.Child("ws-" + c.id)
	ctxt.Go(func(ctxt gogroup.GoGroup) error {
		c.writeLoop(ctxt)
		return nil
	})
	ctxt.Go(func(ctxt gogroup.GoGroup) error {
		h.readLoop(c)
		ctxt.Cancel(nil)
		return nil
	})
}

func (h *Hub) deliver(m Message) {
	select {
	case h.inbound <- m:
	case <-h.ctxt.Done():
	}
}

func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()
	if ok {
		close(c.gone)
	}
}

// readLoop is also how a closed socket is noticed.
func (h *Hub) readLoop(c *Client) {
	defer func() {
		h.drop(c)
		c.conn.Close()
		tr.Logf("client %v disconnected", c.id)
		h.deliver(Message{Kind: Leave, Client: c.id})
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket client %v: %v", c.id, err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		h.deliver(Message{Kind: Data, Client: c.id, Data: data})
	}
}

type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	// gone is closed once the hub forgets the client.
	gone chan struct{}
}

func (c *Client) writeLoop(ctxt gogroup.GoGroup) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
		c.conn.Close()
	}()
	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		case <-c.gone:
			return
		case <-ctxt.Done():
			return
		}
	}
}
