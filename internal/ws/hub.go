/**
 * @description
 * This file implements the websocket hub for the live activity feed. Clients
 * register on upgrade and the hub fans activity events out from a single
 * goroutine; the feed itself is delivered to admin connections only, while
 * member connections stay open for keepalives. Slow clients are dropped
 * rather than allowed to block the hub.
 *
 * @dependencies
 * - github.com/gorilla/websocket: Connection upgrade and wire protocol.
 * - internal/metrics: Connected-clients gauge.
 */

package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// sendBuffer is the per-client queue; a client that falls this far
	// behind is disconnected.
	sendBuffer = 32
)

// activityEvent is the wire format of one feed entry.
type activityEvent struct {
	Event   string    `json:"event"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// client is one connected websocket peer.
type client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	admin bool
}

// Hub owns every websocket connection and serializes all map access through
// its run loop.
type Hub struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	upgrader websocket.Upgrader
	done     chan struct{}
}

// NewHub creates the hub. Call Run in a goroutine before accepting
// connections.
func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		logger:     logger,
		metrics:    m,
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Browsers enforce bearer auth before the upgrade; the
				// origin itself is not a trust boundary here.
				return true
			},
		},
		done: make(chan struct{}),
	}
}

// Run is the hub's event loop. It exits when Close is called.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.metrics.WSClients.Inc()
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.metrics.WSClients.Dec()
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				if !c.admin {
					continue
				}
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
					h.metrics.WSClients.Dec()
				}
			}
		case <-h.done:
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
				h.metrics.WSClients.Dec()
			}
			return
		}
	}
}

// Close stops the run loop and disconnects every client.
func (h *Hub) Close() {
	close(h.done)
}

// Broadcast queues an activity event for the admin feed. It never blocks the
// caller; when the hub is saturated the event is dropped.
func (h *Hub) Broadcast(event string, payload any) {
	data, err := json.Marshal(activityEvent{Event: event, Payload: payload, At: time.Now().UTC()})
	if err != nil {
		h.logger.Error("activity event marshal failed", "event", event, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("activity feed saturated, dropping event", "event", event)
	}
}

// HandleConnection upgrades the request and attaches the connection to the
// hub. admin controls whether the connection receives the activity feed.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request, admin bool) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), admin: admin}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// readPump drains inbound frames so pong handlers run and closed peers are
// noticed. Clients do not send application messages.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes queued events and keepalive pings to the peer.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
