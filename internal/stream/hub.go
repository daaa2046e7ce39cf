// Package stream pushes run snapshots to WebSocket clients.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/maritime-simulator/internal/logging"
	"github.com/signalsfoundry/maritime-simulator/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	readLimit  = 1 << 10
)

// Message is the JSON frame sent to clients.
type Message struct {
	Type      string            `json:"type"`
	TickLabel string            `json:"tick_label"`
	Snapshot  model.RunSnapshot `json:"snapshot"`
}

// Hub fans snapshots out to connected clients. Slow clients only ever see
// the most recent snapshot; Publish never blocks on a connection.
type Hub struct {
	log       logging.Logger
	upgrader  websocket.Upgrader
	onClients func(int)

	mu      sync.Mutex
	latest  []byte
	clients map[*client]struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l logging.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithClientGauge registers a hook called with the client count whenever it
// changes.
func WithClientGauge(f func(int)) Option {
	return func(h *Hub) { h.onClients = f }
}

// WithCheckOrigin overrides the upgrader origin check. By default any origin
// is accepted.
func WithCheckOrigin(f func(*http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = f }
}

// NewHub returns an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		log:     logging.Noop(),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish encodes snap once and queues it for every client. It has the
// shape of a run.TickObserver.
func (h *Hub) Publish(snap model.RunSnapshot) {
	payload, err := json.Marshal(Message{Type: "snapshot", TickLabel: snap.Status.TickLabel(), Snapshot: snap})
	if err != nil {
		h.log.Warn(context.Background(), "encode snapshot", logging.Err(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = payload
	for c := range h.clients {
		c.offer(payload)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams snapshots until the client
// goes away. The latest snapshot, if any, is sent first.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, log := logging.WithRequestLogger(r.Context(), h.log)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn(ctx, "websocket upgrade failed", logging.Err(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 1), done: make(chan struct{})}
	h.add(c)
	log.Info(ctx, "stream client connected", logging.String("remote", r.RemoteAddr))

	go c.readPump()
	c.writePump()

	h.remove(c)
	_ = conn.Close()
	log.Info(ctx, "stream client disconnected", logging.String("remote", r.RemoteAddr))
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.latest != nil {
		c.offer(h.latest)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.reportClients(n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	h.reportClients(n)
}

func (h *Hub) reportClients(n int) {
	if h.onClients != nil {
		h.onClients(n)
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// offer replaces any undelivered payload with p.
func (c *client) offer(p []byte) {
	for {
		select {
		case c.send <- p:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

// readPump discards client frames and closes done when the peer goes away.
func (c *client) readPump() {
	defer close(c.done)
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case p := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, p); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
