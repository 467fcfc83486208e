// Package hub fans order change events out to websocket subscribers.
package hub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"canteen/internal/model"
)

const (
	sendBuffer = 16
	writeWait  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	connected prometheus.Gauge
	published prometheus.Counter
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// New creates a hub. reg may be nil.
func New(reg prometheus.Registerer) *Hub {
	f := promauto.With(reg)
	return &Hub{
		clients: make(map[*client]struct{}),
		connected: f.NewGauge(prometheus.GaugeOpts{
			Name: "canteen_push_clients",
			Help: "Connected push channel subscribers.",
		}),
		published: f.NewCounter(prometheus.CounterOpts{
			Name: "canteen_push_events_total",
			Help: "Events broadcast on the push channel.",
		}),
	}
}

// ServeHTTP upgrades the request and keeps the subscriber until it goes
// away. Anything the subscriber sends is discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("problem initiating websocket", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	go h.writeLoop(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.connected.Set(float64(len(h.clients)))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.connected.Set(float64(len(h.clients)))
	}
	h.mu.Unlock()
	c.close()
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			slog.Debug("dropping push subscriber", "error", err)
			h.unregister(c)
			return
		}
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// Broadcast announces a change of order to every subscriber. Subscribers
// that cannot keep up are disconnected.
func (h *Hub) Broadcast(eventType string, o *model.Order) {
	id := o.ID
	ev := model.Event{
		Type: eventType,
		Payload: model.EventPayload{
			OrderID:   &id,
			Status:    o.Status,
			CanteenID: o.CanteenID,
			StudentID: o.StudentID,
			UpdatedAt: o.UpdatedAt.Format(time.RFC3339),
			EventType: eventType,
		},
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("encode push event", "error", err)
		return
	}

	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()
	h.published.Inc()

	for _, c := range slow {
		h.unregister(c)
	}
}

// Clients reports the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.unregister(c)
	}
}
