package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/modelgov/govdash/pkg/dashboard"
)

const writeWait = 10 * time.Second

// Event is a message pushed to websocket subscribers.
type Event struct {
	Type     string          `json:"type"`
	LoadedAt time.Time       `json:"loadedAt"`
	Source   string          `json:"source"`
	Stats    dashboard.Stats `json:"stats"`
}

// NewSnapshotEvent describes a freshly loaded snapshot.
func NewSnapshotEvent(snap *dashboard.Snapshot) Event {
	return Event{
		Type:     "snapshot",
		LoadedAt: snap.LoadedAt,
		Source:   snap.Source,
		Stats:    snap.Stats,
	}
}

// EventHub fans snapshot events out to connected dashboards.
type EventHub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	mu       sync.RWMutex
	conns    map[*websocket.Conn]*sync.Mutex
}

// NewEventHub creates an empty hub.
func NewEventHub(logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		conns:  map[*websocket.Conn]*sync.Mutex{},
	}
}

// HandleWS upgrades the request and subscribes the connection.
func (h *EventHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	h.mu.Lock()
	h.conns[c] = &sync.Mutex{}
	n := len(h.conns)
	h.mu.Unlock()
	h.logger.Debug("event subscriber connected", "remote", r.RemoteAddr, "subscribers", n)
	go h.readLoop(c)
}

// Subscribers returns the number of connected subscribers.
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast sends ev to every subscriber. Connections that fail to accept
// the write are dropped.
func (h *EventHub) Broadcast(ev Event) {
	h.mu.RLock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.conns))
	for c, wmu := range h.conns {
		targets[c] = wmu
	}
	h.mu.RUnlock()

	for c, wmu := range targets {
		wmu.Lock()
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.WriteJSON(ev)
		wmu.Unlock()
		if err != nil {
			h.logger.Debug("event write failed", "remote", c.RemoteAddr().String(), "error", err)
			h.remove(c)
		}
	}
}

// Close disconnects every subscriber.
func (h *EventHub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = map[*websocket.Conn]*sync.Mutex{}
	h.mu.Unlock()
	for c := range conns {
		_ = c.Close()
	}
}

// readLoop discards client messages and unsubscribes on disconnect.
func (h *EventHub) readLoop(c *websocket.Conn) {
	defer h.remove(c)
	for {
		if _, _, err := c.NextReader(); err != nil {
			return
		}
	}
}

func (h *EventHub) remove(c *websocket.Conn) {
	_ = c.Close()
	h.mu.Lock()
	_, ok := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	if ok {
		h.logger.Debug("event subscriber disconnected", "remote", c.RemoteAddr().String())
	}
}
