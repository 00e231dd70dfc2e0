package ops

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// subscriberBuffer is how many events may queue for a slow subscriber before new ones are dropped
	subscriberBuffer = 64
	writeWait        = 5 * time.Second
)

type (
	// Event is the envelope broadcast to every subscriber
	Event struct {
		Type    string      `json:"type"`
		Payload interface{} `json:"payload,omitempty"`
	}

	subscriber struct {
		conn *websocket.Conn
		send chan Event
	}

	// Hub mirrors served responses and plan changes to websocket subscribers
	Hub struct {
		upgrader websocket.Upgrader
		mu       sync.RWMutex
		subs     map[*subscriber]struct{}
		logger   logrus.FieldLogger
	}
)

// NewHub returns a Hub without subscribers
func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs:   map[*subscriber]struct{}{},
		logger: logger,
	}
}

// ServeHTTP upgrades the connection and keeps it subscribed until the peer goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	sub := &subscriber{conn: conn, send: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	h.logger.WithField("remote", r.RemoteAddr).Debug("subscriber connected")

	go h.writeLoop(sub)

	// Subscribers only listen, reading detects the close
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}

	h.remove(sub)
	h.logger.WithField("remote", r.RemoteAddr).Debug("subscriber disconnected")
}

// Notify queues an event for every subscriber without blocking. Payloads must
// not reference request scoped memory.
func (h *Hub) Notify(kind string, payload interface{}) {
	event := Event{Type: kind, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		select {
		case sub.send <- event:
		default:
			h.logger.WithField("type", kind).Warn("subscriber is too slow, dropping event")
		}
	}
}

// Subscribers returns the number of connected subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		_ = sub.conn.Close()
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	for event := range sub.send {
		_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteJSON(event); err != nil {
			h.logger.WithError(err).Debug("failed to write event")
			_ = sub.conn.Close()
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.send)
	}
	h.mu.Unlock()

	_ = sub.conn.Close()
}
