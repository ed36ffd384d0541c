// Package realtime pushes per-user events to connected browsers over SSE or WebSocket.
package realtime

import (
	"sync"
	"time"

	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
)

// EventType names a pushed event.
type EventType string

const (
	EventConnected      EventType = "connected"
	EventCountersUpdate EventType = "counters_update"
	EventNotification   EventType = "notification"
)

const clientBuffer = 32

// Event is one pushed message.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

type client struct {
	userID uuid.UUID
	events chan Event
}

// Hub is the per-user client registry. Delivery is best effort: a full
// client buffer drops the event for that client.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client
	log     *logger.Logger
	now     func() time.Time
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID][]*client),
		log:     log,
		now:     time.Now,
	}
}

func (h *Hub) register(userID uuid.UUID) *client {
	c := &client{userID: userID, events: make(chan Event, clientBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[userID] = append(h.clients[userID], c)
	return c
}

// unregister removes c and closes its channel. Safe to call after Close.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[c.userID]
	for i, cl := range clients {
		if cl == c {
			h.clients[c.userID] = append(clients[:i], clients[i+1:]...)
			if len(h.clients[c.userID]) == 0 {
				delete(h.clients, c.userID)
			}
			close(c.events)
			return
		}
	}
}

// Connected returns the number of open connections for a user.
func (h *Hub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Publish sends event to every connection of userID.
func (h *Hub) Publish(userID uuid.UUID, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients[userID] {
		select {
		case c.events <- event:
		default:
			h.log.Warn("realtime buffer full, event dropped", "userId", userID, "type", event.Type)
		}
	}
}

// EmitCountersUpdate pushes a counters_update event carrying ts plus payload
// to each user. It never blocks.
func (h *Hub) EmitCountersUpdate(userIDs []uuid.UUID, payload map[string]any) {
	data := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		data[k] = v
	}
	data["ts"] = h.now().UnixMilli()

	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		h.Publish(id, Event{Type: EventCountersUpdate, Data: data})
	}
}

// PublishNotification pushes a stored in-app notification to its owner.
func (h *Hub) PublishNotification(userID uuid.UUID, notification any) {
	h.Publish(userID, Event{Type: EventNotification, Data: notification})
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	h.clients = make(map[uuid.UUID][]*client)
}
