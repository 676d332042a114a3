package main

import (
	"sync"

	"github.com/modelibr/modelibr/common/logger"
)

// Hub maintains active WebSocket connections and broadcasts thumbnail status
// events to the clients subscribed to each target kind
type Hub struct {
	// Map: target kind → clients subscribed to it
	connections map[string][]*Client
	mutex       sync.RWMutex
	log         *logger.Logger

	// Channel for registering clients
	register chan *Client

	// Channel for unregistering clients
	unregister chan *Client

	// Channel for broadcasting messages
	broadcast chan *Message
}

// Message is an event payload addressed to one target kind
type Message struct {
	Kind string
	Data []byte
}

// NewHub creates a new Hub instance
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		connections: make(map[string][]*Client),
		log:         log,
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.log.Info("hub started")

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToKind(message)
		}
	}
}

// registerClient adds a client under every kind it subscribed to
func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, kind := range client.kinds {
		h.connections[kind] = append(h.connections[kind], client)
	}
	h.log.Info("client registered", "kinds", client.kinds)
}

// unregisterClient removes a client from all its kinds
func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	removed := false
	for _, kind := range client.kinds {
		clients := h.connections[kind]
		for i, c := range clients {
			if c == client {
				h.connections[kind] = append(clients[:i], clients[i+1:]...)
				removed = true
				break
			}
		}
		if len(h.connections[kind]) == 0 {
			delete(h.connections, kind)
		}
	}

	if removed {
		close(client.send)
		h.log.Info("client unregistered", "kinds", client.kinds)
	}
}

// broadcastToKind sends a message to every client subscribed to the kind
func (h *Hub) broadcastToKind(message *Message) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := h.connections[message.Kind]
	if len(clients) == 0 {
		return
	}

	h.log.Debug("broadcasting", "kind", message.Kind, "client_count", len(clients))

	for _, client := range clients {
		select {
		case client.send <- message.Data:
		default:
			// Client's send buffer is full; drop the event rather than block
			// the hub. Status is re-queryable over the REST API.
			h.log.Warn("client send buffer full, dropping event", "kind", message.Kind)
		}
	}
}

// ConnectionCount returns the total number of active subscriptions
func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	count := 0
	for _, clients := range h.connections {
		count += len(clients)
	}
	return count
}

// KindCount returns the number of kinds with at least one subscriber
func (h *Hub) KindCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.connections)
}
