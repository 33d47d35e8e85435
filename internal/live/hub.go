// Package live implements the Supervisor Live Feed (C9): a WebSocket hub
// broadcasting periodic queue/agent snapshots, adapted from this stack's
// generic broadcast-hub shape.
package live

import (
	"github.com/oriontel/dialer-router/internal/metrics"
	"github.com/rs/zerolog"
)

// Hub tracks connected supervisor clients and broadcasts snapshot
// payloads to all of them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	logger     zerolog.Logger
}

// NewHub builds an empty Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With().Str("component", "live.hub").Logger(),
	}
}

// Run processes registrations and broadcasts until stopped; call it in its
// own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			metrics.LiveFeedConnections.Set(float64(len(h.clients)))
			h.logger.Debug().Int("clients", len(h.clients)).Msg("client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				metrics.LiveFeedConnections.Set(float64(len(h.clients)))
				h.logger.Debug().Int("clients", len(h.clients)).Msg("client unregistered")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				client.safeSend(message)
			}
		}
	}
}

// Broadcast pushes message to every connected client.
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return len(h.clients)
}
