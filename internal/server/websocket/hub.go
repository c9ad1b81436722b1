// Package websocket pushes transfer state-machine updates to subscribed
// clients. The hub implements interfaces.StatusBroadcaster and never blocks
// the transfer path: slow clients drop messages, dead clients get reaped.
package websocket

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/radlabs/rampd/internal/domain"
)

type Hub struct {
	clients   map[string]*Client
	clientsMu sync.RWMutex
	logger    zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	hub := &Hub{
		clients: make(map[string]*Client),
		logger:  logger.With().Str("component", "ws_hub").Logger(),
	}
	go hub.reapInactive()
	return hub
}

func (h *Hub) AddClient(client *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[client.ID()] = client
	h.logger.Info().
		Str("client_id", client.ID()).
		Int("total_clients", len(h.clients)).
		Msg("WebSocket client added")
}

func (h *Hub) RemoveClient(clientID string) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if client, exists := h.clients[clientID]; exists {
		client.Close()
		delete(h.clients, clientID)
		h.logger.Info().
			Str("client_id", clientID).
			Int("total_clients", len(h.clients)).
			Msg("WebSocket client removed")
	}
}

// Broadcast fans the update out to every connected client. Send failures are
// per-client and never propagate back to the caller.
func (h *Hub) Broadcast(update *domain.StatusUpdate) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clientsMu.RUnlock()

	for _, client := range clients {
		if err := client.Send(update); err != nil {
			h.logger.Debug().
				Err(err).
				Str("client_id", client.ID()).
				Msg("Dropped status update for client")
			if !client.IsActive() {
				h.RemoveClient(client.ID())
			}
		}
	}
}

func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) reapInactive() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		h.clientsMu.Lock()
		removed := 0
		for clientID, client := range h.clients {
			if !client.IsActive() {
				client.Close()
				delete(h.clients, clientID)
				removed++
			}
		}
		if removed > 0 {
			h.logger.Info().
				Int("removed_count", removed).
				Int("active_clients", len(h.clients)).
				Msg("Reaped inactive WebSocket clients")
		}
		h.clientsMu.Unlock()
	}
}
