// Package ws streams public announcements (level-ups, draws, leaderboards,
// events) to dashboard clients over websocket.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/metrics"
)

const (
	sendBuffer  = 64
	historySize = 20
)

// Hub fans announcements out to every connected client. A client whose
// buffer is full is dropped rather than slowing the publisher down.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	history [][]byte
	closed  bool
	log     *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     logger.Component("feed"),
	}
}

// Publish implements service.Publisher.
func (h *Hub) Publish(a domain.Announcement) {
	msg, err := json.Marshal(a)
	if err != nil {
		h.log.Error("announcement not encoded", "kind", a.Kind, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.history = append(h.history, msg)
	if len(h.history) > historySize {
		h.history = h.history[len(h.history)-historySize:]
	}
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.drop(c)
			metrics.FeedDropped.Inc()
			h.log.Warn("slow feed client dropped", "remote", c.remote)
		}
	}
}

// register adds c and queues the recent history for it.
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	for _, msg := range h.history {
		c.send <- msg
	}
	h.clients[c] = struct{}{}
	metrics.FeedClients.Set(float64(len(h.clients)))
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// drop must be called with mu held.
func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.FeedClients.Set(float64(len(h.clients)))
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.drop(c)
	}
}
