// Package live pushes re-rendered session state to connected pages over
// websockets.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/comedypulse/pulse-agent/internal/logging"
	"github.com/comedypulse/pulse-agent/internal/metrics"
)

// Message is the only frame the server sends.
type Message struct {
	Type    string `json:"type"`
	Version uint64 `json:"version"`
	Status  string `json:"status"`
	HTML    string `json:"html"`
}

const TypeState = "state"

// Hub fans state messages out to every client. New clients receive the
// latest message immediately.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	latest  []byte
	dropped int

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logging.WithComponent(logger, "live"),
	}
}

// Run is the hub loop. It returns when ctx is done, closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			metrics.LiveClients.Set(0)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if h.latest != nil {
				client.send <- h.latest
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.LiveClients.Set(float64(n))
			h.logger.Debug("client connected", "clients", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.LiveClients.Set(float64(n))
			h.logger.Debug("client disconnected", "clients", n)

		case message := <-h.broadcast:
			h.mu.Lock()
			h.latest = message
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow reader; it reconnects and gets the latest state.
					close(client.send)
					delete(h.clients, client)
				}
			}
			metrics.LiveClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
		}
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues msg for every client without blocking. When the queue is
// full the oldest queued message is dropped, so the newest state always
// reaches the pages.
func (h *Hub) Publish(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal live message", "error", err)
		return
	}

	for {
		select {
		case h.broadcast <- data:
			return
		default:
		}

		select {
		case <-h.broadcast:
			h.mu.Lock()
			h.dropped++
			h.mu.Unlock()
			h.logger.Warn("live queue full, dropping oldest message", "version", msg.Version)
		default:
		}
	}
}

// Stats returns the number of connected clients and dropped publishes.
func (h *Hub) Stats() (clients, dropped int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), h.dropped
}
