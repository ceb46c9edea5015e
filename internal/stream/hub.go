// Package stream provides WebSocket streaming of the live monitoring feed.
//
// Dashboards subscribe once and receive every assessed transaction and
// every raised alert as they happen, instead of polling the REST API.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// EventType for real-time events.
type EventType string

const (
	EventTransaction EventType = "transaction"
	EventAlert       EventType = "alert"
)

// Event is the wire envelope pushed to connected clients.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// ReplayDepth is how many recent transactions a new client receives on
// connect, so a fresh dashboard is not empty.
const ReplayDepth = 5

// MaxClients is the maximum number of concurrent WebSocket connections.
const MaxClients = 1000

// ReplayFunc supplies the most recent assessed transactions, newest first.
type ReplayFunc func(n int) []domain.AssessedTransaction

// Hub manages all WebSocket connections.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	replay     ReplayFunc
	mu         sync.RWMutex
	logger     *slog.Logger
	done       chan struct{} // closed when Run exits; prevents upgrade race
	maxClients int

	totalEvents  atomic.Int64
	totalClients atomic.Int64
}

// NewHub creates a new WebSocket hub. replay may be nil, in which case new
// clients start with an empty feed.
func NewHub(logger *slog.Logger, replay ReplayFunc) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		replay:     replay,
		logger:     logger,
		done:       make(chan struct{}),
		maxClients: MaxClients,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("stream hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("stream hub shutting down, closing client connections")
			h.mu.Lock()
			for client := range h.clients {
				close(client.send) // writePump sends CloseMessage on closed channel
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("stream hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.totalClients.Add(1)
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "total", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "total", n)

		case event := <-h.broadcast:
			h.totalEvents.Add(1)
			payload := serialize(event)
			h.mu.RLock()
			var slow []*Client
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			// Remove slow clients under write lock
			if len(slow) > 0 {
				h.mu.Lock()
				for _, client := range slow {
					if _, ok := h.clients[client]; ok {
						close(client.send)
						delete(h.clients, client)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

func serialize(event *Event) []byte {
	data, _ := json.Marshal(event)
	return data
}

// Broadcast sends an event to all connected clients.
func (h *Hub) Broadcast(event *Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping event")
	}
}

// BroadcastTransaction pushes an assessed transaction to the feed.
func (h *Hub) BroadcastTransaction(atx *domain.AssessedTransaction) {
	h.Broadcast(&Event{
		Type:      EventTransaction,
		Timestamp: time.Now().UTC(),
		Data:      atx,
	})
}

// BroadcastAlert pushes a raised alert to the feed.
func (h *Hub) BroadcastAlert(alert *domain.Alert) {
	h.Broadcast(&Event{
		Type:      EventAlert,
		Timestamp: time.Now().UTC(),
		Data:      alert,
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns hub statistics.
func (h *Hub) Stats() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]any{
		"connectedClients": len(h.clients),
		"totalEvents":      h.totalEvents.Load(),
		"totalClients":     h.totalClients.Load(),
	}
}

// HandleWebSocket upgrades HTTP to WebSocket.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Reject upgrades after the hub has stopped to prevent orphaned connections.
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n >= h.maxClients {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	// Queue the recent history before live traffic, oldest first, so the
	// client sees a chronological feed.
	if h.replay != nil {
		recent := h.replay(ReplayDepth)
		for i := len(recent) - 1; i >= 0; i-- {
			atx := recent[i]
			client.send <- serialize(&Event{
				Type:      EventTransaction,
				Timestamp: time.Now().UTC(),
				Data:      &atx,
			})
		}
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}
