// Package websocket broadcasts conversion progress to connected
// clients. The hub fans run snapshots out to every client; clients
// that cannot keep up are dropped rather than allowed to stall a run.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/briantruongvn/ngocson-tss-converter/internal/pipeline"
)

// Message types sent to clients.
const (
	TypeConnection  = "connection"
	TypeRunSnapshot = "run:snapshot"
	TypeRunError    = "run:error"
)

// Envelope is the wire form of every hub message.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts messages to
// them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	quit    chan struct{}
	running bool

	totalConnections int64
	messagesSent     int64
}

// NewHub creates a hub. Call Start before registering clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket_hub")),
		quit:       make(chan struct{}),
	}
}

// Start runs the hub loop on its own goroutine.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()
	go h.run()
}

// Stop shuts the hub down and closes every client.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.totalConnections++
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", count))

			h.sendTo(client, Envelope{
				Type: TypeConnection,
				Data: map[string]interface{}{
					"status":    "connected",
					"client_id": client.id,
				},
				Timestamp: time.Now().Format(time.RFC3339),
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client unregistered",
				slog.String("client_id", client.id),
				slog.Duration("connected_for", time.Since(client.connectedAt)),
				slog.Int("total_clients", count))

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// fanOut delivers one message to every client, dropping clients whose
// send buffer is full.
func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- message:
			h.mu.Lock()
			h.messagesSent++
			h.mu.Unlock()
		default:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Warn("client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}
}

// sendTo queues a message for a single client.
func (h *Hub) sendTo(client *Client, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal message", slog.String("error", err.Error()))
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// BroadcastRun sends a run snapshot to every client. Satisfies the
// pipeline's progress callback; the runner throttles call frequency.
func (h *Hub) BroadcastRun(snap pipeline.Snapshot) {
	h.broadcastEnvelope(Envelope{
		Type:      TypeRunSnapshot,
		Data:      snap,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// BroadcastError sends a run-scoped error to every client.
func (h *Hub) BroadcastError(runID, step, message string) {
	h.broadcastEnvelope(Envelope{
		Type: TypeRunError,
		Data: map[string]interface{}{
			"run_id":  runID,
			"step":    step,
			"message": message,
		},
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (h *Hub) broadcastEnvelope(env Envelope) {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		return
	}

	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal broadcast",
			slog.String("type", env.Type),
			slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast queue full, dropping message",
			slog.String("type", env.Type))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register queues a client for registration.
func (h *Hub) Register(client *Client) {
	h.register <- client
}
