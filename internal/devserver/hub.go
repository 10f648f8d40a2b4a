package devserver

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/toy-socket-relay/pkg/protocol"
)

// Client is one connected browser or relay client.
type Client struct {
	ID       string
	Conn     *Conn
	Outgoing chan protocol.Frame
}

// Hub manages all connected clients and handles broadcast.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*Client]bool),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client and closes its outgoing channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client] {
		delete(h.clients, client)
		close(client.Outgoing)
	}
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues f for every client, the sender included.
// A client whose queue is full misses the frame.
func (h *Hub) Broadcast(f protocol.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.Outgoing <- f:
		default:
			h.logger.Warn("client channel full, skipping", zap.String("client", client.ID))
		}
	}
}

// CloseAll sends a close frame with code and reason to every client.
func (h *Hub) CloseAll(ctx context.Context, code int, reason string) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	g, _ := errgroup.WithContext(ctx)
	for _, client := range clients {
		client := client
		g.Go(func() error {
			if err := client.Conn.Close(code, reason); err != nil {
				h.logger.Debug("close handshake failed", zap.String("client", client.ID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
