// Package server coordinates client registration and connection cleanup for
// the room broker via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/roombroker/internal/broker"
	"github.com/Tyrowin/roombroker/internal/session"
)

type registration struct {
	client   *Client
	identity *broker.Identity
}

// Hub owns the lifecycle of WebSocket clients. It registers each client
// with the broker, binds its session, runs its pumps, and turns a closed
// connection into a Disconnect event.
type Hub struct {
	clients    map[broker.ConnectionID]*Client
	register   chan registration
	unregister chan *Client
	registry   *broker.Registry
	router     *broker.Router
	sessions   *session.Store
	cfg        Config
	log        *slog.Logger
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a hub that feeds clients into b and records their
// identities in sessions.
func NewHub(b *broker.Broker, sessions *session.Store, cfg Config, log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[broker.ConnectionID]*Client),
		register:   make(chan registration),
		unregister: make(chan *Client),
		registry:   b.Registry,
		router:     b.Router,
		sessions:   sessions,
		cfg:        cfg.sanitize(),
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands a freshly upgraded client to the hub. identity is nil for
// connections that presented no session token. It reports false once the
// hub is shutting down.
func (h *Hub) Register(client *Client, identity *broker.Identity) bool {
	select {
	case h.register <- registration{client: client, identity: identity}:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Unregister tells the hub the client's connection is gone. After the hub
// stopped running the cleanup happens inline.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		h.remove(client)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. It should be called in a separate goroutine and returns
// after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case reg := <-h.register:
			if reg.client == nil {
				h.log.Warn("Received nil client registration; skipping")
				continue
			}
			h.add(reg)

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) add(reg registration) {
	client := reg.client
	client.id = h.registry.Register(client)
	if reg.identity != nil {
		h.sessions.Bind(client.id, *reg.identity)
	}

	h.mutex.Lock()
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()

	user := ""
	if reg.identity != nil {
		user = reg.identity.Username
	}
	h.log.Info("Client registered", "conn", client.id, "addr", client.addr, "user", user, "total", clientCount)

	if client.conn == nil {
		return
	}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	_, ok := h.clients[client.id]
	if ok {
		delete(h.clients, client.id)
	}
	clientCount := len(h.clients)
	h.mutex.Unlock()

	if !ok {
		return
	}

	_ = h.router.HandleEvent(client.id, broker.DisconnectEvent())
	h.sessions.Release(client.id)
	client.close()
	h.log.Info("Client unregistered", "conn", client.id, "addr", client.addr, "total", clientCount)
}

// shutdownClients closes every client connection; their read pumps then
// unregister them.
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections...")

	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		client.close()
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn("Error closing client connection", "addr", client.addr, "err", err)
			}
		}
	}

	h.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
