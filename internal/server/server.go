// Package server wires the broker, the session store and the WebSocket hub
// into one HTTP-facing service.
package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roombroker/internal/broker"
	"github.com/Tyrowin/roombroker/internal/session"
)

// Server is the room broker behind its HTTP routes.
type Server struct {
	cfg      Config
	log      *slog.Logger
	broker   *broker.Broker
	sessions *session.Store
	tokens   *session.Tokens
	hub      *Hub
	upgrader websocket.Upgrader
}

// New builds a Server from cfg. Call Start before serving requests.
func New(cfg Config, log *slog.Logger) (*Server, error) {
	cfg = cfg.sanitize()

	tokens, err := session.NewTokens(cfg.SessionSecret)
	if err != nil {
		return nil, err
	}
	sessions := session.NewStore()
	b := broker.New(cfg.BrokerConfig(), sessions, log)
	origins := newOriginPolicy(cfg.AllowedOrigins, log)

	return &Server{
		cfg:      cfg,
		log:      log,
		broker:   b,
		sessions: sessions,
		tokens:   tokens,
		hub:      NewHub(b, sessions, cfg, log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
	}, nil
}

// Start runs the hub in a separate goroutine.
func (s *Server) Start() {
	go s.hub.Run()
	s.log.Info("Hub started and ready to manage WebSocket connections")
}

// Shutdown closes every client and stops the broker's background work.
func (s *Server) Shutdown(timeout time.Duration) error {
	err := s.hub.Shutdown(timeout)
	s.broker.Stop()
	if err != nil {
		return fmt.Errorf("hub shutdown: %w", err)
	}
	return nil
}

// Tokens exposes the session token issuer and verifier.
func (s *Server) Tokens() *session.Tokens {
	return s.tokens
}

// Broker exposes the broker core.
func (s *Server) Broker() *broker.Broker {
	return s.broker
}
