// Package server wires HTTP handlers into a ServeMux for the room broker
// via routing helpers.
package server

import "net/http"

// Routes configures and returns an HTTP ServeMux with all application routes.
// It sets up handlers for health check, WebSocket endpoint, stats, and test page.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("/stats", s.StatsHandler)
	mux.HandleFunc("/test", TestPageHandler)
	return mux
}
