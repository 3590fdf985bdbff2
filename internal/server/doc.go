// Package server implements the HTTP and WebSocket surface of the room broker.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, the wire format, routing, and HTTP handlers. The
// chat semantics themselves live in the broker package; this package only
// moves frames between sockets and the broker.
package server
