package broker

import (
	"log/slog"
	"time"
)

const (
	DefaultHistoryCapacity = 100
	DefaultMaxTextLength   = 1000
	MaxRoomNameLength      = 64
)

// Config tunes the broker core.
type Config struct {
	// HistoryCapacity bounds the messages kept per room.
	HistoryCapacity int
	// MaxTextLength bounds a message body, in runes.
	MaxTextLength int
	// RoomIdleTTL is how long an empty room keeps its history before it is
	// reaped. Zero keeps rooms forever.
	RoomIdleTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = DefaultHistoryCapacity
	}
	if c.MaxTextLength <= 0 {
		c.MaxTextLength = DefaultMaxTextLength
	}
	if c.RoomIdleTTL < 0 {
		c.RoomIdleTTL = 0
	}
	return c
}

// Broker bundles the registry, the room manager and the router that share
// one set of rooms.
type Broker struct {
	Registry *Registry
	Rooms    *Rooms
	Router   *Router
}

// New wires a broker whose router consults gate before room operations.
func New(cfg Config, gate SessionGate, log *slog.Logger) *Broker {
	registry := NewRegistry(log)
	rooms := NewRooms(registry, cfg, log)
	return &Broker{
		Registry: registry,
		Rooms:    rooms,
		Router:   NewRouter(registry, rooms, gate, cfg, log),
	}
}

// Stop releases background resources.
func (b *Broker) Stop() {
	b.Rooms.Stop()
}
