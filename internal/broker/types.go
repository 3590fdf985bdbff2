//go:generate go run go.uber.org/mock/mockgen -source=types.go -destination=../mocks/mock_transport.go -package=mocks

// Package broker is the room-based message broker: a registry of live
// connections, a room manager with bounded history, and a router that
// dispatches client events between them.
package broker

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionID identifies one live connection. IDs are never reused.
type ConnectionID = uuid.UUID

// Identity is the authenticated user behind a connection.
type Identity struct {
	Username        string
	AuthenticatedAt time.Time
}

// Message is an immutable chat message recorded in a room's history.
type Message struct {
	Room   string
	Sender string
	Text   string
	Seq    uint64
	At     time.Time
}

// FrameKind tells the transport what an outbound frame carries.
type FrameKind string

const (
	FrameMessage FrameKind = "message"
	FrameJoined  FrameKind = "joined"
	FrameLeft    FrameKind = "left"
	FrameHistory FrameKind = "history"
	FrameError   FrameKind = "error"
)

// Frame is the unit delivered to a connection's transport.
type Frame struct {
	Kind     FrameKind
	Room     string
	Username string
	Text     string
	Message  *Message
	History  []Message
	Code     string
	At       time.Time
}

// Transport delivers frames to the remote end of a connection.
// Deliver must not block; a refused frame means the connection is lost.
type Transport interface {
	Deliver(frame Frame) error
}

// EventKind enumerates the inbound client events.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventJoin
	EventLeave
	EventSend
	EventDisconnect
)

func (k EventKind) String() string {
	switch k {
	case EventJoin:
		return "join"
	case EventLeave:
		return "leave"
	case EventSend:
		return "send"
	case EventDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Event is a decoded inbound client event.
type Event struct {
	Kind EventKind
	Room string
	Text string
}

func JoinEvent(room string) Event { return Event{Kind: EventJoin, Room: room} }
func LeaveEvent() Event           { return Event{Kind: EventLeave} }
func SendEvent(text string) Event { return Event{Kind: EventSend, Text: text} }
func DisconnectEvent() Event      { return Event{Kind: EventDisconnect} }
