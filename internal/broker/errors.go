package broker

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated     = fmt.Errorf("not authenticated")
	ErrAlreadyAuthenticated = fmt.Errorf("already authenticated")
	ErrNotInRoom            = fmt.Errorf("not in a room")
	ErrEmptyMessage         = fmt.Errorf("empty message")
	ErrInvalidEvent         = fmt.Errorf("invalid event")
	ErrConnectionGone       = fmt.Errorf("connection gone")
)

// ErrorCode maps a broker error to the stable code reported to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrAlreadyAuthenticated):
		return "already_authenticated"
	case errors.Is(err, ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, ErrInvalidEvent):
		return "invalid_event"
	case errors.Is(err, ErrConnectionGone):
		return "connection_gone"
	default:
		return "internal"
	}
}
