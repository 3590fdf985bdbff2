package broker

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Router is the single entry point for client events. Events of one
// connection must be handed in one at a time; events of different
// connections may arrive concurrently.
type Router struct {
	registry *Registry
	rooms    *Rooms
	gate     SessionGate
	maxText  int
	log      *slog.Logger
}

func NewRouter(registry *Registry, rooms *Rooms, gate SessionGate, cfg Config, log *slog.Logger) *Router {
	cfg = cfg.withDefaults()
	return &Router{
		registry: registry,
		rooms:    rooms,
		gate:     gate,
		maxText:  cfg.MaxTextLength,
		log:      log,
	}
}

// HandleEvent dispatches ev for connection id. Failures are reported back
// to that connection only, never broadcast, and are returned to the caller
// for logging.
func (rt *Router) HandleEvent(id ConnectionID, ev Event) error {
	err := rt.dispatch(id, ev)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrInvalidEvent) {
		rt.log.Warn("Rejected invalid event", "conn", id, "event", ev.Kind.String(), "err", err)
	} else {
		rt.log.Debug("Event failed", "conn", id, "event", ev.Kind.String(), "err", err)
	}

	if ev.Kind != EventDisconnect && !errors.Is(err, ErrConnectionGone) {
		rt.reply(id, err)
	}
	return err
}

func (rt *Router) dispatch(id ConnectionID, ev Event) error {
	switch ev.Kind {
	case EventJoin:
		return rt.join(id, ev.Room)
	case EventLeave:
		left, err := rt.rooms.Leave(id)
		if err != nil {
			return err
		}
		if !left {
			return fmt.Errorf("leave: %w", ErrNotInRoom)
		}
		return nil
	case EventSend:
		if err := validate.Var(ev.Text, fmt.Sprintf("max=%d", rt.maxText)); err != nil {
			return fmt.Errorf("text longer than %d characters: %w", rt.maxText, ErrInvalidEvent)
		}
		_, err := rt.rooms.Post(id, ev.Text)
		return err
	case EventDisconnect:
		rt.registry.Unregister(id)
		return nil
	default:
		return fmt.Errorf("unknown event type: %w", ErrInvalidEvent)
	}
}

func (rt *Router) join(id ConnectionID, room string) error {
	room = strings.TrimSpace(room)
	if err := validate.Var(room, fmt.Sprintf("required,max=%d", MaxRoomNameLength)); err != nil {
		return fmt.Errorf("room name %q: %w", room, ErrInvalidEvent)
	}

	identity, ok := rt.gate.CurrentIdentity(id)
	if !ok {
		return fmt.Errorf("join %q: %w", room, ErrNotAuthenticated)
	}

	conn, ok := rt.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("join %q: %w", room, ErrConnectionGone)
	}
	if conn.Identity == nil {
		if err := rt.registry.Authenticate(id, identity); err != nil && !errors.Is(err, ErrAlreadyAuthenticated) {
			return err
		}
	}

	_, err := rt.rooms.Join(id, room)
	return err
}

func (rt *Router) reply(id ConnectionID, err error) {
	frame := Frame{Kind: FrameError, Code: ErrorCode(err), Text: err.Error()}
	if sendErr := rt.registry.Send(id, frame); sendErr != nil {
		rt.log.Debug("Could not report failure", "conn", id, "err", sendErr)
	}
}
