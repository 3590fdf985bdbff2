package broker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection is a snapshot of one registered connection.
type Connection struct {
	ID          ConnectionID
	Identity    *Identity
	Room        string
	ConnectedAt time.Time
}

type connection struct {
	Connection
	transport Transport
}

// evictor is told about connections that disappear while still in a room.
type evictor interface {
	evict(id ConnectionID, room string, identity *Identity)
}

// Registry tracks every live connection and the identity attached to it.
type Registry struct {
	mu          sync.RWMutex
	connections map[ConnectionID]*connection
	evictor     evictor
	log         *slog.Logger
	now         func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		connections: make(map[ConnectionID]*connection),
		log:         log,
		now:         time.Now,
	}
}

// Register creates an unauthenticated connection for transport.
func (r *Registry) Register(transport Transport) ConnectionID {
	id := uuid.New()

	r.mu.Lock()
	r.connections[id] = &connection{
		Connection: Connection{ID: id, ConnectedAt: r.now()},
		transport:  transport,
	}
	count := len(r.connections)
	r.mu.Unlock()

	r.log.Debug("Connection registered", "conn", id, "total", count)
	return id
}

// Authenticate attaches identity to the connection. A connection can be
// authenticated only once.
func (r *Registry) Authenticate(id ConnectionID, identity Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[id]
	if !ok {
		return fmt.Errorf("authenticate %s: %w", id, ErrConnectionGone)
	}
	if conn.Identity != nil {
		return fmt.Errorf("authenticate %s as %q: %w", id, identity.Username, ErrAlreadyAuthenticated)
	}
	conn.Identity = &identity
	return nil
}

// Send delivers frame to the connection's transport without blocking.
func (r *Registry) Send(id ConnectionID, frame Frame) error {
	r.mu.RLock()
	conn, ok := r.connections[id]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("send to %s: %w", id, ErrConnectionGone)
	}
	if err := conn.transport.Deliver(frame); err != nil {
		return fmt.Errorf("send to %s: %v: %w", id, err, ErrConnectionGone)
	}
	return nil
}

// Unregister removes the connection and evicts it from its room. Calling it
// for an unknown or already removed connection does nothing.
func (r *Registry) Unregister(id ConnectionID) {
	r.mu.Lock()
	conn, ok := r.connections[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.connections, id)
	room, identity, count := conn.Room, conn.Identity, len(r.connections)
	ev := r.evictor
	r.mu.Unlock()

	r.log.Debug("Connection unregistered", "conn", id, "total", count)

	if room != "" && ev != nil {
		ev.evict(id, room, identity)
	}
}

// Lookup returns a snapshot of the connection.
func (r *Registry) Lookup(id ConnectionID) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[id]
	if !ok {
		return Connection{}, false
	}
	snapshot := conn.Connection
	if conn.Identity != nil {
		identity := *conn.Identity
		snapshot.Identity = &identity
	}
	return snapshot, true
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// setRoom records the connection's current room. It fails once the
// connection has been unregistered, which lets a concurrent join abort
// before the connection becomes a member.
func (r *Registry) setRoom(id ConnectionID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[id]
	if !ok {
		return ErrConnectionGone
	}
	conn.Room = room
	return nil
}

func (r *Registry) setEvictor(ev evictor) {
	r.mu.Lock()
	r.evictor = ev
	r.mu.Unlock()
}
