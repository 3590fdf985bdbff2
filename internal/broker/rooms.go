package broker

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

type room struct {
	mu        sync.Mutex
	name      string
	members   []ConnectionID
	history   *history
	lastSeq   uint64
	emptiedAt time.Time
	closed    bool
}

func (r *room) isMember(id ConnectionID) bool {
	return slices.Contains(r.members, id)
}

func (r *room) remove(id ConnectionID, now time.Time) bool {
	i := slices.Index(r.members, id)
	if i < 0 {
		return false
	}
	r.members = slices.Delete(r.members, i, i+1)
	if len(r.members) == 0 {
		r.emptiedAt = now
	}
	return true
}

// RoomInfo summarizes a room for stats endpoints.
type RoomInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
	History int    `json:"history"`
	LastSeq uint64 `json:"last_seq"`
}

// Rooms owns every chat room: membership, history and sequence numbers.
// Mutations of one room are serialized by that room's lock, and the
// resulting fan-out happens under the same lock so every member observes
// a room's frames in sequence order.
type Rooms struct {
	mu       sync.Mutex
	rooms    map[string]*room
	registry *Registry
	capacity int
	idleTTL  time.Duration
	log      *slog.Logger
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRooms creates the room manager and hooks it into registry so that
// unregistered connections are evicted from their room. When the config
// sets an idle TTL a background loop reaps rooms that stayed empty that long.
func NewRooms(registry *Registry, cfg Config, log *slog.Logger) *Rooms {
	cfg = cfg.withDefaults()
	m := &Rooms{
		rooms:    make(map[string]*room),
		registry: registry,
		capacity: cfg.HistoryCapacity,
		idleTTL:  cfg.RoomIdleTTL,
		log:      log,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	registry.setEvictor(m)

	if m.idleTTL > 0 {
		m.wg.Add(1)
		go m.reapLoop()
	}
	return m
}

// Join admits the connection into name and returns the room's history,
// oldest first. The other members are told about the newcomer before it is
// added, and the joiner receives its history frame before any later
// message of the room. Joining the current room again changes nothing and
// returns the history once more.
func (m *Rooms) Join(id ConnectionID, name string) ([]Message, error) {
	conn, ok := m.registry.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("join %q: %w", name, ErrConnectionGone)
	}
	if conn.Identity == nil {
		return nil, fmt.Errorf("join %q: %w", name, ErrNotAuthenticated)
	}

	if conn.Room != "" && conn.Room != name {
		if _, err := m.Leave(id); err != nil {
			return nil, err
		}
	}

	r := m.acquire(name)
	defer r.mu.Unlock()

	if conn.Room == name && r.isMember(id) {
		hist := r.history.snapshot()
		m.admit(id, name, hist)
		return hist, nil
	}

	if err := m.registry.setRoom(id, name); err != nil {
		return nil, fmt.Errorf("join %q: %w", name, err)
	}

	now := m.now()
	m.fanOut(r.members, Frame{
		Kind:     FrameJoined,
		Room:     name,
		Username: conn.Identity.Username,
		Text:     fmt.Sprintf("%s has joined the chat!", conn.Identity.Username),
		At:       now,
	})
	r.members = append(r.members, id)

	hist := r.history.snapshot()
	m.admit(id, name, hist)

	m.log.Info("Connection joined room", "conn", id, "user", conn.Identity.Username, "room", name, "members", len(r.members))
	return hist, nil
}

// Leave removes the connection from its current room and tells the
// remaining members. It reports false when the connection was in no room.
func (m *Rooms) Leave(id ConnectionID) (bool, error) {
	conn, ok := m.registry.Lookup(id)
	if !ok {
		return false, fmt.Errorf("leave: %w", ErrConnectionGone)
	}
	if conn.Room == "" {
		return false, nil
	}

	r := m.lookup(conn.Room)
	if r == nil {
		_ = m.registry.setRoom(id, "")
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := r.remove(id, m.now())
	_ = m.registry.setRoom(id, "")
	if !removed {
		return false, nil
	}
	m.announceLeft(r, conn.Identity)
	return true, nil
}

// Post records text as the next message of the connection's room and
// delivers it to every member, the sender included.
func (m *Rooms) Post(id ConnectionID, text string) (Message, error) {
	conn, ok := m.registry.Lookup(id)
	if !ok {
		return Message{}, fmt.Errorf("post: %w", ErrConnectionGone)
	}
	if conn.Room == "" || conn.Identity == nil {
		return Message{}, fmt.Errorf("post: %w", ErrNotInRoom)
	}
	body := strings.TrimSpace(text)
	if body == "" {
		return Message{}, fmt.Errorf("post to %q: %w", conn.Room, ErrEmptyMessage)
	}

	r := m.lookup(conn.Room)
	if r == nil {
		return Message{}, fmt.Errorf("post to %q: %w", conn.Room, ErrNotInRoom)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isMember(id) {
		return Message{}, fmt.Errorf("post to %q: %w", conn.Room, ErrNotInRoom)
	}

	r.lastSeq++
	msg := Message{
		Room:   r.name,
		Sender: conn.Identity.Username,
		Text:   body,
		Seq:    r.lastSeq,
		At:     m.now(),
	}
	r.history.push(msg)

	m.fanOut(r.members, Frame{
		Kind:     FrameMessage,
		Room:     msg.Room,
		Username: msg.Sender,
		Text:     msg.Text,
		Message:  &msg,
		At:       msg.At,
	})
	return msg, nil
}

// Members returns the room's connections in join order.
func (m *Rooms) Members(name string) []ConnectionID {
	r := m.lookup(name)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.members)
}

// History returns the buffered messages of a room, oldest first.
func (m *Rooms) History(name string) []Message {
	r := m.lookup(name)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.snapshot()
}

// Rooms lists every live room sorted by name.
func (m *Rooms) Rooms() []RoomInfo {
	m.mu.Lock()
	all := lo.Values(m.rooms)
	m.mu.Unlock()

	infos := lo.Map(all, func(r *room, _ int) RoomInfo {
		r.mu.Lock()
		defer r.mu.Unlock()
		return RoomInfo{
			Name:    r.name,
			Members: len(r.members),
			History: r.history.len(),
			LastSeq: r.lastSeq,
		}
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Reap destroys rooms that have been empty for at least the idle TTL.
func (m *Rooms) Reap() int {
	if m.idleTTL <= 0 {
		return 0
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	reaped := 0
	for name, r := range m.rooms {
		r.mu.Lock()
		if len(r.members) == 0 && now.Sub(r.emptiedAt) >= m.idleTTL {
			r.closed = true
			delete(m.rooms, name)
			reaped++
			m.log.Debug("Reaped idle room", "room", name)
		}
		r.mu.Unlock()
	}
	return reaped
}

// Stop ends the reaper loop.
func (m *Rooms) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Rooms) reapLoop() {
	defer m.wg.Done()

	interval := m.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Reap()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Rooms) evict(id ConnectionID, name string, identity *Identity) {
	r := m.lookup(name)
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.remove(id, m.now()) {
		m.announceLeft(r, identity)
	}
}

// acquire returns the locked room called name, creating it if needed.
func (m *Rooms) acquire(name string) *room {
	for {
		m.mu.Lock()
		r, ok := m.rooms[name]
		if !ok {
			r = &room{name: name, history: newHistory(m.capacity), emptiedAt: m.now()}
			m.rooms[name] = r
			m.log.Debug("Room created", "room", name)
		}
		m.mu.Unlock()

		r.mu.Lock()
		if !r.closed {
			return r
		}
		// reaped between lookup and lock
		r.mu.Unlock()
	}
}

func (m *Rooms) lookup(name string) *room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[name]
}

// admit sends the history frame to a joiner. Caller holds the room lock.
func (m *Rooms) admit(id ConnectionID, name string, hist []Message) {
	err := m.registry.Send(id, Frame{
		Kind:    FrameHistory,
		Room:    name,
		Text:    fmt.Sprintf("Welcome to the %s room!", name),
		History: hist,
		At:      m.now(),
	})
	if err != nil {
		m.log.Debug("Dropping history frame", "conn", id, "room", name, "err", err)
	}
}

// announceLeft tells the remaining members. Caller holds the room lock.
func (m *Rooms) announceLeft(r *room, identity *Identity) {
	username := ""
	if identity != nil {
		username = identity.Username
	}
	m.fanOut(r.members, Frame{
		Kind:     FrameLeft,
		Room:     r.name,
		Username: username,
		Text:     fmt.Sprintf("%s has left the chat.", username),
		At:       m.now(),
	})
	m.log.Info("Connection left room", "user", username, "room", r.name, "members", len(r.members))
}

// fanOut delivers frame to every recipient. Delivery is best effort: a
// gone connection is skipped and cleaned up by its own disconnect.
func (m *Rooms) fanOut(recipients []ConnectionID, frame Frame) {
	for _, id := range recipients {
		if err := m.registry.Send(id, frame); err != nil {
			m.log.Debug("Skipping gone connection during fan-out", "conn", id, "room", frame.Room, "err", err)
		}
	}
}
