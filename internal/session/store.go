// Package session supplies the broker with the identity behind each
// connection. Identities come from session tokens verified when the
// WebSocket is opened; the broker only ever reads them.
package session

import (
	"sync"

	"github.com/Tyrowin/roombroker/internal/broker"
)

// Store maps live connections to the identity their session established.
// It implements broker.SessionGate.
type Store struct {
	mu         sync.RWMutex
	identities map[broker.ConnectionID]broker.Identity
}

func NewStore() *Store {
	return &Store{identities: make(map[broker.ConnectionID]broker.Identity)}
}

// Bind records identity for the connection, replacing any previous one.
func (s *Store) Bind(id broker.ConnectionID, identity broker.Identity) {
	s.mu.Lock()
	s.identities[id] = identity
	s.mu.Unlock()
}

// Release forgets the connection.
func (s *Store) Release(id broker.ConnectionID) {
	s.mu.Lock()
	delete(s.identities, id)
	s.mu.Unlock()
}

func (s *Store) CurrentIdentity(id broker.ConnectionID) (broker.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[id]
	return identity, ok
}

// Len returns the number of bound connections.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities)
}
