//go:generate go run go.uber.org/mock/mockgen -source=gate.go -destination=../mocks/mock_gate.go -package=mocks
package broker

// SessionGate reports the identity the surrounding authentication layer
// has established for a connection. The broker never sees credentials.
type SessionGate interface {
	CurrentIdentity(id ConnectionID) (Identity, bool)
}

// GateFunc adapts a plain function to SessionGate.
type GateFunc func(id ConnectionID) (Identity, bool)

func (f GateFunc) CurrentIdentity(id ConnectionID) (Identity, bool) {
	return f(id)
}
