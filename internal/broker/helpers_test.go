package broker

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// RecordingTransport keeps every delivered frame. It is exported so the
// external test package can use it too.
type RecordingTransport struct {
	mu     sync.Mutex
	frames []Frame
	broken bool
}

func (t *RecordingTransport) Deliver(frame Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.broken {
		return errors.New("send buffer full")
	}
	t.frames = append(t.frames, frame)
	return nil
}

// Break makes every further delivery fail.
func (t *RecordingTransport) Break() {
	t.mu.Lock()
	t.broken = true
	t.mu.Unlock()
}

func (t *RecordingTransport) Frames() []Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Frame(nil), t.frames...)
}

// OfKind returns the delivered frames of the given kind.
func (t *RecordingTransport) OfKind(kind FrameKind) []Frame {
	return lo.Filter(t.Frames(), func(f Frame, _ int) bool { return f.Kind == kind })
}

// Reset forgets the frames delivered so far.
func (t *RecordingTransport) Reset() {
	t.mu.Lock()
	t.frames = nil
	t.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
