package broker

// history is a fixed-capacity ring of the most recent messages of a room.
type history struct {
	buf   []Message
	start int
	size  int
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = 1
	}
	return &history{buf: make([]Message, capacity)}
}

// push appends msg, evicting the oldest entry once the ring is full.
func (h *history) push(msg Message) {
	capacity := len(h.buf)
	if h.size < capacity {
		h.buf[(h.start+h.size)%capacity] = msg
		h.size++
		return
	}
	h.buf[h.start] = msg
	h.start = (h.start + 1) % capacity
}

// snapshot returns the buffered messages oldest first.
func (h *history) snapshot() []Message {
	out := make([]Message, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

func (h *history) len() int { return h.size }
