package heater

import "time"

// DefaultHistorySize is the raw message capacity when none is configured.
const DefaultHistorySize = 1000

// RawMessage is one inbound protocol message as received.
type RawMessage struct {
	Topic      string    `json:"topic"`
	Payload    []byte    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}

// History is a fixed-capacity FIFO of raw messages. Appending to a full
// history evicts the oldest message. It is not safe for concurrent use;
// Store guards it.
type History struct {
	buf   []RawMessage
	start int
	size  int
}

// NewHistory returns an empty history. Non-positive capacity uses DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{buf: make([]RawMessage, capacity)}
}

// Append adds m, evicting the oldest message when full.
func (h *History) Append(m RawMessage) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = m
		h.size++
		return
	}
	h.buf[h.start] = m
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of stored messages.
func (h *History) Len() int { return h.size }

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.buf) }

// Messages returns a copy, oldest first.
func (h *History) Messages() []RawMessage {
	out := make([]RawMessage, h.size)
	for i := range out {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}
