package bus

import (
	"sync"
	"sync/atomic"
)

// DefaultInboxSize is used when a subscriber asks for a non-positive buffer.
const DefaultInboxSize = 256

// Logger is the logging surface the bus needs. logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Bus.
type Options struct {
	// InboxSize is the default per-subscriber buffer.
	InboxSize int
}

// Stats is a point-in-time view of bus counters.
type Stats struct {
	Published   uint64
	Dropped     uint64
	Subscribers int
}

// Bus fans events out to subscribers.
//
// Thread Safety:
//   - Publish, Subscribe and Close are safe for concurrent use.
//   - Sends happen under the read lock and inbox closes under the write
//     lock, so a send never races a close.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	inboxSize int
	logger    Logger

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a bus. A nil logger discards log output.
func New(logger Logger, opts Options) *Bus {
	if logger == nil {
		logger = noopLogger{}
	}
	size := opts.InboxSize
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Bus{
		subs:      make(map[uint64]*Subscription),
		inboxSize: size,
		logger:    logger,
	}
}

// Subscription is one consumer's view of the bus.
type Subscription struct {
	id    uint64
	name  string
	kinds map[Kind]bool // nil means every kind
	ch    chan Event
	bus   *Bus

	dropped atomic.Uint64
	once    sync.Once
}

// Events returns the inbox. It is closed by Close or Bus.Close.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Name returns the subscriber name used in logs.
func (s *Subscription) Name() string { return s.name }

// Dropped returns how many events this subscriber lost to a full inbox.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close detaches the subscription and closes its inbox. It is idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		if _, ok := s.bus.subs[s.id]; ok {
			delete(s.bus.subs, s.id)
			close(s.ch)
		}
		s.bus.mu.Unlock()
	})
}

func (s *Subscription) wants(k Kind) bool {
	return s.kinds == nil || s.kinds[k]
}

// Subscribe attaches a consumer for the given kinds, or every kind if none
// are named. All requested kinds share one inbox so a producer's
// registration always arrives before its readings.
//
// Parameters:
//   - name: Subscriber name for logs
//   - buffer: Inbox capacity; non-positive uses the bus default
//   - kinds: Event kinds to receive
//
// Returns:
//   - *Subscription: Attached subscription
//   - error: ErrNotInitialized for a nil bus, ErrClosed after Close
func (b *Bus) Subscribe(name string, buffer int, kinds ...Kind) (*Subscription, error) {
	if b == nil {
		return nil, ErrNotInitialized
	}
	if buffer <= 0 {
		buffer = b.inboxSize
	}

	sub := &Subscription{
		name: name,
		ch:   make(chan Event, buffer),
		bus:  b,
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub

	b.logger.Debug("bus subscriber attached", "subscriber", name, "buffer", buffer)
	return sub, nil
}

// Publish delivers ev to every subscriber of its kind without blocking.
// A full inbox drops the event for that subscriber and logs a warning.
func (b *Bus) Publish(ev Event) error {
	if b == nil {
		return ErrNotInitialized
	}
	if ev == nil {
		return ErrInvalidEvent
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	b.published.Add(1)
	kind := ev.Kind()
	for _, sub := range b.subs {
		if !sub.wants(kind) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			sub.dropped.Add(1)
			b.dropped.Add(1)
			b.logger.Warn("bus subscriber inbox full, dropping event",
				"subscriber", sub.name,
				"kind", kind.String(),
				"identity", ev.Identity().String(),
			)
		}
	}
	return nil
}

// Stats returns the bus counters.
func (b *Bus) Stats() Stats {
	if b == nil {
		return Stats{}
	}
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return Stats{
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
		Subscribers: n,
	}
}

// Close detaches every subscriber and closes their inboxes.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
