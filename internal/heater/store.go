package heater

import (
	"sync"
	"time"
)

// Entry is the latest value of one property.
type Entry struct {
	Property  Property  `json:"-"`
	Key       string    `json:"key"`
	Value     Value     `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is a point-in-time copy of the store, safe to use without locks.
type Snapshot struct {
	Entries map[Property]Entry
}

// Value returns the value for p, if reported.
func (s Snapshot) Value(p Property) (Value, bool) {
	e, ok := s.Entries[p]
	return e.Value, ok
}

// Bool returns p as a boolean, or def when absent or not a boolean.
func (s Snapshot) Bool(p Property, def bool) bool {
	if v, ok := s.Value(p); ok {
		if b, isBool := v.AsBool(); isBool {
			return b
		}
	}
	return def
}

// Int returns p as an integer, or def when absent or not an integer.
func (s Snapshot) Int(p Property, def int) int {
	if v, ok := s.Value(p); ok {
		if n, isInt := v.AsInt(); isInt {
			return n
		}
	}
	return def
}

// Store holds the decoded state of one appliance and its raw message history.
//
// Thread Safety:
//   - Writers hold the lock only for one entry update plus the history append.
//   - Readers copy out under the read lock and never hold it across I/O.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry // canonical key -> entry
	keys    map[Property]string
	history *History
}

// NewStore creates an empty store with the given history capacity.
func NewStore(historySize int) *Store {
	return &Store{
		entries: make(map[string]Entry),
		keys:    make(map[Property]string),
		history: NewHistory(historySize),
	}
}

// Update records an inbound message and, if it resolves and decodes,
// replaces the entry for its topic. The message is kept in history even
// when it returns ErrUnknownTopic or ErrDecode.
func (s *Store) Update(topic string, payload []byte, at time.Time) (Entry, error) {
	raw := RawMessage{Topic: topic, Payload: append([]byte(nil), payload...), ReceivedAt: at}

	prop, err := ParseProperty(topic)
	var v Value
	if err == nil {
		v, err = Decode(prop, payload)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Append(raw)
	if err != nil {
		return Entry{}, err
	}

	e := Entry{Property: prop, Key: topic, Value: v, UpdatedAt: at}
	if old, ok := s.keys[prop]; ok && old != topic {
		delete(s.entries, old)
	}
	s.entries[topic] = e
	s.keys[prop] = topic
	return e, nil
}

// Lookup returns the canonical key and value of a property.
func (s *Store) Lookup(p Property) (key string, v Value, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok = s.keys[p]
	if !ok {
		return "", Value{}, false
	}
	return key, s.entries[key].Value, true
}

// Snapshot copies out every entry.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Snapshot{Entries: make(map[Property]Entry, len(s.entries))}
	for _, e := range s.entries {
		out.Entries[e.Property] = e
	}
	return out
}

// Complete reports whether every property has a value.
func (s *Store) Complete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys) == len(Properties)
}

// History returns the raw messages, oldest first.
func (s *Store) History() []RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Messages()
}

// HistoryLen returns the number of raw messages held.
func (s *Store) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Len()
}
