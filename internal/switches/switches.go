// Package switches provides named virtual on/off switches.
//
// Each switch is a gauge named switch_<name> with labels [kind, unit] and
// category "switch", so the notification forwarder reports it with a
// state=true|false query. Switches start off.
package switches

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/homehub/internal/bus"
)

// Category marks switch readings for the notification forwarder.
const Category = "switch"

var (
	// ErrUnknownSwitch is returned for a name that was not configured.
	ErrUnknownSwitch = errors.New("switches: unknown switch")

	// ErrInvalidName is returned for names unusable as a metric suffix.
	ErrInvalidName = errors.New("switches: invalid name")
)

var validName = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

type sw struct {
	identity uuid.UUID
	on       bool
}

// Bank holds the configured switches.
type Bank struct {
	bus *bus.Bus

	mu       sync.RWMutex
	switches map[string]*sw
}

// New creates a bank with every switch off.
func New(b *bus.Bus, names []string) (*Bank, error) {
	bank := &Bank{bus: b, switches: make(map[string]*sw, len(names))}
	for _, name := range names {
		if !validName.MatchString(name) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		if _, dup := bank.switches[name]; dup {
			return nil, fmt.Errorf("%w: %q configured twice", ErrInvalidName, name)
		}
		bank.switches[name] = &sw{identity: bus.NewIdentity()}
	}
	return bank, nil
}

// MetricName returns the gauge name of a switch.
func MetricName(name string) string {
	return "switch_" + name
}

// Start registers every switch and publishes its initial state.
func (b *Bank) Start() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, name := range b.namesLocked() {
		s := b.switches[name]
		if err := b.bus.Publish(bus.Registration{
			ID:       s.identity,
			Metric:   bus.Gauge,
			Name:     MetricName(name),
			Labels:   []string{"kind", "unit"},
			Category: Category,
		}); err != nil {
			return fmt.Errorf("registering switch %s: %w", name, err)
		}
		if err := b.publish(name, s); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the switch names, sorted.
func (b *Bank) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.namesLocked()
}

func (b *Bank) namesLocked() []string {
	names := make([]string, 0, len(b.switches))
	for name := range b.switches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the state of a switch.
func (b *Bank) Get(name string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.switches[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownSwitch, name)
	}
	return s.on, nil
}

// Set changes a switch and publishes the new state.
func (b *Bank) Set(name string, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.switches[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSwitch, name)
	}
	s.on = on
	return b.publish(name, s)
}

func (b *Bank) publish(name string, s *sw) error {
	v := 0.0
	if s.on {
		v = 1
	}
	if err := b.bus.Publish(bus.Reading{
		ID:       s.identity,
		Value:    bus.Scalar(v),
		Labels:   []string{name, "onoff"},
		Category: Category,
	}); err != nil {
		return fmt.Errorf("publishing switch %s: %w", name, err)
	}
	return nil
}
