package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/homehub/internal/bus"
)

// CategorySwitch marks on/off readings. They are sent as state=true|false.
const CategorySwitch = "switch"

type target struct {
	name     string
	category string
}

// Forwarder relays scalar readings to the webhook endpoint.
type Forwarder struct {
	sub        *bus.Subscription
	dispatcher *Dispatcher
	template   string
	logger     Logger

	mu      sync.RWMutex
	targets map[uuid.UUID]target
}

// NewForwarder subscribes a forwarder to the bus.
//
// Parameters:
//   - b: Event bus
//   - d: Dispatcher for outbound calls
//   - template: URL template with positional placeholders (see Expand)
//   - logger: Optional logger
//   - inbox: Subscription buffer; non-positive uses the bus default
func NewForwarder(b *bus.Bus, d *Dispatcher, template string, logger Logger, inbox int) (*Forwarder, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	sub, err := b.Subscribe("notify", inbox, bus.KindRegistration, bus.KindReading)
	if err != nil {
		return nil, fmt.Errorf("subscribing notification forwarder: %w", err)
	}
	return &Forwarder{
		sub:        sub,
		dispatcher: d,
		template:   template,
		logger:     logger,
		targets:    make(map[uuid.UUID]target),
	}, nil
}

// Serve forwards bus events until ctx is cancelled or the bus closes.
func (f *Forwarder) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-f.sub.Events():
			if !ok {
				return bus.ErrClosed
			}
			f.Handle(ev)
		}
	}
}

// Close detaches the forwarder from the bus.
func (f *Forwarder) Close() {
	f.sub.Close()
}

// Handle processes one event. Errors are logged, never returned.
func (f *Forwarder) Handle(ev bus.Event) {
	switch e := ev.(type) {
	case bus.Registration:
		f.Register(e)
	case bus.Reading:
		if err := f.Forward(e); err != nil {
			if errors.Is(err, ErrNotScalar) {
				f.logger.Debug("webhook skipped", "identity", e.ID.String(), "error", err)
				return
			}
			f.logger.Error("webhook reading dropped", "identity", e.ID.String(), "error", err)
		}
	}
}

// Register records an identity's name and category, replacing earlier values.
func (f *Forwarder) Register(reg bus.Registration) {
	f.mu.Lock()
	f.targets[reg.ID] = target{name: reg.Name, category: reg.Category}
	f.mu.Unlock()
}

// Forward builds the request for a reading and dispatches it.
func (f *Forwarder) Forward(r bus.Reading) error {
	u, err := f.URLFor(r)
	if err != nil {
		return err
	}
	f.dispatcher.Dispatch(u)
	return nil
}

// URLFor builds the outbound URL for a reading without sending it.
func (f *Forwarder) URLFor(r bus.Reading) (string, error) {
	f.mu.RLock()
	t, ok := f.targets[r.ID]
	f.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownIdentity, r.ID)
	}

	v, ok := r.Value.Float()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotScalar, r.Value)
	}

	category := t.category
	if r.Category != "" {
		category = r.Category
	}

	value := formatValue(v)
	q := url.Values{}
	q.Set("accessoryId", t.name)
	if category == CategorySwitch {
		q.Set("state", strconv.FormatBool(v != 0))
	} else {
		q.Set("value", value)
	}

	out, missing := Expand(f.template, q.Encode(), t.name, value)
	if missing > 0 {
		f.logger.Warn("webhook template has unfilled placeholders", "missing", missing)
	}
	return out, nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
