package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/homehub/internal/bus"
)

// categoryTag is added to points whose reading carries a category.
const categoryTag = "category"

// Writer is the time-series sink. influxdb.Client implements it.
type Writer interface {
	WriteReading(name string, labels map[string]string, value float64, ts time.Time)
}

// Logger is the logging surface the recorder needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

type shape struct {
	name     string
	labels   []string
	category string
}

// Recorder writes scalar readings to a Writer.
type Recorder struct {
	w      Writer
	sub    *bus.Subscription
	logger Logger
	now    func() time.Time

	mu     sync.RWMutex
	shapes map[uuid.UUID]shape
}

// New creates a recorder and subscribes it to the bus.
func New(b *bus.Bus, w Writer, logger Logger, inbox int) (*Recorder, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	sub, err := b.Subscribe("recorder", inbox, bus.KindRegistration, bus.KindReading)
	if err != nil {
		return nil, fmt.Errorf("subscribing recorder: %w", err)
	}
	return &Recorder{
		w:      w,
		sub:    sub,
		logger: logger,
		now:    time.Now,
		shapes: make(map[uuid.UUID]shape),
	}, nil
}

// Serve records bus events until ctx is cancelled or the bus closes.
func (r *Recorder) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-r.sub.Events():
			if !ok {
				return bus.ErrClosed
			}
			r.Handle(ev)
		}
	}
}

// Close detaches the recorder from the bus.
func (r *Recorder) Close() {
	r.sub.Close()
}

// Handle processes one event.
func (r *Recorder) Handle(ev bus.Event) {
	switch e := ev.(type) {
	case bus.Registration:
		r.mu.Lock()
		r.shapes[e.ID] = shape{
			name:     e.Name,
			labels:   append([]string(nil), e.Labels...),
			category: e.Category,
		}
		r.mu.Unlock()
	case bus.Reading:
		r.record(e)
	}
}

func (r *Recorder) record(e bus.Reading) {
	r.mu.RLock()
	s, ok := r.shapes[e.ID]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("reading for unknown identity not recorded", "identity", e.ID.String())
		return
	}

	value, ok := e.Value.Float()
	if !ok {
		r.logger.Debug("non-scalar reading not recorded", "name", s.name, "value", e.Value.String())
		return
	}
	if len(e.Labels) != len(s.labels) {
		r.logger.Warn("reading label count mismatch, not recorded",
			"name", s.name,
			"want", len(s.labels),
			"got", len(e.Labels),
		)
		return
	}

	tags := make(map[string]string, len(s.labels)+1)
	for i, name := range s.labels {
		tags[name] = e.Labels[i]
	}
	category := s.category
	if e.Category != "" {
		category = e.Category
	}
	if category != "" {
		tags[categoryTag] = category
	}

	r.w.WriteReading(s.name, tags, value, r.now())
}
