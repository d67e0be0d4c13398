package metrics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/nerrad567/homehub/internal/bus"
)

// Logger is the logging surface the registry needs.
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

// binding is what an identity resolves to.
type binding struct {
	metric  bus.MetricKind
	name    string
	labels  int
	gauge   *prometheus.GaugeVec
	counter *prometheus.CounterVec
}

func (b *binding) collector() prometheus.Collector {
	if b.gauge != nil {
		return b.gauge
	}
	return b.counter
}

// Registry maps reading identities to Prometheus collectors.
//
// Several identities may share one collector when they register the same
// name, kind and labels; the collector is unregistered when the last
// identity bound to it re-registers as something else.
type Registry struct {
	reg    *prometheus.Registry
	sub    *bus.Subscription
	logger Logger

	mu       sync.RWMutex
	bindings map[uuid.UUID]*binding
	refs     map[prometheus.Collector]int
}

// New creates a registry and subscribes it to the bus. Subscribing here,
// rather than in Serve, means no registration published between startup
// and the first Serve call is missed.
//
// Returns:
//   - *Registry: Registry ready to Serve
//   - error: bus.ErrNotInitialized or bus.ErrClosed from the subscription
func New(b *bus.Bus, logger Logger, inbox int) (*Registry, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	sub, err := b.Subscribe("metrics", inbox, bus.KindRegistration, bus.KindReading)
	if err != nil {
		return nil, fmt.Errorf("subscribing metrics registry: %w", err)
	}
	return &Registry{
		reg:      prometheus.NewRegistry(),
		sub:      sub,
		logger:   logger,
		bindings: make(map[uuid.UUID]*binding),
		refs:     make(map[prometheus.Collector]int),
	}, nil
}

// Serve applies bus events until ctx is cancelled or the bus closes.
// It returns bus.ErrClosed in the latter case.
func (r *Registry) Serve(ctx context.Context) error {
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

// Close detaches the registry from the bus.
func (r *Registry) Close() {
	r.sub.Close()
}

// Handle applies one event, logging instead of returning errors.
func (r *Registry) Handle(ev bus.Event) {
	switch e := ev.(type) {
	case bus.Registration:
		if err := r.Register(e); err != nil {
			r.logger.Error("metric registration dropped", "name", e.Name, "identity", e.ID.String(), "error", err)
		}
	case bus.Reading:
		if err := r.Apply(e); err != nil {
			if errors.Is(err, ErrUnsupported) {
				r.logger.Debug("metric reading ignored", "identity", e.ID.String(), "error", err)
				return
			}
			r.logger.Error("metric reading dropped", "identity", e.ID.String(), "error", err)
		}
	}
}

// Register binds an identity to a collector, replacing any earlier binding
// for the same identity. When the new definition cannot be registered the
// earlier binding stays in place.
func (r *Registry) Register(reg bus.Registration) error {
	next := &binding{metric: reg.Metric, name: reg.Name, labels: len(reg.Labels)}
	switch reg.Metric {
	case bus.Gauge:
		next.gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: reg.Name, Help: reg.Name}, reg.Labels)
	case bus.Counter:
		next.counter = prometheus.NewCounterVec(prometheus.CounterOpts{Name: reg.Name, Help: reg.Name}, reg.Labels)
	default:
		return fmt.Errorf("%w: unknown metric kind %v", ErrRegisterFailed, reg.Metric)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, hadPrev := r.bindings[reg.ID]
	err := r.attach(next)
	switch {
	case err == nil:
		if hadPrev {
			r.release(prev.collector())
		}
	case hadPrev:
		// The earlier binding may hold the name the new definition needs.
		r.release(prev.collector())
		if err = r.attach(next); err != nil {
			r.restore(prev.collector())
			return err
		}
	default:
		return err
	}

	r.bindings[reg.ID] = next
	r.logger.Debug("metric registered", "name", reg.Name, "kind", reg.Metric.String(), "identity", reg.ID.String())
	return nil
}

// attach registers next's collector, or points next at a live collector of
// the same name, kind and labels. Callers hold r.mu.
func (r *Registry) attach(next *binding) error {
	if err := r.reg.Register(next.collector()); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return fmt.Errorf("%w: %w", ErrRegisterFailed, err)
		}
		switch existing := are.ExistingCollector.(type) {
		case *prometheus.GaugeVec:
			if next.metric != bus.Gauge {
				return fmt.Errorf("%w: %q is registered as a gauge", ErrRegisterFailed, next.name)
			}
			next.gauge = existing
		case *prometheus.CounterVec:
			if next.metric != bus.Counter {
				return fmt.Errorf("%w: %q is registered as a counter", ErrRegisterFailed, next.name)
			}
			next.counter = existing
		default:
			return fmt.Errorf("%w: %q is held by a foreign collector", ErrRegisterFailed, next.name)
		}
	}
	r.refs[next.collector()]++
	return nil
}

// release drops one reference and unregisters the collector when unused.
// Callers hold r.mu.
func (r *Registry) release(c prometheus.Collector) {
	r.refs[c]--
	if r.refs[c] > 0 {
		return
	}
	delete(r.refs, c)
	r.reg.Unregister(c)
}

// restore takes back a reference dropped by release.
func (r *Registry) restore(c prometheus.Collector) {
	if r.refs[c] == 0 {
		if err := r.reg.Register(c); err != nil {
			r.logger.Error("metric could not be restored", "error", err)
		}
	}
	r.refs[c]++
}

// Apply applies a reading to the collector bound to its identity.
func (r *Registry) Apply(reading bus.Reading) error {
	r.mu.RLock()
	b, ok := r.bindings[reading.ID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIdentity, reading.ID)
	}
	if len(reading.Labels) != b.labels {
		return fmt.Errorf("%w: %q wants %d, got %d", ErrLabelMismatch, b.name, b.labels, len(reading.Labels))
	}

	if b.gauge != nil {
		g, err := b.gauge.GetMetricWithLabelValues(reading.Labels...)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLabelMismatch, err)
		}
		switch reading.Value.Op() {
		case bus.OpScalar:
			v, _ := reading.Value.Float()
			g.Set(v)
		case bus.OpIncrement:
			g.Inc()
		case bus.OpDecrement:
			g.Dec()
		}
		return nil
	}

	c, err := b.counter.GetMetricWithLabelValues(reading.Labels...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLabelMismatch, err)
	}
	switch reading.Value.Op() {
	case bus.OpIncrement:
		c.Inc()
		return nil
	case bus.OpDecrement:
		// Counters are monotonic.
		return fmt.Errorf("%w: decrement on counter %q", ErrUnsupported, b.name)
	default:
		return fmt.Errorf("%w: scalar on counter %q", ErrUnsupported, b.name)
	}
}

// Snapshot renders every registered collector in the Prometheus text format.
func (r *Registry) Snapshot() (string, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return "", fmt.Errorf("gathering metrics: %w", err)
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", fmt.Errorf("encoding %s: %w", mf.GetName(), err)
		}
	}
	return buf.String(), nil
}

// Gatherer exposes the underlying registry, e.g. for promhttp.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
