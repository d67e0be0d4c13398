package heater

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/homehub/internal/bus"
	"github.com/nerrad567/homehub/internal/notify"
)

// inboundBuffer is the listener queue depth.
const inboundBuffer = 1000

// commandQoS is at-least-once.
const commandQoS = 1

// Transport is the MQTT surface the appliance needs.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	IsConnected() bool
}

// StatePusher receives the full appliance state after each refresh.
// notify.StatePusher implements it.
type StatePusher interface {
	PushApplianceState(state notify.ApplianceState)
}

// CommandAuditor records accepted writes. influxdb.Client implements it.
type CommandAuditor interface {
	WriteCommand(deviceID, property, payload string, ts time.Time)
}

// Logger is the logging surface this package needs.
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

// ConnState is the appliance connection state.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connected
	// Synchronized means every property has been reported at least once.
	// It is informational; nothing waits for it.
	Synchronized
)

func (s ConnState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Synchronized:
		return "synchronized"
	default:
		return "disconnected"
	}
}

// Options configures an Appliance.
type Options struct {
	DeviceID string

	// MetricName is the gauge name registered for derived readings.
	MetricName string

	HistorySize int

	// RefreshDebounce coalesces refreshes within the window. Zero
	// refreshes after every update.
	RefreshDebounce time.Duration

	Bus       *bus.Bus
	Transport Transport
	Pusher    StatePusher
	Auditor   CommandAuditor
	Logger    Logger
}

type inbound struct {
	topic   string
	payload []byte
	at      time.Time
}

// Appliance is one heater/fan instance: its store, listener and router.
type Appliance struct {
	deviceID   string
	metricName string
	identity   uuid.UUID

	bus       *bus.Bus
	transport Transport
	pusher    StatePusher
	auditor   CommandAuditor
	logger    Logger

	store *Store
	state atomic.Int32

	inbound chan inbound
	cancel  context.CancelFunc
	done    chan struct{}

	debounce     time.Duration
	refreshMu    sync.Mutex
	refreshTimer *time.Timer

	now func() time.Time
}

// New creates an appliance. Call Start to connect it.
func New(opts Options) (*Appliance, error) {
	if opts.DeviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrStartup)
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("%w: transport is required", ErrStartup)
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Appliance{
		deviceID:   opts.DeviceID,
		metricName: opts.MetricName,
		identity:   bus.NewIdentity(),
		bus:        opts.Bus,
		transport:  opts.Transport,
		pusher:     opts.Pusher,
		auditor:    opts.Auditor,
		logger:     opts.Logger,
		store:      NewStore(opts.HistorySize),
		inbound:    make(chan inbound, inboundBuffer),
		done:       make(chan struct{}),
		debounce:   opts.RefreshDebounce,
		now:        time.Now,
	}, nil
}

// DeviceID returns the appliance id.
func (a *Appliance) DeviceID() string { return a.deviceID }

// Store exposes the state store for read-only views.
func (a *Appliance) Store() *Store { return a.store }

// ConnState reports the connection state. A dropped transport reads as
// Disconnected regardless of the recorded state.
func (a *Appliance) ConnState() ConnState {
	s := ConnState(a.state.Load())
	if s != Disconnected && !a.transport.IsConnected() {
		return Disconnected
	}
	return s
}

// Start registers the gauge, subscribes to every state topic and starts the
// listener. Any failure is ErrStartup.
func (a *Appliance) Start(ctx context.Context) error {
	if err := a.bus.Publish(bus.Registration{
		ID:     a.identity,
		Metric: bus.Gauge,
		Name:   a.metricName,
		Labels: []string{"kind", "unit"},
	}); err != nil {
		return fmt.Errorf("%w: registering metric: %w", ErrStartup, err)
	}

	for _, p := range Properties {
		topic := StateTopic(a.deviceID, p)
		if err := a.transport.Subscribe(topic, commandQoS, a.Deliver); err != nil {
			// No listener will run; handlers already bound must fail fast.
			close(a.done)
			return fmt.Errorf("%w: subscribing %s: %w", ErrStartup, topic, err)
		}
	}

	listenCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go a.listen(listenCtx)

	a.state.Store(int32(Connected))
	a.logger.Info("heater listener up", "device_id", a.deviceID, "topics", len(Properties))
	return nil
}

// Stop cancels the listener without waiting for it. A message being
// processed at that moment is abandoned.
func (a *Appliance) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.state.Store(int32(Disconnected))

	a.refreshMu.Lock()
	if a.refreshTimer != nil {
		a.refreshTimer.Stop()
	}
	a.refreshMu.Unlock()
}

// Deliver queues an inbound message for the listener. It blocks while the
// queue is full and fails once the listener has stopped.
func (a *Appliance) Deliver(topic string, payload []byte) error {
	select {
	case <-a.done:
		return ErrNotConnected
	default:
	}

	msg := inbound{topic: topic, payload: payload, at: a.now()}
	select {
	case a.inbound <- msg:
		return nil
	case <-a.done:
		return ErrNotConnected
	}
}

func (a *Appliance) listen(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.inbound:
			a.process(msg)
		}
	}
}

// process applies one message to the store and triggers a refresh.
func (a *Appliance) process(msg inbound) {
	entry, err := a.store.Update(msg.topic, msg.payload, msg.at)
	if err != nil {
		a.logger.Warn("heater message skipped", "topic", msg.topic, "error", err)
		return
	}
	a.logger.Debug("heater state updated", "property", entry.Property.String(), "value", entry.Value.String())

	if a.store.Complete() && a.state.CompareAndSwap(int32(Connected), int32(Synchronized)) {
		a.logger.Info("heater synchronized", "device_id", a.deviceID)
	}

	a.scheduleRefresh()
}
