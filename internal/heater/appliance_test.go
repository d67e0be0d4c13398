package heater

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/homehub/internal/bus"
	"github.com/nerrad567/homehub/internal/notify"
)

// ─── Fakes ──────────────────────────────────────────────────────────

type published struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

type fakeTransport struct {
	mu         sync.Mutex
	connected  bool
	subscribed []string
	writes     []published
	failOn     string
	subErr     error
	subOK      int // subscriptions allowed before subErr applies
}

func newFakeTransport() *fakeTransport { return &fakeTransport{connected: true} }

func (f *fakeTransport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if topic == f.failOn {
		return errors.New("broker rejected publish")
	}
	f.writes = append(f.writes, published{topic, string(payload), qos, retained})
	return nil
}

func (f *fakeTransport) Subscribe(topic string, _ byte, _ func(string, []byte) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil && len(f.subscribed) >= f.subOK {
		return f.subErr
	}
	f.subscribed = append(f.subscribed, topic)
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Writes() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.writes...)
}

type fakePusher struct {
	states chan notify.ApplianceState
}

func (p *fakePusher) PushApplianceState(s notify.ApplianceState) { p.states <- s }

type fakeAuditor struct {
	mu    sync.Mutex
	props []string
}

func (a *fakeAuditor) WriteCommand(_, property, _ string, _ time.Time) {
	a.mu.Lock()
	a.props = append(a.props, property)
	a.mu.Unlock()
}

// ─── Helpers ────────────────────────────────────────────────────────

type harness struct {
	app       *Appliance
	bus       *bus.Bus
	transport *fakeTransport
	readings  *bus.Subscription
	pusher    *fakePusher
}

func startAppliance(t *testing.T) *harness {
	t.Helper()

	b := bus.New(nil, bus.Options{})
	readings, err := b.Subscribe("test", 64, bus.KindReading)
	require.NoError(t, err)

	tr := newFakeTransport()
	pusher := &fakePusher{states: make(chan notify.ApplianceState, 16)}
	app, err := New(Options{
		DeviceID:    testDevice,
		MetricName:  "roomA",
		HistorySize: 3,
		Bus:         b,
		Transport:   tr,
		Pusher:      pusher,
	})
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(app.Stop)

	return &harness{app: app, bus: b, transport: tr, readings: readings, pusher: pusher}
}

// seed writes state directly into the store, bypassing the listener.
func (h *harness) seed(t *testing.T, p Property, payload string) {
	t.Helper()
	_, err := h.app.Store().Update(stateTopic(p), []byte(payload), time.Now())
	require.NoError(t, err)
}

func nextReading(t *testing.T, sub *bus.Subscription) bus.Reading {
	t.Helper()
	select {
	case ev := <-sub.Events():
		r, ok := ev.(bus.Reading)
		require.True(t, ok, "unexpected event %T", ev)
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reading")
		return bus.Reading{}
	}
}

// ─── Lifecycle ──────────────────────────────────────────────────────

func TestNew_RequiresDeviceAndTransport(t *testing.T) {
	_, err := New(Options{Transport: newFakeTransport()})
	assert.ErrorIs(t, err, ErrStartup)
	_, err = New(Options{DeviceID: testDevice})
	assert.ErrorIs(t, err, ErrStartup)
}

func TestStart_SubscribesEveryStateTopic(t *testing.T) {
	h := startAppliance(t)

	assert.Len(t, h.transport.subscribed, len(Properties))
	assert.Contains(t, h.transport.subscribed, "appliance/heaterfan/dev1/state/power_on")
	assert.Equal(t, Connected, h.app.ConnState())
}

func TestStart_SubscribeFailure(t *testing.T) {
	tr := newFakeTransport()
	tr.subErr = errors.New("not authorised")
	app, err := New(Options{DeviceID: testDevice, Bus: bus.New(nil, bus.Options{}), Transport: tr})
	require.NoError(t, err)

	assert.ErrorIs(t, app.Start(context.Background()), ErrStartup)
}

func TestStart_PartialSubscribeFailureReleasesHandlers(t *testing.T) {
	tr := newFakeTransport()
	tr.subErr = errors.New("not authorised")
	tr.subOK = 3
	app, err := New(Options{DeviceID: testDevice, Bus: bus.New(nil, bus.Options{}), Transport: tr})
	require.NoError(t, err)

	require.ErrorIs(t, app.Start(context.Background()), ErrStartup)
	require.Len(t, tr.subscribed, 3)

	// Handlers already bound must not queue into a listener that never runs.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range inboundBuffer + 1 {
			assert.ErrorIs(t, app.Deliver(stateTopic(PropPowerOn), []byte("true")), ErrNotConnected)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver blocked after a failed Start")
	}
}

func TestStart_NilBus(t *testing.T) {
	app, err := New(Options{DeviceID: testDevice, Transport: newFakeTransport()})
	require.NoError(t, err)

	err = app.Start(context.Background())
	assert.ErrorIs(t, err, ErrStartup)
	assert.ErrorIs(t, err, bus.ErrNotInitialized)
}

func TestConnState_FollowsTransport(t *testing.T) {
	h := startAppliance(t)
	h.transport.mu.Lock()
	h.transport.connected = false
	h.transport.mu.Unlock()

	assert.Equal(t, Disconnected, h.app.ConnState())
}

// ─── Listener & refresh ─────────────────────────────────────────────

func TestListener_PowerOnPublishesReading(t *testing.T) {
	h := startAppliance(t)

	require.NoError(t, h.app.Deliver(stateTopic(PropPowerOn), []byte("true")))

	r := nextReading(t, h.readings)
	assert.Equal(t, []string{"power_on", "onoff"}, r.Labels)
	f, ok := r.Value.Float()
	require.True(t, ok)
	assert.Equal(t, 1.0, f)

	select {
	case ev := <-h.readings.Events():
		t.Fatalf("unexpected extra event %v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	_, v, ok := h.app.Store().Lookup(PropPowerOn)
	require.True(t, ok)
	assert.Equal(t, Bool(true), v)
}

func TestListener_PushesStateWithDefaults(t *testing.T) {
	h := startAppliance(t)

	require.NoError(t, h.app.Deliver(stateTopic(PropHeatStatus), []byte(`"active"`)))

	select {
	case s := <-h.pusher.states:
		assert.Equal(t, notify.ApplianceState{
			DeviceID:           testDevice,
			Heating:            true,
			FanSpeed:           1,
			CurrentTemperature: 1,
			TargetTemperature:  1,
		}, s)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state push")
	}
}

func TestListener_UnknownTopicIgnored(t *testing.T) {
	h := startAppliance(t)

	require.NoError(t, h.app.Deliver("appliance/heaterfan/dev1/state/turbo", []byte("1")))
	require.NoError(t, h.app.Deliver(stateTopic(PropFanSpeed), []byte("4")))

	r := nextReading(t, h.readings)
	assert.Equal(t, []string{"fan_speed", "steps"}, r.Labels)
	assert.Equal(t, 2, h.app.Store().HistoryLen())
}

func TestReadings(t *testing.T) {
	id := bus.NewIdentity()
	snap := Snapshot{Entries: map[Property]Entry{
		PropPowerOn:            {Property: PropPowerOn, Value: Bool(false)},
		PropCurrentTemperature: {Property: PropCurrentTemperature, Value: Int(19)},
		PropMode:               {Property: PropMode, Value: Enum(ModeSleep)},
	}}

	got := Readings(id, snap)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"power_on", "onoff"}, got[0].Labels)
	assert.Equal(t, bus.Scalar(0), got[0].Value)
	assert.Equal(t, []string{"temperature", "celsius"}, got[1].Labels)
	assert.Equal(t, bus.Scalar(19), got[1].Value)
	assert.Equal(t, id, got[1].ID)
}

func TestApplianceState_VentHeatCountsAsHeating(t *testing.T) {
	snap := Snapshot{Entries: map[Property]Entry{
		PropVentHeat:   {Value: Bool(true)},
		PropHeatStatus: {Value: Enum(HeatIdle)},
		PropFanSpeed:   {Value: Int(6)},
	}}

	s := ApplianceState("d", snap)
	assert.True(t, s.Heating)
	assert.Equal(t, 6, s.FanSpeed)
}

// ─── Command router ─────────────────────────────────────────────────

func TestExecute_SimpleWrite(t *testing.T) {
	h := startAppliance(t)
	h.seed(t, PropFanSpeed, "2")

	require.NoError(t, h.app.Execute(context.Background(), FanSpeed(5)))

	assert.Equal(t, []published{
		{topic: "appliance/heaterfan/dev1/state/fan_speed/set", payload: "5", qos: 1},
	}, h.transport.Writes())
}

func TestExecute_ModePayloadQuoted(t *testing.T) {
	h := startAppliance(t)
	h.seed(t, PropMode, `"normal"`)

	require.NoError(t, h.app.Execute(context.Background(), SetMode(ModeSleep)))

	writes := h.transport.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, `"sleep"`, writes[0].payload)
}

func TestExecute_ThermostatHeatingPowersOnFirst(t *testing.T) {
	h := startAppliance(t)
	h.seed(t, PropPowerOn, "false")
	h.seed(t, PropHeater, "false")

	require.NoError(t, h.app.Execute(context.Background(), Thermostat(ThermostatHeating)))

	assert.Equal(t, []published{
		{topic: "appliance/heaterfan/dev1/state/power_on/set", payload: "true", qos: 1},
		{topic: "appliance/heaterfan/dev1/state/heater/set", payload: "true", qos: 1},
	}, h.transport.Writes())
}

func TestExecute_ThermostatCoolingAlreadyOn(t *testing.T) {
	h := startAppliance(t)
	h.seed(t, PropPowerOn, "true")
	h.seed(t, PropHeater, "true")

	require.NoError(t, h.app.Execute(context.Background(), Thermostat(ThermostatCooling)))

	assert.Equal(t, []published{
		{topic: "appliance/heaterfan/dev1/state/heater/set", payload: "false", qos: 1},
	}, h.transport.Writes())
}

func TestExecute_ThermostatOffWritesOnlyPower(t *testing.T) {
	h := startAppliance(t)
	h.seed(t, PropPowerOn, "true")
	h.seed(t, PropHeater, "true")

	require.NoError(t, h.app.Execute(context.Background(), Thermostat(ThermostatOff)))

	assert.Equal(t, []published{
		{topic: "appliance/heaterfan/dev1/state/power_on/set", payload: "false", qos: 1},
	}, h.transport.Writes())
}

func TestExecute_UnknownPropertyWritesNothing(t *testing.T) {
	h := startAppliance(t)

	err := h.app.Execute(context.Background(), Oscillate(true))
	assert.ErrorIs(t, err, ErrUnknownProperty)

	h.seed(t, PropPowerOn, "false")
	err = h.app.Execute(context.Background(), Thermostat(ThermostatHeating))
	assert.ErrorIs(t, err, ErrUnknownProperty)

	assert.Empty(t, h.transport.Writes())
}

func TestExecute_NotConnected(t *testing.T) {
	app, err := New(Options{DeviceID: testDevice, Transport: newFakeTransport()})
	require.NoError(t, err)

	assert.ErrorIs(t, app.Execute(context.Background(), PowerOn(true)), ErrNotConnected)
}

func TestExecute_InvalidCommand(t *testing.T) {
	h := startAppliance(t)
	h.seed(t, PropFanSpeed, "2")

	assert.ErrorIs(t, h.app.Execute(context.Background(), FanSpeed(0)), ErrInvalidCommand)
	assert.Empty(t, h.transport.Writes())
}

func TestExecute_TransportFailureAborts(t *testing.T) {
	h := startAppliance(t)
	h.seed(t, PropPowerOn, "false")
	h.seed(t, PropHeater, "false")
	h.transport.failOn = "appliance/heaterfan/dev1/state/power_on/set"

	err := h.app.Execute(context.Background(), Thermostat(ThermostatHeating))
	assert.ErrorIs(t, err, ErrTransport)
	assert.Empty(t, h.transport.Writes())
}

func TestExecute_HeaterWriteFailureKeepsPowerOn(t *testing.T) {
	h := startAppliance(t)
	h.seed(t, PropPowerOn, "false")
	h.seed(t, PropHeater, "false")
	h.transport.failOn = "appliance/heaterfan/dev1/state/heater/set"

	err := h.app.Execute(context.Background(), Thermostat(ThermostatHeating))
	assert.ErrorIs(t, err, ErrTransport)

	// The power write already sent stays; nothing switches it back off.
	assert.Equal(t, []published{
		{topic: "appliance/heaterfan/dev1/state/power_on/set", payload: "true", qos: 1},
	}, h.transport.Writes())
}

func TestExecute_AuditsEachWrite(t *testing.T) {
	b := bus.New(nil, bus.Options{})
	auditor := &fakeAuditor{}
	app, err := New(Options{DeviceID: testDevice, Bus: b, Transport: newFakeTransport(), Auditor: auditor})
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(app.Stop)

	_, err = app.Store().Update(stateTopic(PropPowerOn), []byte("false"), time.Now())
	require.NoError(t, err)
	_, err = app.Store().Update(stateTopic(PropHeater), []byte("false"), time.Now())
	require.NoError(t, err)

	require.NoError(t, app.Execute(context.Background(), Thermostat(ThermostatHeating)))
	assert.Equal(t, []string{"power_on", "heater"}, auditor.props)
}
