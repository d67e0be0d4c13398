package bus

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *captureLogger) Debug(string, ...any) {}
func (l *captureLogger) Info(string, ...any)  {}
func (l *captureLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
func (l *captureLogger) Error(string, ...any) {}

func drain(sub *Subscription) []Event {
	var out []Event
	for {
		select {
		case ev := <-sub.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestNilBus(t *testing.T) {
	var b *Bus

	_, err := b.Subscribe("metrics", 1)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, b.Publish(Reading{}), ErrNotInitialized)
	assert.Equal(t, Stats{}, b.Stats())
	b.Close()
}

func TestPublish_FanOutByKind(t *testing.T) {
	b := New(nil, Options{})
	all, err := b.Subscribe("all", 8)
	require.NoError(t, err)
	readings, err := b.Subscribe("readings", 8, KindReading)
	require.NoError(t, err)

	id := NewIdentity()
	require.NoError(t, b.Publish(Registration{ID: id, Metric: Gauge, Name: "temp", Labels: []string{"kind", "unit"}}))
	require.NoError(t, b.Publish(Reading{ID: id, Value: Scalar(21.5), Labels: []string{"temperature", "celsius"}}))

	gotAll := drain(all)
	require.Len(t, gotAll, 2)
	assert.Equal(t, KindRegistration, gotAll[0].Kind())
	assert.Equal(t, KindReading, gotAll[1].Kind())

	gotReadings := drain(readings)
	require.Len(t, gotReadings, 1)
	r := gotReadings[0].(Reading)
	v, ok := r.Value.Float()
	assert.True(t, ok)
	assert.Equal(t, 21.5, v)
	assert.Equal(t, uint64(2), b.Stats().Published)
}

func TestPublish_DropsOnFullInbox(t *testing.T) {
	logger := &captureLogger{}
	b := New(logger, Options{})
	slow, err := b.Subscribe("slow", 1)
	require.NoError(t, err)
	fast, err := b.Subscribe("fast", 10)
	require.NoError(t, err)

	id := NewIdentity()
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish(Reading{ID: id, Value: Increment()}))
	}

	assert.Len(t, drain(slow), 1)
	assert.Len(t, drain(fast), 3, "a slow subscriber must not affect others")
	assert.Equal(t, uint64(2), slow.Dropped())
	assert.Equal(t, uint64(2), b.Stats().Dropped)
	assert.Len(t, logger.warns, 2)
}

func TestSubscription_Close(t *testing.T) {
	b := New(nil, Options{InboxSize: 4})
	sub, err := b.Subscribe("x", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, cap(sub.ch))

	sub.Close()
	sub.Close()

	_, open := <-sub.Events()
	assert.False(t, open)
	assert.Equal(t, 0, b.Stats().Subscribers)
	assert.NoError(t, b.Publish(Reading{ID: uuid.New(), Value: Increment()}))
}

func TestBus_Close(t *testing.T) {
	b := New(nil, Options{})
	sub, err := b.Subscribe("x", 1)
	require.NoError(t, err)

	b.Close()
	sub.Close() // after bus close must not double-close

	_, open := <-sub.Events()
	assert.False(t, open)
	assert.ErrorIs(t, b.Publish(Reading{}), ErrClosed)
	_, err = b.Subscribe("late", 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublish_NilEvent(t *testing.T) {
	b := New(nil, Options{})
	assert.ErrorIs(t, b.Publish(nil), ErrInvalidEvent)
}

func TestValue(t *testing.T) {
	_, ok := Increment().Float()
	assert.False(t, ok)
	assert.Equal(t, OpDecrement, Decrement().Op())
	assert.Equal(t, "21.5", Scalar(21.5).String())
	assert.Equal(t, "gauge", Gauge.String())
	assert.Equal(t, "reading", KindReading.String())
}

// One producer's events reach a subscriber in publish order, registrations
// and readings interleaved, as long as the inbox has room.
func TestPublish_PropertyPreservesProducerOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("subscriber sees producer order", prop.ForAll(
		func(ops []bool) bool {
			b := New(nil, Options{})
			sub, err := b.Subscribe("order", len(ops)+1)
			if err != nil {
				return false
			}
			id := NewIdentity()
			for i, isReg := range ops {
				var ev Event = Reading{ID: id, Value: Scalar(float64(i))}
				if isReg {
					ev = Registration{ID: id, Metric: Gauge, Name: "n" + Scalar(float64(i)).String()}
				}
				if b.Publish(ev) != nil {
					return false
				}
			}
			got := drain(sub)
			if len(got) != len(ops) {
				return false
			}
			for i, ev := range got {
				switch e := ev.(type) {
				case Registration:
					if !ops[i] || e.Name != "n"+Scalar(float64(i)).String() {
						return false
					}
				case Reading:
					v, _ := e.Value.Float()
					if ops[i] || v != float64(i) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestPublish_ConcurrentWithClose(t *testing.T) {
	b := New(nil, Options{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		sub, err := b.Subscribe("c", 1)
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub.Close()
		}()
	}
	for i := 0; i < 100; i++ {
		_ = b.Publish(Reading{ID: uuid.New(), Value: Increment()})
	}
	wg.Wait()
	assert.Equal(t, 0, b.Stats().Subscribers)
}
