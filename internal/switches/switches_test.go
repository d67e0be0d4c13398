package switches

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/homehub/internal/bus"
)

func drain(sub *bus.Subscription) []bus.Event {
	var out []bus.Event
	for {
		select {
		case ev := <-sub.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestNew_RejectsBadNames(t *testing.T) {
	for _, names := range [][]string{{"desk lamp"}, {""}, {"lamp", "lamp"}} {
		_, err := New(bus.New(nil, bus.Options{}), names)
		assert.ErrorIs(t, err, ErrInvalidName, "%v", names)
	}
}

func TestStart_RegistersEverySwitch(t *testing.T) {
	b := bus.New(nil, bus.Options{})
	sub, err := b.Subscribe("test", 16)
	require.NoError(t, err)

	bank, err := New(b, []string{"lamp", "fountain"})
	require.NoError(t, err)
	require.NoError(t, bank.Start())

	events := drain(sub)
	require.Len(t, events, 4)

	reg, ok := events[0].(bus.Registration)
	require.True(t, ok)
	assert.Equal(t, "switch_fountain", reg.Name)
	assert.Equal(t, Category, reg.Category)

	r, ok := events[1].(bus.Reading)
	require.True(t, ok)
	assert.Equal(t, reg.ID, r.ID)
	assert.Equal(t, bus.Scalar(0), r.Value)
	assert.Equal(t, []string{"fountain", "onoff"}, r.Labels)
}

func TestSetGet(t *testing.T) {
	b := bus.New(nil, bus.Options{})
	bank, err := New(b, []string{"lamp"})
	require.NoError(t, err)
	sub, err := b.Subscribe("test", 16, bus.KindReading)
	require.NoError(t, err)

	on, err := bank.Get("lamp")
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, bank.Set("lamp", true))
	on, err = bank.Get("lamp")
	require.NoError(t, err)
	assert.True(t, on)

	events := drain(sub)
	require.Len(t, events, 1)
	assert.Equal(t, bus.Scalar(1), events[0].(bus.Reading).Value)
	assert.Equal(t, Category, events[0].(bus.Reading).Category)
}

func TestUnknownSwitch(t *testing.T) {
	bank, err := New(bus.New(nil, bus.Options{}), []string{"lamp"})
	require.NoError(t, err)

	_, err = bank.Get("heater")
	assert.ErrorIs(t, err, ErrUnknownSwitch)
	assert.ErrorIs(t, bank.Set("heater", true), ErrUnknownSwitch)
	assert.Equal(t, []string{"lamp"}, bank.Names())
}
