package external

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/homehub/internal/bus"
)

func staticRunner(out string, err error) Runner {
	return func(context.Context, string, []string) ([]byte, error) {
		return []byte(out), err
	}
}

func readings(sub *bus.Subscription) []bus.Reading {
	var out []bus.Reading
	for {
		select {
		case ev := <-sub.Events():
			if r, ok := ev.(bus.Reading); ok {
				out = append(out, r)
			}
		default:
			return out
		}
	}
}

func TestNew(t *testing.T) {
	_, err := New(Config{Command: "  "}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoCommand)

	s, err := New(Config{Command: "/usr/local/bin/bme680 --bus 1"}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/bme680", s.Path())
	assert.Equal(t, []string{"--bus", "1"}, s.args)
	assert.Equal(t, DefaultResolution, s.resolution)
}

func TestParse(t *testing.T) {
	samples, err := Parse([]byte(`[{"value":21.5,"kind":"temperature","unit":"celsius"},{"value":40,"kind":"humidity","unit":"percent"}]`))
	require.NoError(t, err)
	assert.Equal(t, []Sample{
		{Value: 21.5, Kind: "temperature", Unit: "celsius"},
		{Value: 40, Kind: "humidity", Unit: "percent"},
	}, samples)

	_, err = Parse([]byte(`{"value":1}`))
	assert.ErrorIs(t, err, ErrBadOutput)
}

func TestSample_PublishesReadings(t *testing.T) {
	b := bus.New(nil, bus.Options{})
	sub, err := b.Subscribe("test", 8, bus.KindReading)
	require.NoError(t, err)

	s, err := New(Config{Command: "sensor", MetricName: "roomA"}, b,
		staticRunner(`[{"value":1013.2,"kind":"pressure","unit":"hpa"}]`, nil), nil)
	require.NoError(t, err)

	require.NoError(t, s.Sample(context.Background()))

	got := readings(sub)
	require.Len(t, got, 1)
	assert.Equal(t, s.identity, got[0].ID)
	assert.Equal(t, bus.Scalar(1013.2), got[0].Value)
	assert.Equal(t, []string{"pressure", "hpa"}, got[0].Labels)
}

func TestSample_Failures(t *testing.T) {
	b := bus.New(nil, bus.Options{})
	sub, err := b.Subscribe("test", 8, bus.KindReading)
	require.NoError(t, err)

	failing, err := New(Config{Command: "sensor"}, b, staticRunner("", ErrRunFailed), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, failing.Sample(context.Background()), ErrRunFailed)

	garbled, err := New(Config{Command: "sensor"}, b, staticRunner("not json", nil), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, garbled.Sample(context.Background()), ErrBadOutput)

	assert.Empty(t, readings(sub))
}

func TestServe_RegistersThenSamples(t *testing.T) {
	b := bus.New(nil, bus.Options{})
	sub, err := b.Subscribe("test", 64)
	require.NoError(t, err)

	s, err := New(Config{Command: "sensor", MetricName: "roomA", Resolution: 10 * time.Millisecond}, b,
		staticRunner(`[{"value":5,"kind":"co2","unit":"ppm"}]`, nil), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	first := <-sub.Events()
	reg, ok := first.(bus.Registration)
	require.True(t, ok, "first event should be the registration, got %T", first)
	assert.Equal(t, "roomA", reg.Name)
	assert.Equal(t, []string{"kind", "unit"}, reg.Labels)

	select {
	case ev := <-sub.Events():
		assert.IsType(t, bus.Reading{}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a reading")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestServe_NilBus(t *testing.T) {
	s, err := New(Config{Command: "sensor"}, nil, staticRunner("[]", nil), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Serve(context.Background()), bus.ErrNotInitialized)
}

func TestExec(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	out, err := Exec(context.Background(), "/bin/sh", []string{"-c", `echo "[{\"value\":1,\"kind\":\"k\",\"unit\":\"u\"}]"`})
	require.NoError(t, err)
	samples, err := Parse(out)
	require.NoError(t, err)
	assert.Len(t, samples, 1)

	out, err = Exec(context.Background(), "/bin/sh", []string{"-c", `printf "%s" "${HOME:-unset}"`})
	require.NoError(t, err)
	assert.Equal(t, "unset", string(out), "environment should be cleared")

	_, err = Exec(context.Background(), "/bin/sh", []string{"-c", "echo broken >&2; exit 3"})
	assert.ErrorIs(t, err, ErrRunFailed)
	var exitErr *exec.ExitError
	assert.True(t, errors.As(err, &exitErr))
}
