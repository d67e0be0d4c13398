package influxdb

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/homehub/internal/infrastructure/config"
)

// fakeWriteAPI captures points instead of sending them.
type fakeWriteAPI struct {
	api.WriteAPI

	mu      sync.Mutex
	points  []*write.Point
	flushes int
	errs    chan error
}

func newFakeWriteAPI() *fakeWriteAPI {
	return &fakeWriteAPI{errs: make(chan error, 1)}
}

func (f *fakeWriteAPI) WritePoint(p *write.Point) {
	f.mu.Lock()
	f.points = append(f.points, p)
	f.mu.Unlock()
}

func (f *fakeWriteAPI) Flush() {
	f.mu.Lock()
	f.flushes++
	f.mu.Unlock()
}

func (f *fakeWriteAPI) Errors() <-chan error { return f.errs }

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: true, URL: "http://127.0.0.1:59999"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteReading(t *testing.T) {
	fake := newFakeWriteAPI()
	c := newClient(nil, fake, config.InfluxDBConfig{})

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.WriteReading("roomA", map[string]string{"unit": "celsius", "kind": "temperature"}, 21.5, ts)

	if len(fake.points) != 1 {
		t.Fatalf("points = %d, want 1", len(fake.points))
	}
	p := fake.points[0]
	if p.Name() != "roomA" {
		t.Errorf("measurement = %q, want roomA", p.Name())
	}
	tags := p.TagList()
	if len(tags) != 2 || tags[0].Key != "kind" || tags[0].Value != "temperature" {
		t.Errorf("tags = %v, want kind=temperature first", tags)
	}
	fields := p.FieldList()
	if len(fields) != 1 || fields[0].Key != "value" || fields[0].Value != 21.5 {
		t.Errorf("fields = %v, want value=21.5", fields)
	}
	if !p.Time().Equal(ts) {
		t.Errorf("time = %v, want %v", p.Time(), ts)
	}
}

func TestWriteCommand(t *testing.T) {
	fake := newFakeWriteAPI()
	c := newClient(nil, fake, config.InfluxDBConfig{})

	c.WriteCommand("hf1", "fan_speed", "4", time.Time{})

	if len(fake.points) != 1 || fake.points[0].Name() != "appliance_commands" {
		t.Fatalf("points = %v", fake.points)
	}
	if fake.points[0].Time().IsZero() {
		t.Error("zero timestamp should be replaced with now")
	}
}

func TestClose_StopsWrites(t *testing.T) {
	fake := newFakeWriteAPI()
	c := newClient(nil, fake, config.InfluxDBConfig{})

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if fake.flushes != 1 {
		t.Errorf("flushes = %d, want 1", fake.flushes)
	}

	c.WriteReading("roomA", nil, 1, time.Time{})
	c.Flush()
	if len(fake.points) != 0 || fake.flushes != 1 {
		t.Error("writes after Close() should be dropped")
	}

	var nilClient *Client
	if err := nilClient.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}

func TestOnError(t *testing.T) {
	fake := newFakeWriteAPI()
	c := newClient(nil, fake, config.InfluxDBConfig{})

	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })
	fake.errs <- errors.New("bucket not found")

	select {
	case err := <-got:
		if !errors.Is(err, ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("write error callback not invoked")
	}
}
