package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/homehub/internal/bus"
)

// DefaultResolution applies when none is configured.
const DefaultResolution = time.Second

// maxStderr bounds how much stderr is kept for the error message.
const maxStderr = 512

// Logger is the logging surface the sensor needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Sample is one element of a program's output.
type Sample struct {
	Value float64 `json:"value"`
	Kind  string  `json:"kind"`
	Unit  string  `json:"unit"`
}

// Runner executes a program and returns its stdout.
type Runner func(ctx context.Context, path string, args []string) ([]byte, error)

// Config configures one external sensor.
type Config struct {
	// Command is the program path, optionally followed by
	// whitespace-separated arguments.
	Command string

	// MetricName is the gauge the samples are recorded under.
	MetricName string

	// Resolution is the sampling interval. Each run must finish within it.
	Resolution time.Duration
}

// Sensor samples one external program.
type Sensor struct {
	path       string
	args       []string
	metricName string
	resolution time.Duration
	identity   uuid.UUID

	bus    *bus.Bus
	run    Runner
	logger Logger
}

// New creates a sensor. A nil runner executes the program with os/exec.
func New(cfg Config, b *bus.Bus, run Runner, logger Logger) (*Sensor, error) {
	fields := strings.Fields(cfg.Command)
	if len(fields) == 0 {
		return nil, ErrNoCommand
	}
	if cfg.Resolution <= 0 {
		cfg.Resolution = DefaultResolution
	}
	if run == nil {
		run = Exec
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Sensor{
		path:       fields[0],
		args:       fields[1:],
		metricName: cfg.MetricName,
		resolution: cfg.Resolution,
		identity:   bus.NewIdentity(),
		bus:        b,
		run:        run,
		logger:     logger,
	}, nil
}

// Path returns the program path.
func (s *Sensor) Path() string { return s.path }

// Serve registers the gauge, then samples once per resolution until ctx is
// cancelled. A registration failure is returned immediately.
func (s *Sensor) Serve(ctx context.Context) error {
	if err := s.bus.Publish(bus.Registration{
		ID:     s.identity,
		Metric: bus.Gauge,
		Name:   s.metricName,
		Labels: []string{"kind", "unit"},
	}); err != nil {
		return fmt.Errorf("registering %s: %w", s.path, err)
	}
	s.logger.Info("external sensor started", "path", s.path, "resolution", s.resolution.String())

	ticker := time.NewTicker(s.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sample(ctx); err != nil {
				if errors.Is(err, bus.ErrClosed) {
					return err
				}
				s.logger.Warn("external sensor sample skipped", "path", s.path, "error", err)
			}
		}
	}
}

// Sample runs the program once and publishes its readings.
func (s *Sensor) Sample(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, s.resolution)
	defer cancel()

	out, err := s.run(runCtx, s.path, s.args)
	if err != nil {
		return err
	}
	samples, err := Parse(out)
	if err != nil {
		return err
	}

	s.logger.Debug("external sensor sampled", "path", s.path, "samples", len(samples))
	for _, sm := range samples {
		if err := s.bus.Publish(bus.Reading{
			ID:     s.identity,
			Value:  bus.Scalar(sm.Value),
			Labels: []string{sm.Kind, sm.Unit},
		}); err != nil {
			return err
		}
	}
	return nil
}

// Parse decodes program output.
func Parse(out []byte) ([]Sample, error) {
	var samples []Sample
	if err := json.Unmarshal(out, &samples); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadOutput, err)
	}
	return samples, nil
}

// Exec runs path with args, an empty environment and its own process group,
// returning stdout.
func Exec(ctx context.Context, path string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...) //nolint:gosec // path comes from operator config
	cmd.Env = []string{}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = msg[:maxStderr]
		}
		if msg != "" {
			return nil, fmt.Errorf("%w: %s: %w: %s", ErrRunFailed, path, err, msg)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrRunFailed, path, err)
	}
	return stdout.Bytes(), nil
}
