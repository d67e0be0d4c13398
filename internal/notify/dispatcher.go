package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// defaultTimeout bounds one outbound call when the caller supplies no client.
const defaultTimeout = 10 * time.Second

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

// Dispatcher issues fire-and-forget GET requests.
//
// With maxInFlight > 0 at most that many requests run at once; later ones
// wait on their own goroutine, so Dispatch still returns immediately.
type Dispatcher struct {
	client *http.Client
	sem    *semaphore.Weighted
	logger Logger

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A nil client gets a default with a
// 10s timeout; maxInFlight <= 0 leaves concurrency unbounded.
func NewDispatcher(client *http.Client, maxInFlight int64, logger Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	d := &Dispatcher{client: client, logger: logger}
	if maxInFlight > 0 {
		d.sem = semaphore.NewWeighted(maxInFlight)
	}
	return d
}

// Dispatch sends one GET in the background.
func (d *Dispatcher) Dispatch(rawURL string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.get(context.Background(), rawURL); err != nil {
			d.logger.Warn("webhook call failed", "target", redact(rawURL), "error", err)
		}
	}()
}

// DispatchAll sends a batch of GETs concurrently in the background and logs
// the first failure, if any.
func (d *Dispatcher) DispatchAll(label string, rawURLs []string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		g, ctx := errgroup.WithContext(context.Background())
		for _, u := range rawURLs {
			g.Go(func() error {
				return d.get(ctx, u)
			})
		}
		if err := g.Wait(); err != nil {
			d.logger.Warn("webhook batch failed", "batch", label, "requests", len(rawURLs), "error", err)
		}
	}()
}

// Wait blocks until every dispatched call has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) get(ctx context.Context, rawURL string) error {
	if d.sem != nil {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("%w: %w", ErrRequestFailed, err)
		}
		defer d.sem.Release(1)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	d.logger.Debug("webhook call sent", "target", redact(rawURL), "status", resp.StatusCode)
	return nil
}

// redact drops the query string, which carries accessory names and values.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
