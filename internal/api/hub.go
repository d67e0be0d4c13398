package api

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/homehub/internal/bus"
	"github.com/nerrad567/homehub/internal/infrastructure/config"
	"github.com/nerrad567/homehub/internal/infrastructure/logging"
)

// ReadingPayload is one labelled sample as sent to WebSocket clients.
type ReadingPayload struct {
	Name     string            `json:"name"`
	Labels   map[string]string `json:"labels"`
	Value    float64           `json:"value"`
	Category string            `json:"category,omitempty"`
}

// series returns a key unique to the metric name and label values.
func (p ReadingPayload) series() string {
	keys := make([]string, 0, len(p.Labels))
	for k := range p.Labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var sb strings.Builder
	sb.WriteString(p.Name)
	for _, k := range keys {
		sb.WriteByte('|')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(p.Labels[k])
	}
	return sb.String()
}

type readingShape struct {
	name     string
	labels   []string
	category string
}

// Hub is a bus subscriber that relays scalar readings to WebSocket clients.
//
// It keeps the latest value of every series so a client that subscribes
// late still receives the current picture.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger
	sub    *bus.Subscription

	// shapes is only touched by Serve.
	shapes map[uuid.UUID]readingShape

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	latest  map[string]ReadingPayload
}

// NewHub creates a hub and subscribes it to the bus.
func NewHub(b *bus.Bus, cfg config.WebSocketConfig, logger *logging.Logger, inbox int) (*Hub, error) {
	sub, err := b.Subscribe("websocket", inbox, bus.KindRegistration, bus.KindReading)
	if err != nil {
		return nil, fmt.Errorf("subscribing websocket hub: %w", err)
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		sub:     sub,
		shapes:  make(map[uuid.UUID]readingShape),
		clients: make(map[*wsClient]struct{}),
		latest:  make(map[string]ReadingPayload),
	}, nil
}

// Serve relays bus events until ctx is cancelled or the bus closes, then
// disconnects every client.
func (h *Hub) Serve(ctx context.Context) error {
	defer h.disconnectAll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-h.sub.Events():
			if !ok {
				return bus.ErrClosed
			}
			h.Handle(ev)
		}
	}
}

// Close detaches the hub from the bus.
func (h *Hub) Close() {
	h.sub.Close()
}

// Handle records registrations and publishes scalar readings. Readings for
// unknown identities, label mismatches and increments are not relayed.
func (h *Hub) Handle(ev bus.Event) {
	switch e := ev.(type) {
	case bus.Registration:
		h.shapes[e.ID] = readingShape{name: e.Name, labels: e.Labels, category: e.Category}
	case bus.Reading:
		shape, ok := h.shapes[e.ID]
		if !ok {
			return
		}
		value, ok := e.Value.Float()
		if !ok || len(e.Labels) != len(shape.labels) {
			return
		}
		p := ReadingPayload{
			Name:     shape.name,
			Labels:   make(map[string]string, len(shape.labels)),
			Value:    value,
			Category: shape.category,
		}
		for i, name := range shape.labels {
			p.Labels[name] = e.Labels[i]
		}
		if e.Category != "" {
			p.Category = e.Category
		}
		h.publish(p)
	}
}

func (h *Hub) publish(p ReadingPayload) {
	data, err := json.Marshal(newFrame(FrameReading, "", p))
	if err != nil {
		h.logger.Error("encoding websocket reading", "error", err)
		return
	}

	h.mu.Lock()
	h.latest[p.series()] = p
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		if c.wants(p) {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.enqueue(data)
	}
}

// replay sends the latest value of every series matching the client's
// filter.
func (h *Hub) replay(c *wsClient) {
	h.mu.RLock()
	var frames [][]byte
	for _, p := range h.latest {
		if !c.wants(p) {
			continue
		}
		if data, err := json.Marshal(newFrame(FrameReading, "", p)); err == nil {
			frames = append(frames, data)
		}
	}
	h.mu.RUnlock()

	for _, data := range frames {
		c.enqueue(data)
	}
}

func (h *Hub) attach(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// detach removes a client. The goroutine that removes it closes its
// outbound queue, so the queue is closed exactly once.
func (h *Hub) detach(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.out)
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		close(c.out)
	}
}

// Frame types exchanged over /api/v1/ws.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePing        = "ping"
	FramePong        = "pong"
	FrameAck         = "ack"
	FrameError       = "error"
	FrameReading     = "reading"
)

// Frame is the envelope of every WebSocket message in either direction.
type Frame struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Filter selects which readings a client receives. An empty list matches
// everything; Names and Categories must both match.
type Filter struct {
	Names      []string `json:"names,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

func (f Filter) match(p ReadingPayload) bool {
	if len(f.Names) > 0 && !slices.Contains(f.Names, p.Name) {
		return false
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, p.Category) {
		return false
	}
	return true
}

func newFrame(typ, id string, payload any) Frame {
	f := Frame{Type: typ, ID: id, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if payload != nil {
		f.Payload, _ = json.Marshal(payload)
	}
	return f
}
