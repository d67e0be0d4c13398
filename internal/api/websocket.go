package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// clientQueueSize bounds frames waiting for a slow client. Frames beyond it
// are dropped for that client only.
const clientQueueSize = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsClient is one connected WebSocket peer. It receives nothing until it
// subscribes.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	out  chan []byte

	mu         sync.RWMutex
	subscribed bool
	filter     Filter
}

func (c *wsClient) wants(p ReadingPayload) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribed && c.filter.match(p)
}

// enqueue never blocks. A send racing with detach hits a closed channel,
// which is absorbed.
func (c *wsClient) enqueue(data []byte) {
	defer func() { _ = recover() }()
	select {
	case c.out <- data:
	default:
		c.hub.logger.Debug("websocket client queue full, frame dropped")
	}
}

func (c *wsClient) reply(typ, id string, payload any) {
	data, err := json.Marshal(newFrame(typ, id, payload))
	if err != nil {
		return
	}
	c.enqueue(data)
}

// handleWebSocket upgrades the connection. With authentication enabled a
// single-use ticket from POST /api/v1/auth/ws-ticket is required.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.authEnabled() {
		ticket := r.URL.Query().Get("ticket")
		if ticket == "" {
			writeUnauthorized(w, "ticket query parameter is required")
			return
		}
		if !s.tickets.consume(ticket) {
			writeUnauthorized(w, "invalid or expired ticket")
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{hub: s.hub, conn: conn, out: make(chan []byte, clientQueueSize)}
	s.hub.attach(c)

	pingEvery := time.Duration(s.wsCfg.PingInterval) * time.Second
	pongWait := time.Duration(s.wsCfg.PongTimeout) * time.Second
	go c.writeLoop(pingEvery, pongWait)
	go c.readLoop(int64(s.wsCfg.MaxMessageSize), pingEvery+pongWait)
}

func (c *wsClient) readLoop(limit int64, idle time.Duration) {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(limit)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }
	_ = extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		_ = extend()
		c.dispatch(data)
	}
}

func (c *wsClient) writeLoop(pingEvery, writeWait time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) dispatch(data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.reply(FrameError, "", map[string]string{"message": "invalid JSON frame"})
		return
	}

	switch f.Type {
	case FrameSubscribe:
		var filter Filter
		if len(f.Payload) > 0 {
			if err := json.Unmarshal(f.Payload, &filter); err != nil {
				c.reply(FrameError, f.ID, map[string]string{"message": "invalid filter"})
				return
			}
		}
		c.mu.Lock()
		c.subscribed, c.filter = true, filter
		c.mu.Unlock()
		c.reply(FrameAck, f.ID, filter)
		c.hub.replay(c)
	case FrameUnsubscribe:
		c.mu.Lock()
		c.subscribed, c.filter = false, Filter{}
		c.mu.Unlock()
		c.reply(FrameAck, f.ID, nil)
	case FramePing:
		c.reply(FramePong, f.ID, nil)
	default:
		c.reply(FrameError, f.ID, map[string]string{"message": "unknown frame type: " + f.Type})
	}
}
