package api

import (
	"io"
	"net/http"
	"time"

	"github.com/nerrad567/homehub/internal/heater"
)

// HeaterStateResponse is the body of GET /api/v1/heater/state.
type HeaterStateResponse struct {
	DeviceID   string                  `json:"device_id"`
	Connection string                  `json:"connection"`
	Properties map[string]heater.Entry `json:"properties"`
}

// HistoryMessage is one raw inbound message in GET /api/v1/heater/history.
type HistoryMessage struct {
	Topic      string    `json:"topic"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}

// HeaterHistoryResponse is the body of GET /api/v1/heater/history.
type HeaterHistoryResponse struct {
	DeviceID string           `json:"device_id"`
	Count    int              `json:"count"`
	Messages []HistoryMessage `json:"messages"`
}

// handleHeaterCommand executes one command. POST and PUT take the JSON
// command as the body; GET takes it in the p query parameter.
func (s *Server) handleHeaterCommand(w http.ResponseWriter, r *http.Request) {
	var raw []byte
	if r.Method == http.MethodGet {
		p := r.URL.Query().Get("p")
		if p == "" {
			writeBadRequest(w, "query parameter p is required")
			return
		}
		raw = []byte(p)
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeBadRequest(w, "reading request body: "+err.Error())
			return
		}
		raw = body
	}

	cmd, err := heater.ParseCommand(raw)
	if err != nil {
		writeCommandError(w, err)
		return
	}

	s.logger.Info("heater command received",
		"command", cmd.String(),
		"subject", r.Context().Value(ctxKeySubject),
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	if err := s.heater.Execute(r.Context(), cmd); err != nil {
		s.logger.Warn("heater command failed", "command", cmd.String(), "error", err)
		writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "sent",
		"command": cmd,
	})
}

// handleHeaterState returns the latest value of every reported property.
func (s *Server) handleHeaterState(w http.ResponseWriter, _ *http.Request) {
	snap := s.heater.Store().Snapshot()
	props := make(map[string]heater.Entry, len(snap.Entries))
	for p, e := range snap.Entries {
		props[p.String()] = e
	}
	writeJSON(w, http.StatusOK, HeaterStateResponse{
		DeviceID:   s.heater.DeviceID(),
		Connection: s.heater.ConnState().String(),
		Properties: props,
	})
}

// handleHeaterHistory returns the raw inbound messages, oldest first.
func (s *Server) handleHeaterHistory(w http.ResponseWriter, _ *http.Request) {
	history := s.heater.Store().History()
	msgs := make([]HistoryMessage, len(history))
	for i, m := range history {
		msgs[i] = HistoryMessage{Topic: m.Topic, Payload: string(m.Payload), ReceivedAt: m.ReceivedAt}
	}
	writeJSON(w, http.StatusOK, HeaterHistoryResponse{
		DeviceID: s.heater.DeviceID(),
		Count:    len(msgs),
		Messages: msgs,
	})
}
