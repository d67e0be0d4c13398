package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/homehub/internal/switches"
)

// handleSwitchStatus writes 1 or 0 as plain text.
func (s *Server) handleSwitchStatus(w http.ResponseWriter, r *http.Request) {
	on, err := s.switches.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeSwitchError(w, err)
		return
	}
	body := "0"
	if on {
		body = "1"
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write([]byte(body))
}

// handleSwitchSet turns a switch off for 0 and on for any other integer.
func (s *Server) handleSwitchSet(w http.ResponseWriter, r *http.Request) {
	value, err := strconv.Atoi(chi.URLParam(r, "value"))
	if err != nil {
		writeBadRequest(w, "value must be an integer")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.switches.Set(id, value != 0); err != nil {
		s.writeSwitchError(w, err)
		return
	}
	s.logger.Info("switch set", "switch", id, "on", value != 0)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) writeSwitchError(w http.ResponseWriter, err error) {
	if errors.Is(err, switches.ErrUnknownSwitch) {
		writeNotFound(w, err.Error())
		return
	}
	s.logger.Error("switch operation failed", "error", err)
	writeInternalError(w, err.Error())
}
