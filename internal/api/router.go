package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.accessLogMiddleware)
	r.Use(s.recoveryMiddleware)

	if s.metrics != nil {
		r.Get("/metrics", s.handleMetrics)
	}

	// Switch routes keep the short paths home automation plugins expect.
	if s.switches != nil {
		r.Get("/s/{id}/", s.handleSwitchStatus)
		r.With(s.authMiddleware).Get("/s/{id}/{value}", s.handleSwitchSet)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		if s.heater != nil {
			r.Route("/heater", func(r chi.Router) {
				r.Get("/state", s.handleHeaterState)
				r.Get("/history", s.handleHeaterHistory)

				r.Group(func(r chi.Router) {
					r.Use(s.authMiddleware)
					r.Get("/command", s.handleHeaterCommand)
					r.Post("/command", s.handleHeaterCommand)
					r.Put("/command", s.handleHeaterCommand)
				})
			})
		}

		if s.hub != nil {
			r.With(s.authMiddleware).Post("/auth/ws-ticket", s.handleWSTicket)
			r.Get("/ws", s.handleWebSocket)
		}
	})

	return r
}
