// Package web exposes the HTTP surface: health, the user listing, the
// stateless one-shot buddy endpoint, the WebSocket upgrade, and
// Prometheus metrics.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ai-buddy-chat/internal/usecase"
)

type Server struct {
	relay     usecase.RelayUseCase
	responder usecase.ResponderUseCase
	upgrade   http.HandlerFunc
	log       *zerolog.Logger
	started   time.Time
}

func NewServer(
	relay usecase.RelayUseCase,
	responder usecase.ResponderUseCase,
	upgrade http.HandlerFunc,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		relay:     relay,
		responder: responder,
		upgrade:   upgrade,
		log:       logger,
		started:   time.Now(),
	}
}

// Router builds the chi router with all routes attached.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/api/users", s.handleUsers)
	r.Post("/api/buddy", s.handleBuddy)
	r.Get("/ws", s.upgrade)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
