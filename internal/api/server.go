// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the messenger and session state over HTTP so that
// out-of-process contexts can take part in the recording protocol.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/ManuGH/examcap/internal/api/middleware"
	"github.com/ManuGH/examcap/internal/coordinator"
	xglog "github.com/ManuGH/examcap/internal/log"
	"github.com/ManuGH/examcap/internal/messenger"
	"github.com/ManuGH/examcap/internal/window"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// SessionSource reports the coordinator's session.
type SessionSource interface {
	Snapshot() coordinator.SessionState
}

// WindowStatus reports capture window state.
type WindowStatus interface {
	Status(handle string) (window.Info, bool)
	Last() (window.Info, bool)
}

// SettingsStore reads and writes the user-facing capture settings.
type SettingsStore interface {
	FPS(ctx context.Context) (int, error)
	SetFPS(ctx context.Context, fps int) error
}

// Config wires a Server.
type Config struct {
	Bus      *messenger.Bus
	Session  SessionSource
	Windows  WindowStatus
	Settings SettingsStore

	AllowedOrigins []string
	RateLimitRPS   int
	WSMessageRate  float64
	WSMessageBurst int
	// TracingService enables otelhttp spans when set.
	TracingService string
}

// Server is the control surface.
type Server struct {
	cfg      Config
	bus      *messenger.Bus
	origins  *originPolicy
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu     sync.Mutex
	remote map[messenger.ContextID]*remoteContext
}

type remoteContext struct {
	mailbox  *messenger.Mailbox
	attached bool
}

func New(cfg Config) *Server {
	if cfg.WSMessageRate <= 0 {
		cfg.WSMessageRate = 20
	}
	if cfg.WSMessageBurst <= 0 {
		cfg.WSMessageBurst = 40
	}
	s := &Server{
		cfg:     cfg,
		bus:     cfg.Bus,
		origins: newOriginPolicy(cfg.AllowedOrigins),
		logger:  xglog.WithComponent("api"),
		remote:  make(map[messenger.ContextID]*remoteContext),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.origins.Allowed(origin)
		},
	}
	return s
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,
	})

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RateLimitRPS > 0 {
			r.Use(middleware.APIRateLimit(s.cfg.RateLimitRPS))
		}
		r.Post("/contexts", s.handleRegister)
		r.Delete("/contexts/{id}", s.handleUnregister)
		r.Get("/contexts/{id}/ws", s.handleWebSocket)
		r.Post("/messages", s.handleMessage)
		r.Get("/session", s.handleSession)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
	})
	return r
}

// Close unregisters every context created over HTTP.
func (s *Server) Close() {
	s.mu.Lock()
	ids := make([]messenger.ContextID, 0, len(s.remote))
	for id := range s.remote {
		ids = append(ids, id)
	}
	s.remote = make(map[messenger.ContextID]*remoteContext)
	s.mu.Unlock()

	for _, id := range ids {
		s.bus.Unregister(id)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
