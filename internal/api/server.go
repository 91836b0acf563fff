package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/deploytrack/internal/api/handler"
	mw "github.com/edvin/deploytrack/internal/api/middleware"
	"github.com/edvin/deploytrack/internal/config"
	"github.com/edvin/deploytrack/internal/core"
	"github.com/edvin/deploytrack/internal/executor"
	"github.com/edvin/deploytrack/internal/health"
	"github.com/edvin/deploytrack/internal/hub"
)

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *core.Services
	pool           *pgxpool.Pool
	temporalClient temporalclient.Client
	hub            *hub.Hub
	cfg            *config.Config
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, temporalClient temporalclient.Client, cfg *config.Config) *Server {
	eventHub := hub.New(logger)
	prober := health.NewProber(cfg.ProbeTimeout, logger)
	facility := executor.NewTemporal(temporalClient)
	services := core.NewServices(pool, facility, prober, eventHub, logger)

	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		services:       services,
		pool:           pool,
		temporalClient: temporalClient,
		hub:            eventHub,
		cfg:            cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	// Event subscriptions (WebSocket)
	events := handler.NewEvents(s.hub, s.logger)
	s.router.Get("/ws", events.Subscribe)
	s.router.Get("/ws/services/{id}", events.SubscribeService)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Services
		service := handler.NewService(s.services.Registry)
		r.Get("/services", service.List)
		r.Post("/services", service.Create)
		r.Get("/services/{id}", service.Get)
		r.Post("/services/refresh", service.RefreshAll)
		r.Post("/services/{id}/refresh", service.Refresh)

		// Deployments
		deployment := handler.NewDeployment(s.services.Deployment)
		r.Get("/services/{serviceID}/deployments", deployment.ListByService)
		r.Post("/services/{serviceID}/deployments", deployment.Create)
		r.Get("/deployments/{id}", deployment.Status)
		r.Get("/deployments/{id}/status", deployment.Status)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
		checks["temporal"] = err.Error()
		healthy = false
	} else {
		checks["temporal"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Shutdown drops all live event subscriptions.
func (s *Server) Shutdown() {
	s.hub.Shutdown()
}
