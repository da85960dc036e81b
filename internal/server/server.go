package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/chatflow/internal/agent"
	"github.com/gosuda/chatflow/internal/agent/tools"
	"github.com/gosuda/chatflow/internal/api/ws"
	"github.com/gosuda/chatflow/internal/config"
	"github.com/gosuda/chatflow/internal/conversation"
	"github.com/gosuda/chatflow/internal/display"
	"github.com/gosuda/chatflow/internal/server/middleware"
	"github.com/gosuda/chatflow/internal/upload"
	"github.com/gosuda/chatflow/internal/view"
)

// Deps are the long-lived components the routes are wired to.
type Deps struct {
	Sessions *conversation.Manager
	Uploads  *upload.Store
	PubSub   display.Broker
	Backends *agent.Registry
	Tools    *tools.Registry
	Markdown *view.Markdown
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	deps       Deps
	cfg        *config.Config
}

// New creates a Server with all routes wired. ctx bounds the background
// work of the rate limiter. webAssets may be nil; when provided, the chat
// page is served on all unmatched routes.
func New(ctx context.Context, cfg *config.Config, deps Deps, webAssets fs.FS) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}).Handler)

	hub := ws.NewHub(deps.PubSub, deps.Sessions, originPatterns(cfg.Server.CORSOrigins))

	s := &Server{
		router: router,
		deps:   deps,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	limit := middleware.RateLimitByIP(ctx, cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(limit)

		apiConfig := huma.DefaultConfig("Chatflow API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, cfg, deps)

		// Multipart uploads stream straight to disk, outside huma.
		r.Post("/uploads", uploadHandler(deps.Uploads, maxUploadRequest(cfg.Uploads.MaxBytes)))
	})

	router.Route("/ws", func(r chi.Router) {
		r.Use(limit)
		registerWSRoutes(r, hub)
	})

	router.Get("/healthz", s.healthz)

	// Must be registered last so API and websocket routes take priority.
	if webAssets != nil {
		router.NotFound(spaFileServer(webAssets).ServeHTTP)
		log.Info().Msg("embedded chat page enabled")
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := s.deps.PubSub.Ping(r.Context()); err != nil {
		log.Warn().Err(err).Msg("health check: pubsub unreachable")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"degraded","pubsub":"unreachable"}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	log.Info().Str("addr", s.cfg.Server.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
