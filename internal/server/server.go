// Package server provides the HTTP server and routing for Holdings.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/holdings/internal/di"
	cashflowshandlers "github.com/aristath/holdings/internal/modules/cash_flows/handlers"
	portfoliohandlers "github.com/aristath/holdings/internal/modules/portfolio/handlers"
	pricinghandlers "github.com/aristath/holdings/internal/modules/pricing/handlers"
	snapshotshandlers "github.com/aristath/holdings/internal/modules/snapshots/handlers"
	tradinghandlers "github.com/aristath/holdings/internal/modules/trading/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	Container *di.Container // DI container with all services
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		port:      cfg.Port,
		container: cfg.Container,
		systemHandlers: NewSystemHandlers(
			cfg.Container.Databases(),
			cfg.Container.Scheduler,
			cfg.Log,
		),
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.DevMode)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes(devMode bool) {
	// Long-lived; kept out of the request timeout and compression
	eventsHandler := NewEventsWebSocketHandler(s.container.EventBus, s.log)
	s.router.Get("/api/events/ws", eventsHandler.ServeHTTP)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		if !devMode {
			r.Use(middleware.Compress(5))
		}

		r.Get("/health", s.handleHealth)

		r.Route("/api", func(r chi.Router) {
			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
			})

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", s.systemHandlers.HandleListJobs)
				r.Post("/{name}", s.systemHandlers.HandleRunJob)
				r.Get("/{name}/history", s.systemHandlers.HandleJobHistory)
			})

			c := s.container

			portfolioHandler := portfoliohandlers.NewHandler(c.PortfolioService, c.PricingService, c.OperationRepo, s.log)
			portfolioHandler.RegisterRoutes(r)

			cashHandler := cashflowshandlers.NewHandler(c.CashService, s.log)
			cashHandler.RegisterRoutes(r)

			tradingHandler := tradinghandlers.NewTradingHandlers(c.TradingService, c.Reconciler, s.log)
			tradingHandler.RegisterRoutes(r)

			pricingHandler := pricinghandlers.NewHandler(c.PricingService, s.log)
			pricingHandler.RegisterRoutes(r)

			snapshotsHandler := snapshotshandlers.NewHandler(c.SnapshotService, s.log)
			snapshotsHandler.RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
