// Package server wires the HTTP router and the gRPC health service of the
// movie service and runs both until the context is cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/config"
	"github.com/vasapolrittideah/movie-discovery-api/services/movie-service/internal/handler"
	"github.com/vasapolrittideah/movie-discovery-api/shared/auth"
	"github.com/vasapolrittideah/movie-discovery-api/shared/interceptor"
	"github.com/vasapolrittideah/movie-discovery-api/shared/metrics"
	"github.com/vasapolrittideah/movie-discovery-api/shared/middleware"
	"github.com/vasapolrittideah/movie-discovery-api/shared/utilities"
)

const serviceName = "movie-service"

// Handlers groups the HTTP handlers mounted by the server.
type Handlers struct {
	Movie    *handler.MovieHandler
	Favorite *handler.FavoriteHandler
	Webhook  *handler.WebhookHandler
}

type Server struct {
	cfg        *config.MovieServiceConfig
	router     *chi.Mux
	grpcServer *grpc.Server
	health     *health.Server
	database   utilities.Pinger
	logger     *zerolog.Logger
}

func New(
	cfg *config.MovieServiceConfig,
	handlers Handlers,
	jwtAuth auth.JWTAuthenticator,
	database utilities.Pinger,
	logger *zerolog.Logger,
) *Server {
	grpcServer := grpc.NewServer()

	s := &Server{
		cfg:        cfg,
		router:     chi.NewRouter(),
		grpcServer: grpcServer,
		health:     utilities.RegisterHealthServer(grpcServer, serviceName),
		database:   database,
		logger:     logger,
	}
	s.setupRoutes(handlers, jwtAuth)

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(h Handlers, jwtAuth auth.JWTAuthenticator) {
	s.router.Use(middleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Metrics)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "PUT", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", utilities.RequestIDHeader},
		ExposedHeaders:   []string{utilities.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.router.Use(interceptor.NewSessionInterceptor(jwtAuth, s.logger))

	s.router.Get("/healthz", s.healthz)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.cfg.RateLimit.Requests, s.cfg.RateLimit.Window))

		r.Route("/movies", func(r chi.Router) {
			r.Get("/trending", h.Movie.ListTrending)
			r.Get("/top-rated", h.Movie.ListTopRated)
			r.Get("/top/{category}", h.Movie.ListByCategory)
			r.Get("/search", h.Movie.Search)
			r.Get("/search/{query}", h.Movie.Search)
			r.Get("/{id}", h.Movie.GetMovie)
		})

		r.Group(func(r chi.Router) {
			r.Use(interceptor.RequireSession)

			r.Get("/user/fav", h.Favorite.ListFavorites)
			r.Put("/user/fav", h.Favorite.ToggleFavorite)
		})

		r.Post("/webhooks/identity", h.Webhook.HandleIdentityEvent)
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, body := http.StatusOK, map[string]string{"status": "ok"}
	if err := s.database.Ping(ctx); err != nil {
		status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Run serves HTTP and gRPC health until ctx is cancelled, then shuts both
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	grpcListener, err := net.Listen("tcp", s.cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.GRPC.Addr, err)
	}

	httpServer := &http.Server{
		Addr:         s.cfg.HTTP.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
		IdleTimeout:  s.cfg.HTTP.IdleTimeout,
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go utilities.WatchDependency(
		watchCtx, s.logger, s.health, s.database, s.cfg.GRPC.HealthCheckInterval,
		func(err error) {
			if err != nil {
				metrics.DatabaseUp.Set(0)
				return
			}
			metrics.DatabaseUp.Set(1)
		},
		serviceName,
	)

	errCh := make(chan error, 2)
	go func() {
		s.logger.Info().Str("addr", s.cfg.GRPC.Addr).Msg("gRPC health server starting")
		if err := s.grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	go func() {
		s.logger.Info().Str("addr", s.cfg.HTTP.Addr).Msg("HTTP server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		s.logger.Error().Err(runErr).Msg("server failed")
	}

	s.health.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("HTTP server shutdown failed")
		runErr = errors.Join(runErr, fmt.Errorf("graceful shutdown failed: %w", err))
	}
	s.grpcServer.GracefulStop()

	s.logger.Info().Msg("server stopped gracefully")
	return runErr
}
