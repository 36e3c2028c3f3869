// Package server exposes the recording library over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/zsiec/slomo/internal/config"
	"github.com/zsiec/slomo/internal/container"
	"github.com/zsiec/slomo/internal/errors"
	"github.com/zsiec/slomo/internal/health"
	"github.com/zsiec/slomo/internal/library"
	"github.com/zsiec/slomo/internal/logger"
)

const healthCheckInterval = 30 * time.Second

// AssetOpener opens a recording file for inspection.
type AssetOpener func(path string) (*container.Asset, error)

// Deps are the collaborators the API serves from.
type Deps struct {
	Index    library.Index
	Checkers []health.Checker
	// Opener defaults to container.Open.
	Opener AssetOpener
}

// Server is the plain HTTP API server.
type Server struct {
	config       *config.ServerConfig
	router       *mux.Router
	httpServer   *http.Server
	logger       *logrus.Logger
	healthMgr    *health.Manager
	errorHandler *errors.ErrorHandler
	index        library.Index
	openAsset    AssetOpener
	limiter      *rate.Limiter

	routesOnce       sync.Once
	additionalRoutes []func(*mux.Router)
}

func New(cfg *config.ServerConfig, log *logrus.Logger, deps Deps) *Server {
	if deps.Index == nil {
		deps.Index = library.NewMemoryIndex()
	}
	if deps.Opener == nil {
		deps.Opener = container.Open
	}

	s := &Server{
		config:       cfg,
		router:       mux.NewRouter(),
		logger:       log,
		healthMgr:    health.NewManager(log),
		errorHandler: errors.NewErrorHandler(log),
		index:        deps.Index,
		openAsset:    deps.Opener,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	for _, c := range deps.Checkers {
		s.healthMgr.Register(c)
	}
	return s
}

// Handler returns the routed handler, building the routes on first use.
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(s.setupRoutes)
	return s.router
}

func (s *Server) addr() string {
	return net.JoinHostPort(s.config.ListenAddr, strconv.Itoa(s.config.Port))
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go s.healthMgr.StartPeriodicChecks(ctx, healthCheckInterval)

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}
	s.logger.WithField("addr", ln.Addr().String()).Info("Starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops accepting requests and waits for in-flight ones up to the
// configured shutdown timeout.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info("HTTP server shutdown complete")
	return nil
}

func (s *Server) setupRoutes() {
	s.router.Use(logger.RequestLoggerMiddleware(s.logger))
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.corsMiddleware)

	healthHandler := health.NewHandler(s.healthMgr)
	s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods(http.MethodGet)
	s.router.HandleFunc("/live", healthHandler.HandleLive).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/recordings", s.handleListRecordings).Methods(http.MethodGet)
	api.HandleFunc("/recordings/{id}", s.handleGetRecording).Methods(http.MethodGet)
	api.HandleFunc("/recordings/{id}", s.handleDeleteRecording).Methods(http.MethodDelete)
	api.HandleFunc("/recordings/{id}/timecode", s.handleTimeCode).Methods(http.MethodGet)
	api.HandleFunc("/recordings/{id}/asset", s.handleAssetInfo).Methods(http.MethodGet)

	if s.config.DebugEndpoints {
		s.setupDebugEndpoints()
	}

	for _, register := range s.additionalRoutes {
		register(s.router)
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
	// Subrouters don't inherit the parent's 405 handler. Unknown API paths
	// still fall through to the root's NotFoundHandler.
	api.MethodNotAllowedHandler = s.router.MethodNotAllowedHandler
}

func (s *Server) setupDebugEndpoints() {
	s.logger.Info("Enabling debug endpoints")

	s.router.HandleFunc("/debug/pprof/", pprof.Index)
	s.router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	s.router.HandleFunc("/debug/pprof/profile", pprof.Profile)
	s.router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	s.router.HandleFunc("/debug/pprof/trace", pprof.Trace)
	s.router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)

	s.router.HandleFunc("/debug/info", func(w http.ResponseWriter, r *http.Request) {
		info := map[string]interface{}{
			"addr":          s.addr(),
			"rate_limit":    s.config.RateLimit,
			"debug_enabled": true,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	}).Methods(http.MethodGet)
}

// RegisterRoutes adds route handlers. It must be called before Handler or
// Start.
func (s *Server) RegisterRoutes(register func(*mux.Router)) {
	s.additionalRoutes = append(s.additionalRoutes, register)
}

// HealthManager exposes the health manager so callers can run checks.
func (s *Server) HealthManager() *health.Manager {
	return s.healthMgr
}
