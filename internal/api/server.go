package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/agentflow/internal/abstraction"
	"github.com/seantiz/agentflow/internal/engine"
	"github.com/seantiz/agentflow/internal/errors"
	"github.com/seantiz/agentflow/internal/store"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// Server wraps the chi router and application dependencies.
type Server struct {
	router  *chi.Mux
	service *abstraction.Service
	archive store.Store
	broker  *engine.EventBroker
	host    func() (hostCapacity, error)
	logger  *slog.Logger
	addr    string
}

// NewServer creates and configures a new HTTP server. broker may be nil, in
// which case step streaming is unavailable.
func NewServer(addr string, svc *abstraction.Service, archive store.Store, broker *engine.EventBroker, logger *slog.Logger) *Server {
	srv := &Server{
		router:  chi.NewRouter(),
		service: svc,
		archive: archive,
		broker:  broker,
		host:    probeHost,
		logger:  logger,
		addr:    addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.instrument)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Get("/v1/stats", s.handleGetStats)

	s.router.Route("/v1/frameworks", func(r chi.Router) {
		r.Get("/", s.handleListFrameworks)
		r.Get("/{framework}/capabilities", s.handleGetCapabilities)
		r.Post("/{framework}/validate", s.handleValidateWorkflow)
		r.Post("/{framework}/requirements", s.handleGetRequirements)
	})

	s.router.Route("/v1/executions", func(r chi.Router) {
		r.Post("/", s.handleExecute)
		r.Post("/async", s.handleExecuteAsync)
		r.Get("/", s.handleListExecutions)
		r.Get("/{id}", s.handleGetExecution)
		r.Get("/{id}/steps", s.handleGetSteps)
		r.Get("/{id}/events", s.handleStreamEvents)
		r.Delete("/{id}", s.handleCancelExecution)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves HTTP until ctx is done, then drains in-flight requests.
// Request contexts derive from ctx, so event streams and synchronous
// executions stop as soon as it is cancelled.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
		s.logger.Info("shutting down", "cause", context.Cause(ctx))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	s.logger.Info("server stopped")
	return nil
}
