// Package server assembles the router, middleware stack and HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/tapeshchavle/cicd/internal/http/api/routes"
	"github.com/tapeshchavle/cicd/internal/http/health"
	"github.com/tapeshchavle/cicd/internal/platform/config"
	"github.com/tapeshchavle/cicd/internal/platform/logging"
	appmiddleware "github.com/tapeshchavle/cicd/internal/platform/middleware"
	"github.com/tapeshchavle/cicd/internal/platform/respond"
	"github.com/tapeshchavle/cicd/internal/platform/tracing"
)

const (
	// APIPrefix is where the JSON API is mounted.
	APIPrefix = "/api"
	// MetricsPath serves the Prometheus exposition.
	MetricsPath = "/metrics"
	// DocsPath serves the interactive API reference, relative to APIPrefix.
	DocsPath = "/docs"
)

// Server owns the HTTP handler tree and the underlying http.Server.
type Server struct {
	cfg      config.Config
	router   chi.Router
	api      huma.API
	registry *prometheus.Registry
	srv      *http.Server
}

// New builds the handler tree for cfg. version is reported in the OpenAPI
// document and the trace resource.
func New(cfg config.Config, version string) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
	}
	if err := s.registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	if err := s.registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}

	router := chi.NewRouter()
	// Sub-routers mounted below inherit these handlers.
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	stack := []func(http.Handler) http.Handler{
		appmiddleware.Security(APIPrefix+DocsPath, APIPrefix+"/openapi", APIPrefix+"/schemas"),
		appmiddleware.Vary(),
		appmiddleware.CORS(cfg.CORSAllowedOrigins),
		appmiddleware.RequestID(),
		// RealIP trusts X-Forwarded-For and X-Real-IP. Only run behind a trusted proxy.
		chimiddleware.RealIP,
		chimiddleware.RequestSize(cfg.RequestMaxBytes),
		tracing.Middleware(health.ServiceName,
			otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != MetricsPath }),
		),
		logging.RequestLogger(cfg.ProjectID),
		logging.AccessLogger(),
	}
	if cfg.MetricsEnabled {
		metrics, err := appmiddleware.NewMetrics(s.registry, MetricsPath)
		if err != nil {
			return nil, fmt.Errorf("register http metrics: %w", err)
		}
		stack = append(stack, metrics.Handler())
	}
	stack = append(stack, respond.Recoverer())
	router.Use(stack...)

	if cfg.MetricsEnabled {
		router.Method(http.MethodGet, MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
			Registry: s.registry,
		}))
	}

	router.Route(APIPrefix, func(r chi.Router) {
		s.api = humachi.New(r, apiConfig(version))
		addCBORContent(s.api)
		routes.Register(r, s.api)
	})

	s.router = router
	s.srv = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    64 << 10, // 64 KB
	}
	return s, nil
}

func apiConfig(version string) huma.Config {
	cfg := huma.DefaultConfig(health.ServiceName, version)
	cfg.Info.Description = "Greeting and health endpoints for the cicd-demo service."
	cfg.Servers = []*huma.Server{{URL: APIPrefix}}
	cfg.DocsPath = DocsPath
	// Response bodies are fixed documents; skip the $schema link huma would
	// otherwise inject into every object.
	cfg.CreateHooks = nil
	return cfg
}

// addCBORContent advertises application/cbor next to every JSON body in the
// OpenAPI document. Must run before operations are registered.
func addCBORContent(api huma.API) {
	oapi := api.OpenAPI()
	oapi.OnAddOperation = append(oapi.OnAddOperation, func(_ *huma.OpenAPI, op *huma.Operation) {
		if op.RequestBody != nil && op.RequestBody.Content != nil {
			if jsonContent, ok := op.RequestBody.Content["application/json"]; ok {
				op.RequestBody.Content["application/cbor"] = jsonContent
			}
		}
		for _, resp := range op.Responses {
			if resp.Content == nil {
				continue
			}
			if jsonContent, ok := resp.Content["application/json"]; ok {
				resp.Content["application/cbor"] = jsonContent
			}
		}
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API serving APIPrefix.
func (s *Server) API() huma.API {
	return s.api
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then drains
// in-flight requests for at most the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	serveErr := make(chan error, 1)
	go func() {
		logging.LogInfo(ctx, "server listening", zap.String("addr", ln.Addr().String()))
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logging.LogInfo(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logging.LogInfo(ctx, "server exited")
	return nil
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
