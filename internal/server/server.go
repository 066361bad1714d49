package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"common-addresses/internal/finder"
	"common-addresses/internal/staging"
)

// Routes.
const (
	routeFindCommon = "/api/find-common"
	routeHealth     = "/api/health"
	routeLive       = "/api/live"
	routeReady      = "/api/ready"
	routeRuns       = "/api/runs"
	routeMetrics    = "/metrics"
)

// Deps are the collaborators a Server needs beyond its Config.
type Deps struct {
	// Store holds staged artifacts. Required.
	Store staging.Store
	// Runs records run history. Nil disables it.
	Runs RunHistory
	// Metrics defaults to a fresh registry.
	Metrics *Metrics
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

type Server struct {
	cfg        Config
	store      staging.Store
	runs       RunHistory
	metrics    *Metrics
	finder     *finder.Finder
	limiter    *rateLimiter
	handler    http.Handler
	httpServer *http.Server
	now        func() time.Time
}

func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		store:   deps.Store,
		runs:    deps.Runs,
		metrics: deps.Metrics,
		now:     time.Now,
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(cfg.Version)
	}

	opts := []finder.Option{finder.WithObserver(s.metrics)}
	if s.runs != nil {
		opts = append(opts, finder.WithRecorder(s.runs))
	}
	var otelOpts []otelhttp.Option
	if deps.TracerProvider != nil {
		opts = append(opts, finder.WithTracerProvider(deps.TracerProvider))
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(deps.TracerProvider))
	}
	s.finder = finder.New(finder.Config{
		MinFiles:    finder.MinFiles,
		MaxFiles:    finder.MaxFiles,
		Concurrency: cfg.Concurrency,
	}, s.store, opts...)

	var find http.Handler = http.HandlerFunc(s.handleFindCommon)
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit, time.Minute)
		s.limiter.trustProxy = cfg.TrustProxy
		find = s.limiter.middleware(find)
	}

	mux := http.NewServeMux()
	mux.Handle(routeFindCommon, find)
	mux.HandleFunc(routeHealth, s.HandleHealth)
	mux.HandleFunc(routeLive, s.HandleLive)
	mux.HandleFunc(routeReady, s.HandleReady)
	mux.HandleFunc(routeRuns, s.handleRuns)
	mux.Handle(routeMetrics, s.metrics.Handler())
	mux.HandleFunc("/", s.handleNotFound)

	// Outermost first: otel -> requestID -> logging -> recover -> CORS ->
	// security headers -> gzip -> mux.
	var handler http.Handler = mux
	handler = CompressionMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = corsMiddleware(cfg.CORSOrigin)(handler)
	handler = s.recoverMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = otelhttp.NewHandler(handler, "common-addresses", otelOpts...)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       time.Minute,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Metrics returns the server's metric set.
func (s *Server) Metrics() *Metrics { return s.metrics }

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	err := s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.close()
	}
	return s.httpServer.Shutdown(ctx)
}
