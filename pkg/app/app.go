// Package app assembles the todo service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/fluxorio/todo-service/pkg/config"
	"github.com/fluxorio/todo-service/pkg/core"
	"github.com/fluxorio/todo-service/pkg/events"
	"github.com/fluxorio/todo-service/pkg/handlers"
	"github.com/fluxorio/todo-service/pkg/observability/prometheus"
	"github.com/fluxorio/todo-service/pkg/observability/tracing"
	"github.com/fluxorio/todo-service/pkg/telemetry"
	"github.com/fluxorio/todo-service/pkg/todo"
	"github.com/fluxorio/todo-service/pkg/web"
	"github.com/fluxorio/todo-service/pkg/web/middleware"
	"github.com/fluxorio/todo-service/pkg/web/middleware/security"
)

// App is a configured, not yet listening, todo service
type App struct {
	cfg    config.Config
	logger core.Logger

	store    *todo.Store
	service  *todo.Service
	reporter *telemetry.Reporter
	metrics  *prometheus.Metrics
	router   *web.FastRouter
	server   *web.FastHTTPServer

	backpressure *web.BackpressureController

	publisher *events.NATSPublisher
	tracer    *tracing.Provider
}

// Option configures an App
type Option func(*options)

type options struct {
	logger      core.Logger
	traceWriter io.Writer
	now         func() time.Time
}

// WithLogger replaces the logger built from cfg.LogLevel
func WithLogger(logger core.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTraceWriter sets where the stdout trace exporter writes
func WithTraceWriter(w io.Writer) Option {
	return func(o *options) {
		o.traceWriter = w
	}
}

// WithClock overrides the time source for todos and telemetry
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New validates cfg and wires every component. Optional integrations
// (NATS, tracing) are connected here, so New fails fast when they are
// misconfigured.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{
		traceWriter: os.Stdout,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		level, err := core.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		o.logger = core.NewLogger(os.Stdout, os.Stderr, level)
	}

	a := &App{
		cfg:    cfg,
		logger: o.logger,
	}

	serviceOpts := []todo.Option{
		todo.WithClock(o.now),
		todo.WithLogger(o.logger),
	}
	if cfg.NATS.URL != "" {
		pub, err := events.NewNATSPublisher(events.NATSConfig{
			URL:    cfg.NATS.URL,
			Prefix: cfg.NATS.Prefix,
			Name:   cfg.Tracing.ServiceName,
		}, o.logger)
		if err != nil {
			return nil, err
		}
		a.publisher = pub
		serviceOpts = append(serviceOpts, todo.WithNotifier(pub))
	}

	tracer, err := tracing.NewProvider(ctx, tracing.Config{
		Exporter:       cfg.Tracing.Exporter,
		ZipkinEndpoint: cfg.Tracing.ZipkinEndpoint,
		ServiceName:    cfg.Tracing.ServiceName,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}, o.traceWriter)
	if err != nil {
		_ = a.closeIntegrations(ctx)
		return nil, err
	}
	a.tracer = tracer

	a.store = todo.NewSeededStore(o.now())
	a.service = todo.NewService(a.store, serviceOpts...)
	a.reporter = telemetry.NewReporter(a.store, cfg.Environment, telemetry.WithClock(o.now))
	a.metrics = prometheus.NewMetrics()

	if cfg.MaxInFlight > 0 {
		a.backpressure = web.NewBackpressureController(cfg.MaxInFlight)
		if err := a.metrics.RegisterBackpressureMetrics(a.backpressure); err != nil {
			_ = a.closeIntegrations(ctx)
			return nil, fmt.Errorf("register backpressure metrics: %w", err)
		}
	}

	a.router = web.NewFastRouter(o.logger)
	a.router.Use(a.middleware()...)

	system := handlers.NewSystemHandler(a.reporter, a.metrics.Gatherer())
	system.ServeStatic(cfg.StaticDir)
	handlers.Register(a.router, handlers.NewTodoHandler(a.service), system)

	a.server = web.NewFastHTTPServer(web.DefaultFastHTTPServerConfig(cfg.Addr()), a.router.Handler(), o.logger)
	if err := a.metrics.RegisterServerMetrics(a.server); err != nil {
		_ = a.closeIntegrations(ctx)
		return nil, fmt.Errorf("register server metrics: %w", err)
	}

	return a, nil
}

// middleware returns the global chain, outermost first
func (a *App) middleware() []web.FastMiddleware {
	chain := []web.FastMiddleware{
		middleware.AccessLog(middleware.AccessLogConfig{Logger: a.logger}),
		prometheus.FastHTTPMetricsMiddleware(a.metrics),
		tracing.Middleware(a.tracer),
		middleware.Recovery(middleware.RecoveryConfig{Logger: a.logger}),
		security.Headers(security.DefaultHeadersConfig()),
	}

	if a.backpressure != nil {
		chain = append(chain, web.Backpressure(a.backpressure))
	}

	if len(a.cfg.CORS.AllowedOrigins) > 0 {
		cors := security.DefaultCORSConfig()
		cors.AllowedOrigins = a.cfg.CORS.AllowedOrigins
		chain = append(chain, security.CORS(cors))
	}

	if a.cfg.RateLimit.RequestsPerMinute > 0 {
		limit := security.DefaultRateLimitConfig()
		limit.RequestsPerMinute = a.cfg.RateLimit.RequestsPerMinute
		limit.Burst = a.cfg.RateLimit.Burst
		chain = append(chain, security.RateLimit(limit))
	}

	return chain
}

// Service returns the todo service
func (a *App) Service() *todo.Service {
	return a.service
}

// Router returns the configured router, for in-process serving
func (a *App) Router() *web.FastRouter {
	return a.router
}

// Run listens on the configured port until ctx is cancelled, then shuts
// down within cfg.ShutdownTimeout.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		_ = a.closeIntegrations(ctx)
		return fmt.Errorf("listen on %s: %w", a.cfg.Addr(), err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.logger.WithFields(map[string]interface{}{
		"environment": a.cfg.Environment,
		"addr":        ln.Addr().String(),
	}).Info("todo service starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		_ = a.closeIntegrations(context.Background())
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	err := a.Shutdown(shutdownCtx)
	// Unblocks Serve if shutdown won the race against it starting
	_ = ln.Close()
	if serveErr := <-errCh; serveErr != nil && err == nil {
		err = fmt.Errorf("serve: %w", serveErr)
	}
	return err
}

// Shutdown stops accepting requests, waits for in-flight ones and then
// flushes events and spans.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("todo service shutting down")
	var errs []error
	if err := a.server.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop server: %w", err))
	}
	if err := a.closeIntegrations(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeIntegrations(ctx context.Context) error {
	var errs []error
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event publisher: %w", err))
		}
		a.publisher = nil
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
		a.tracer = nil
	}
	return errors.Join(errs...)
}
