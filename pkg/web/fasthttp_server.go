package web

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/fluxorio/todo-service/pkg/core"
	"github.com/valyala/fasthttp"
)

// FastHTTPServerConfig configures the fasthttp server
type FastHTTPServerConfig struct {
	Addr               string
	Name               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	MaxRequestBodySize int
	ReadBufferSize     int
	WriteBufferSize    int
}

// DefaultFastHTTPServerConfig returns the default configuration for addr
func DefaultFastHTTPServerConfig(addr string) *FastHTTPServerConfig {
	return &FastHTTPServerConfig{
		Addr:               addr,
		Name:               "todo-service",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxRequestBodySize: 1 << 20,
		ReadBufferSize:     8192,
		WriteBufferSize:    8192,
	}
}

// FastHTTPServer runs a fasthttp.Server around a request handler and tracks
// request counters.
type FastHTTPServer struct {
	server  *fasthttp.Server
	handler fasthttp.RequestHandler
	addr    string
	logger  core.Logger
	running atomic.Bool

	totalRequests      int64
	successfulRequests int64
	errorRequests      int64
}

// ServerMetrics provides server request counters
type ServerMetrics struct {
	TotalRequests      int64 // Total requests processed
	SuccessfulRequests int64 // Total successful requests (200-299)
	ErrorRequests      int64 // Total error requests (500-599)
}

// NewFastHTTPServer creates a server dispatching to handler
func NewFastHTTPServer(config *FastHTTPServerConfig, handler fasthttp.RequestHandler, logger core.Logger) *FastHTTPServer {
	if config == nil {
		config = DefaultFastHTTPServerConfig(":3000")
	}
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	s := &FastHTTPServer{
		handler: handler,
		addr:    config.Addr,
		logger:  logger,
	}
	s.server = &fasthttp.Server{
		Handler:               s.handleRequest,
		Name:                  config.Name,
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		IdleTimeout:           config.IdleTimeout,
		MaxRequestBodySize:    config.MaxRequestBodySize,
		ReadBufferSize:        config.ReadBufferSize,
		WriteBufferSize:       config.WriteBufferSize,
		NoDefaultServerHeader: true,
		ReduceMemoryUsage:     true,
		Logger:                fasthttpLogger{logger},
	}
	return s
}

// Addr returns the configured listen address
func (s *FastHTTPServer) Addr() string {
	return s.addr
}

// Start listens on the configured address and blocks until shutdown
func (s *FastHTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections from ln and blocks until shutdown
func (s *FastHTTPServer) Serve(ln net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("server already running")
	}
	s.logger.Infof("listening on %s", ln.Addr())
	return s.server.Serve(ln)
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// until ctx expires.
func (s *FastHTTPServer) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	return s.server.ShutdownWithContext(ctx)
}

// Metrics returns current server metrics
func (s *FastHTTPServer) Metrics() ServerMetrics {
	return ServerMetrics{
		TotalRequests:      atomic.LoadInt64(&s.totalRequests),
		SuccessfulRequests: atomic.LoadInt64(&s.successfulRequests),
		ErrorRequests:      atomic.LoadInt64(&s.errorRequests),
	}
}

// handleRequest is the fasthttp entry point. Panics escaping the handler
// chain are isolated here and answered with a 500.
func (s *FastHTTPServer) handleRequest(ctx *fasthttp.RequestCtx) {
	atomic.AddInt64(&s.totalRequests, 1)

	defer func() {
		if r := recover(); r != nil {
			requestID := string(ctx.Response.Header.Peek(core.RequestIDHeader))
			s.logger.Errorf("handler panic (request_id=%s): %v", requestID, r)
			ctx.Response.ResetBody()
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetContentType("application/json; charset=utf-8")
			ctx.SetBodyString(`{"success":false,"error":"Internal server error"}`)
		}
		s.countStatus(ctx.Response.StatusCode())
	}()

	s.handler(ctx)
}

func (s *FastHTTPServer) countStatus(statusCode int) {
	if statusCode >= 200 && statusCode < 300 {
		atomic.AddInt64(&s.successfulRequests, 1)
	} else if statusCode >= 500 {
		atomic.AddInt64(&s.errorRequests, 1)
	}
}

// fasthttpLogger routes fasthttp's internal messages to core.Logger
type fasthttpLogger struct {
	logger core.Logger
}

func (l fasthttpLogger) Printf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}
