package web

import (
	"strings"
	"sync"

	"github.com/fluxorio/todo-service/pkg/core"
	"github.com/valyala/fasthttp"
)

// FastRequestHandler handles fasthttp requests
type FastRequestHandler func(ctx *FastRequestContext) error

// FastMiddleware is middleware for fasthttp
type FastMiddleware func(handler FastRequestHandler) FastRequestHandler

// RouteNotMatched is the route label used when nothing matched
const RouteNotMatched = "unmatched"

// FastRouter matches method and path patterns (":name" segments capture a
// parameter) and runs the global middleware chain around the chosen handler.
// Unmatched requests go through the same chain to the not-found handler.
type FastRouter struct {
	mu         sync.RWMutex
	routes     []*fastRoute
	middleware []FastMiddleware
	notFound   FastRequestHandler
	logger     core.Logger
}

type fastRoute struct {
	method  string
	path    string
	parts   []string
	handler FastRequestHandler
}

// NewFastRouter creates a new fasthttp router
func NewFastRouter(logger core.Logger) *FastRouter {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &FastRouter{
		routes:     make([]*fastRoute, 0),
		middleware: make([]FastMiddleware, 0),
		notFound:   defaultNotFound,
		logger:     logger,
	}
}

func defaultNotFound(ctx *FastRequestContext) error {
	return ctx.Fail(fasthttp.StatusNotFound, "Not Found")
}

// GET registers a GET handler; it also answers HEAD
func (r *FastRouter) GET(path string, handler FastRequestHandler) {
	r.Route(fasthttp.MethodGet, path, handler)
}

// POST registers a POST handler
func (r *FastRouter) POST(path string, handler FastRequestHandler) {
	r.Route(fasthttp.MethodPost, path, handler)
}

// PUT registers a PUT handler
func (r *FastRouter) PUT(path string, handler FastRequestHandler) {
	r.Route(fasthttp.MethodPut, path, handler)
}

// DELETE registers a DELETE handler
func (r *FastRouter) DELETE(path string, handler FastRequestHandler) {
	r.Route(fasthttp.MethodDelete, path, handler)
}

// Route registers a handler for a method and path pattern
func (r *FastRouter) Route(method, path string, handler FastRequestHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes = append(r.routes, &fastRoute{
		method:  method,
		path:    path,
		parts:   splitPath(path),
		handler: handler,
	})
}

// Use appends global middleware; the first registered runs outermost
func (r *FastRouter) Use(middleware ...FastMiddleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, middleware...)
}

// NotFound sets the handler for requests no route matches
func (r *FastRouter) NotFound(handler FastRequestHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notFound = handler
}

// Handler returns r as a fasthttp.RequestHandler
func (r *FastRouter) Handler() fasthttp.RequestHandler {
	return r.ServeFastHTTP
}

// ServeFastHTTP implements fasthttp request handler
func (r *FastRouter) ServeFastHTTP(rc *fasthttp.RequestCtx) {
	requestID := string(rc.Request.Header.Peek(core.RequestIDHeader))
	if !core.ValidRequestID(requestID) {
		requestID = core.GenerateRequestID()
	}
	rc.Response.Header.Set(core.RequestIDHeader, requestID)

	ctx := NewFastRequestContext(rc, requestID, r.logger)
	r.Dispatch(ctx)
}

// Dispatch routes an already built request context
func (r *FastRouter) Dispatch(ctx *FastRequestContext) {
	r.mu.RLock()
	handler := failOnError(r.match(ctx))
	chain := r.middleware
	r.mu.RUnlock()

	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}

	if err := handler(ctx); err != nil {
		r.logger.WithFields(map[string]interface{}{
			"request_id": ctx.RequestID(),
			"method":     string(ctx.Method()),
			"path":       string(ctx.Path()),
		}).Errorf("handler error: %v", err)

		// Errors raised by middleware have not been answered yet
		if ctx.RequestCtx.Response.StatusCode() != fasthttp.StatusInternalServerError {
			writeInternalError(ctx)
		}
	}
}

// failOnError answers a handler error with a 500 before the middleware
// chain unwinds, so status observers see the final code. The error is
// still returned.
func failOnError(next FastRequestHandler) FastRequestHandler {
	return func(ctx *FastRequestContext) error {
		err := next(ctx)
		if err != nil {
			writeInternalError(ctx)
		}
		return err
	}
}

func writeInternalError(ctx *FastRequestContext) {
	ctx.RequestCtx.Response.ResetBody()
	// Error intentionally ignored - a fixed struct always encodes
	_ = ctx.Fail(fasthttp.StatusInternalServerError, "Internal server error")
}

// match finds the route for ctx and fills its params. Caller holds r.mu.
func (r *FastRouter) match(ctx *FastRequestContext) FastRequestHandler {
	method := string(ctx.Method())
	if method == fasthttp.MethodHead {
		method = fasthttp.MethodGet
	}
	pathParts := splitPath(string(ctx.Path()))

	for _, route := range r.routes {
		if route.method != method || !matchParts(route.parts, pathParts) {
			continue
		}
		for i, part := range route.parts {
			if strings.HasPrefix(part, ":") {
				ctx.Params[part[1:]] = pathParts[i]
			}
		}
		ctx.route = route.path
		return route.handler
	}

	ctx.route = RouteNotMatched
	return r.notFound
}

// splitPath splits a path into segments, ignoring one trailing slash
func splitPath(path string) []string {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return strings.Split(path, "/")
}

func matchParts(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, part := range pattern {
		if strings.HasPrefix(part, ":") {
			if path[i] == "" {
				return false
			}
			continue
		}
		if part != path[i] {
			return false
		}
	}
	return true
}
