package handlers

import (
	"bytes"
	"strings"

	"github.com/fluxorio/todo-service/pkg/telemetry"
	"github.com/fluxorio/todo-service/pkg/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
)

// SystemHandler serves health, metrics and the not-found fallback
type SystemHandler struct {
	reporter  *telemetry.Reporter
	gatherers []prometheus.Gatherer
	static    web.FastRequestHandler
}

// NewSystemHandler creates a handler. gatherers are rendered on /metrics
// after the todo gauges.
func NewSystemHandler(reporter *telemetry.Reporter, gatherers ...prometheus.Gatherer) *SystemHandler {
	return &SystemHandler{
		reporter:  reporter,
		gatherers: gatherers,
	}
}

// ServeStatic makes unmatched non-API GET requests fall back to files in dir
func (h *SystemHandler) ServeStatic(dir string) {
	if dir == "" {
		h.static = nil
		return
	}
	h.static = web.Static(dir, RouteNotFound)
}

// Health handles GET /health
func (h *SystemHandler) Health(ctx *web.FastRequestContext) error {
	return ctx.JSON(fasthttp.StatusOK, h.reporter.Health())
}

// Metrics handles GET /metrics
func (h *SystemHandler) Metrics(ctx *web.FastRequestContext) error {
	var buf bytes.Buffer
	if err := h.reporter.WriteMetrics(&buf, h.gatherers...); err != nil {
		return err
	}
	return ctx.Text(fasthttp.StatusOK, buf.String())
}

// NotFound handles requests no route matched
func (h *SystemHandler) NotFound(ctx *web.FastRequestContext) error {
	if h.static != nil && !strings.HasPrefix(string(ctx.Path()), "/api/") {
		return h.static(ctx)
	}
	return RouteNotFound(ctx)
}

// RouteNotFound writes the JSON 404 for unknown routes
func RouteNotFound(ctx *web.FastRequestContext) error {
	return ctx.Fail(fasthttp.StatusNotFound, MsgRouteNotFound)
}
