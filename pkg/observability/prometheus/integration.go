package prometheus

import (
	"time"

	"github.com/fluxorio/todo-service/pkg/web"
	"github.com/prometheus/client_golang/prometheus"
)

// FastHTTPMetricsMiddleware creates middleware that records HTTP metrics.
// The path label is the matched route pattern, so ids do not explode
// label cardinality.
func FastHTTPMetricsMiddleware(m *Metrics) web.FastMiddleware {
	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			start := time.Now()
			method := string(ctx.Method())
			requestSize := len(ctx.RequestCtx.PostBody())

			err := next(ctx)

			path := ctx.Route()
			if path == "" {
				path = web.RouteNotMatched
			}
			m.RecordHTTPRequest(
				method,
				path,
				ctx.RequestCtx.Response.StatusCode(),
				time.Since(start),
				requestSize,
				len(ctx.RequestCtx.Response.Body()),
			)
			return err
		}
	}
}

// ServerMetricsSource provides server-level request counters
type ServerMetricsSource interface {
	Metrics() web.ServerMetrics
}

var (
	serverRequestsDesc = prometheus.NewDesc(
		"server_requests_total", "Requests handled by the HTTP server", nil, nil,
	)
	serverSuccessDesc = prometheus.NewDesc(
		"server_requests_successful_total", "Requests answered with a 2xx status", nil, nil,
	)
	serverErrorsDesc = prometheus.NewDesc(
		"server_requests_error_total", "Requests answered with a 5xx status", nil, nil,
	)
)

// serverCollector reads the server counters at scrape time
type serverCollector struct {
	source ServerMetricsSource
}

// RegisterServerMetrics exposes the counters of source on m's registry
func (m *Metrics) RegisterServerMetrics(source ServerMetricsSource) error {
	return m.registry.Register(&serverCollector{source: source})
}

func (c *serverCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- serverRequestsDesc
	ch <- serverSuccessDesc
	ch <- serverErrorsDesc
}

func (c *serverCollector) Collect(ch chan<- prometheus.Metric) {
	sm := c.source.Metrics()
	ch <- prometheus.MustNewConstMetric(serverRequestsDesc, prometheus.CounterValue, float64(sm.TotalRequests))
	ch <- prometheus.MustNewConstMetric(serverSuccessDesc, prometheus.CounterValue, float64(sm.SuccessfulRequests))
	ch <- prometheus.MustNewConstMetric(serverErrorsDesc, prometheus.CounterValue, float64(sm.ErrorRequests))
}

// BackpressureSource provides in-flight limiter statistics
type BackpressureSource interface {
	GetMetrics() web.BackpressureMetrics
}

var (
	inFlightDesc = prometheus.NewDesc(
		"http_requests_in_flight", "Requests currently being handled", nil, nil,
	)
	rejectedDesc = prometheus.NewDesc(
		"http_requests_rejected_total", "Requests rejected by the in-flight limit", nil, nil,
	)
)

type backpressureCollector struct {
	source BackpressureSource
}

// RegisterBackpressureMetrics exposes the limiter statistics of source
func (m *Metrics) RegisterBackpressureMetrics(source BackpressureSource) error {
	return m.registry.Register(&backpressureCollector{source: source})
}

func (c *backpressureCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- inFlightDesc
	ch <- rejectedDesc
}

func (c *backpressureCollector) Collect(ch chan<- prometheus.Metric) {
	bm := c.source.GetMetrics()
	ch <- prometheus.MustNewConstMetric(inFlightDesc, prometheus.GaugeValue, float64(bm.CurrentLoad))
	ch <- prometheus.MustNewConstMetric(rejectedDesc, prometheus.CounterValue, float64(bm.RejectedCount))
}
