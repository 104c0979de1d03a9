package prometheus

import (
	"errors"
	"strings"
	"testing"

	"github.com/fluxorio/todo-service/pkg/web"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/valyala/fasthttp"
)

func serve(router *web.FastRouter, method, path string) *fasthttp.RequestCtx {
	rc := &fasthttp.RequestCtx{}
	rc.Request.Header.SetMethod(method)
	rc.Request.SetRequestURI(path)
	router.ServeFastHTTP(rc)
	return rc
}

func TestFastHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics()
	router := web.NewFastRouter(nil)
	router.Use(FastHTTPMetricsMiddleware(m))
	router.GET("/api/todos/:id", func(ctx *web.FastRequestContext) error {
		return ctx.JSON(200, map[string]string{"id": ctx.Param("id")})
	})

	serve(router, "GET", "/api/todos/1")
	serve(router, "GET", "/api/todos/2")
	serve(router, "GET", "/missing")

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/todos/:id", "200")); got != 2 {
		t.Errorf("requests for route = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", web.RouteNotMatched, "404")); got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.HTTPRequestDuration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestFastHTTPMetricsMiddleware_HandlerError(t *testing.T) {
	m := NewMetrics()
	router := web.NewFastRouter(nil)
	router.Use(FastHTTPMetricsMiddleware(m))
	router.GET("/boom", func(ctx *web.FastRequestContext) error {
		return errors.New("boom")
	})

	rc := serve(router, "GET", "/boom")

	if rc.Response.StatusCode() != 500 {
		t.Fatalf("status = %d, want 500", rc.Response.StatusCode())
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Errorf("requests with status 500 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/boom", "200")); got != 0 {
		t.Errorf("requests with status 200 = %v, want 0", got)
	}
}

type fakeServer struct {
	metrics web.ServerMetrics
}

func (f fakeServer) Metrics() web.ServerMetrics {
	return f.metrics
}

func TestRegisterServerMetrics(t *testing.T) {
	m := NewMetrics()
	src := fakeServer{metrics: web.ServerMetrics{TotalRequests: 5, SuccessfulRequests: 4, ErrorRequests: 1}}
	if err := m.RegisterServerMetrics(src); err != nil {
		t.Fatalf("RegisterServerMetrics() error = %v", err)
	}

	expected := `
# HELP server_requests_total Requests handled by the HTTP server
# TYPE server_requests_total counter
server_requests_total 5
`
	if err := testutil.GatherAndCompare(m.Gatherer(), strings.NewReader(expected), "server_requests_total"); err != nil {
		t.Errorf("GatherAndCompare() error = %v", err)
	}
}

func TestRegisterBackpressureMetrics(t *testing.T) {
	m := NewMetrics()
	bc := web.NewBackpressureController(1)
	bc.TryAcquire()
	bc.TryAcquire()

	if err := m.RegisterBackpressureMetrics(bc); err != nil {
		t.Fatalf("RegisterBackpressureMetrics() error = %v", err)
	}

	expected := `
# HELP http_requests_in_flight Requests currently being handled
# TYPE http_requests_in_flight gauge
http_requests_in_flight 1
# HELP http_requests_rejected_total Requests rejected by the in-flight limit
# TYPE http_requests_rejected_total counter
http_requests_rejected_total 1
`
	if err := testutil.GatherAndCompare(m.Gatherer(), strings.NewReader(expected),
		"http_requests_in_flight", "http_requests_rejected_total"); err != nil {
		t.Errorf("GatherAndCompare() error = %v", err)
	}
}
