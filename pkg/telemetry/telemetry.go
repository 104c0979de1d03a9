// Package telemetry renders store-derived health and metrics documents.
package telemetry

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/fluxorio/todo-service/pkg/todo"
)

// StatusHealthy is the only status the service reports
const StatusHealthy = "healthy"

// Source provides the current todos
type Source interface {
	All() []todo.Todo
}

// Health is the /health payload
type Health struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Uptime      float64   `json:"uptime"`
	Environment string    `json:"environment"`
	TodosCount  int       `json:"todos_count"`
}

// Reporter builds health and metrics views from a Source at call time
type Reporter struct {
	source      Source
	environment string
	started     time.Time
	now         func() time.Time
	registry    *prometheus.Registry
}

// Option configures a Reporter
type Option func(*Reporter)

// WithStartTime sets the instant uptime is measured from
func WithStartTime(t time.Time) Option {
	return func(r *Reporter) {
		r.started = t
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		r.now = now
	}
}

// NewReporter creates a reporter for the given source and environment name
func NewReporter(source Source, environment string, opts ...Option) *Reporter {
	r := &Reporter{
		source:      source,
		environment: environment,
		now:         time.Now,
		registry:    prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.started.IsZero() {
		r.started = r.now()
	}
	r.registry.MustRegister(&storeCollector{reporter: r})
	return r
}

// Uptime returns the seconds elapsed since the reporter's start time
func (r *Reporter) Uptime() float64 {
	return r.now().Sub(r.started).Seconds()
}

// Health returns the health payload
func (r *Reporter) Health() Health {
	return Health{
		Status:      StatusHealthy,
		Timestamp:   r.now().UTC(),
		Uptime:      r.Uptime(),
		Environment: r.environment,
		TodosCount:  len(r.source.All()),
	}
}

// Gatherer exposes the todo gauges for composition with other registries
func (r *Reporter) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteMetrics writes the todo gauges followed by the families of extra,
// in Prometheus text exposition format.
func (r *Reporter) WriteMetrics(w io.Writer, extra ...prometheus.Gatherer) error {
	if err := writeFamilies(w, r.registry); err != nil {
		return err
	}
	if len(extra) == 0 {
		return nil
	}
	return writeFamilies(w, prometheus.Gatherers(extra))
}

func writeFamilies(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// MetricsText returns the todo gauges as a text document
func (r *Reporter) MetricsText() (string, error) {
	var buf bytes.Buffer
	if err := r.WriteMetrics(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var (
	todosTotalDesc = prometheus.NewDesc(
		"todos_total", "Total number of todos", nil, nil,
	)
	todosCompletedDesc = prometheus.NewDesc(
		"todos_completed", "Number of completed todos", nil, nil,
	)
	todosPendingDesc = prometheus.NewDesc(
		"todos_pending", "Number of pending todos", nil, nil,
	)
	uptimeDesc = prometheus.NewDesc(
		"app_uptime_seconds", "Application uptime in seconds", nil, nil,
	)
)

// storeCollector takes one snapshot per scrape so the three todo gauges
// always agree with each other.
type storeCollector struct {
	reporter *Reporter
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- todosTotalDesc
	ch <- todosCompletedDesc
	ch <- todosPendingDesc
	ch <- uptimeDesc
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	st := todo.ComputeStats(c.reporter.source.All())
	ch <- prometheus.MustNewConstMetric(todosTotalDesc, prometheus.GaugeValue, float64(st.Total))
	ch <- prometheus.MustNewConstMetric(todosCompletedDesc, prometheus.GaugeValue, float64(st.Completed))
	ch <- prometheus.MustNewConstMetric(todosPendingDesc, prometheus.GaugeValue, float64(st.Pending))
	ch <- prometheus.MustNewConstMetric(uptimeDesc, prometheus.GaugeValue, c.reporter.Uptime())
}
