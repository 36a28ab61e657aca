package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics exposed on /metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	batchesTotal    *prometheus.CounterVec
	movementsTotal  *prometheus.CounterVec
	reportsTotal    *prometheus.CounterVec
	jobsTotal       *prometheus.CounterVec
	stockMismatches prometheus.Gauge
}

// NewMetrics initialises the registry with HTTP, ledger, report and job metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sma_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sma_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	batches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sma_ledger_batches_total",
		Help: "Committed movement batches by kind.",
	}, []string{"kind"})
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sma_ledger_movements_total",
		Help: "Movements written to the ledger by kind.",
	}, []string{"kind"})
	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sma_reports_generated_total",
		Help: "Report generation attempts by type, format and outcome.",
	}, []string{"type", "format", "outcome"})
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sma_jobs_total",
		Help: "Background job executions by task and outcome.",
	}, []string{"task", "outcome"})
	mismatches := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sma_stock_mismatches",
		Help: "Items whose stock disagreed with the ledger at the last integrity scan.",
	})
	registry.MustRegister(requests, duration, batches, movements, reports, jobs, mismatches)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		batchesTotal:    batches,
		movementsTotal:  movements,
		reportsTotal:    reports,
		jobsTotal:       jobs,
		stockMismatches: mismatches,
	}
}

// Handler returns the http.Handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveBatch counts a committed cart.
func (m *Metrics) ObserveBatch(kind string, lines int) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(kind).Inc()
	m.movementsTotal.WithLabelValues(kind).Add(float64(lines))
}

// ObserveReport counts a report generation attempt.
func (m *Metrics) ObserveReport(reportType, format string, err error) {
	if m == nil {
		return
	}
	m.reportsTotal.WithLabelValues(reportType, format, outcome(err)).Inc()
}

// ObserveJob counts a background job execution.
func (m *Metrics) ObserveJob(task string, err error) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(task, outcome(err)).Inc()
}

// SetStockMismatches publishes the result of the last integrity scan.
func (m *Metrics) SetStockMismatches(n int) {
	if m == nil {
		return
	}
	m.stockMismatches.Set(float64(n))
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
