package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/fabricdesk/fabricdesk/internal/jobs"
)

// Metrics collects the Prometheus metrics of the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	deductionLines  *prometheus.CounterVec
	duplicates      prometheus.Counter
	warehouseValue  *prometheus.GaugeVec
	jobs            *jobmetrics.Metrics
}

// NewMetrics initialises the registry with HTTP, stock and job metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricdesk_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fabricdesk_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	lines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabricdesk_stock_deduction_lines_total",
		Help: "Order lines processed by stock deduction, by result.",
	}, []string{"result"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fabricdesk_stock_deduction_duplicates_total",
		Help: "Fulfillments skipped because the order was already deducted.",
	})
	value := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fabricdesk_warehouse_value",
		Help: "Last recorded warehouse valuation by strategy.",
	}, []string{"strategy"})
	registry.MustRegister(requests, duration, lines, duplicates, value)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		deductionLines:  lines,
		duplicates:      duplicates,
		warehouseValue:  value,
		jobs:            jobmetrics.NewMetrics(registry),
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and latency of every HTTP request.
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

// ObserveDeduction counts applied and skipped deduction lines.
func (m *Metrics) ObserveDeduction(applied, skipped int) {
	if m == nil {
		return
	}
	m.deductionLines.WithLabelValues("applied").Add(float64(applied))
	m.deductionLines.WithLabelValues("skipped").Add(float64(skipped))
}

// ObserveDuplicateDeduction counts fulfillments stopped by the idempotency guard.
func (m *Metrics) ObserveDuplicateDeduction() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

// SetWarehouseValue publishes the latest valuation total.
func (m *Metrics) SetWarehouseValue(strategy string, value float64) {
	if m == nil {
		return
	}
	m.warehouseValue.WithLabelValues(strategy).Set(value)
}

// Jobs returns the background job collectors.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps server-sent event streams working behind the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
