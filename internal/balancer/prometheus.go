package balancer

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "go_greeter_balancer"

// PrometheusMetrics holds the balancer's Prometheus collectors
type PrometheusMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	inFlightRequests prometheus.Gauge
	backendHealth    *prometheus.GaugeVec
}

// NewPrometheusMetrics registers the collectors with registry, or with the
// default registerer when none is given.
func NewPrometheusMetrics(registry ...prometheus.Registerer) *PrometheusMetrics {
	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	if len(registry) > 0 && registry[0] != nil {
		reg = registry[0]
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests handled by the balancer",
			},
			[]string{"backend", "method", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of proxied requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend", "method"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered while proxying",
			},
			[]string{"backend", "error_type"},
		),
		inFlightRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "in_flight_requests",
				Help:      "Number of requests currently being proxied",
			},
		),
		backendHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "backend_health",
				Help:      "Health of each backend (1=healthy, 0=unhealthy)",
			},
			[]string{"backend"},
		),
	}
}

// RecordRequest records metrics for a completed request
func (p *PrometheusMetrics) RecordRequest(backend, method, status string, duration time.Duration) {
	p.requestsTotal.WithLabelValues(backend, method, status).Inc()
	p.requestDuration.WithLabelValues(backend, method).Observe(duration.Seconds())
}

// RecordError counts an error by backend and type
func (p *PrometheusMetrics) RecordError(backend, errorType string) {
	p.errorsTotal.WithLabelValues(backend, errorType).Inc()
}

// RequestStarted increments the gauge for in-flight requests
func (p *PrometheusMetrics) RequestStarted() {
	p.inFlightRequests.Inc()
}

// RequestFinished decrements the gauge for in-flight requests
func (p *PrometheusMetrics) RequestFinished() {
	p.inFlightRequests.Dec()
}

// SetBackendHealth publishes the latest check result for a backend
func (p *PrometheusMetrics) SetBackendHealth(backend string, healthy bool) {
	var value float64
	if healthy {
		value = 1
	}
	p.backendHealth.WithLabelValues(backend).Set(value)
}

// WithPrometheusMetrics attaches Prometheus collectors to a balancer and
// publishes the current health of every backend. The metrics endpoint serves
// the same registry when it can be gathered from.
func WithPrometheusMetrics(b *Balancer, registry ...prometheus.Registerer) *Balancer {
	b.prometheusMetrics = NewPrometheusMetrics(registry...)
	b.gatherer = prometheus.DefaultGatherer
	if len(registry) > 0 {
		if g, ok := registry[0].(prometheus.Gatherer); ok && g != nil {
			b.gatherer = g
		}
	}
	for _, be := range b.backends {
		b.prometheusMetrics.SetBackendHealth(be.Name, be.Healthy())
	}
	return b
}

// RegisterPrometheusEndpoint serves gatherer on endpoint, falling back to the
// default registry
func RegisterPrometheusEndpoint(mux *http.ServeMux, endpoint string, gatherer prometheus.Gatherer) {
	if endpoint == "" {
		endpoint = "/metrics"
	}
	if gatherer == nil || gatherer == prometheus.DefaultGatherer {
		mux.Handle(endpoint, promhttp.Handler())
		return
	}
	mux.Handle(endpoint, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
