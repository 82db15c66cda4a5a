package balancer

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeek-r/go-greeter/internal/config"
	"github.com/zeek-r/go-greeter/internal/logger"
)

// ErrNoHealthyBackend is returned when every backend failed its last check.
var ErrNoHealthyBackend = errors.New("no healthy backend available")

// Balancer spreads incoming requests over the healthy backends
type Balancer struct {
	backends          []*Backend
	strategy          config.Strategy
	next              atomic.Uint64
	client            *http.Client
	healthPath        string
	healthTimeout     time.Duration
	prometheusMetrics *PrometheusMetrics
	gatherer          prometheus.Gatherer
	config            *config.Balancer
}

// New creates a Balancer from the configuration. Every backend starts out
// healthy until a check says otherwise. When metrics are enabled the
// collectors go to registry, or to the default registerer if none is given.
func New(cfg *config.Balancer, registry ...prometheus.Registerer) (*Balancer, error) {
	b := &Balancer{
		backends:      make([]*Backend, 0, len(cfg.Backends)),
		strategy:      cfg.Strategy,
		client:        &http.Client{},
		healthPath:    cfg.Health.Path,
		healthTimeout: cfg.Health.Timeout,
		config:        cfg,
	}

	for _, bc := range cfg.Backends {
		be, err := newBackend(bc)
		if err != nil {
			return nil, err
		}
		be.proxy.ErrorHandler = b.proxyErrorHandler(be)
		b.backends = append(b.backends, be)
	}

	if cfg.Metrics.Enabled {
		WithPrometheusMetrics(b, registry...)
	}

	return b, nil
}

// Backends returns the configured backends in config order.
func (b *Balancer) Backends() []*Backend {
	return b.backends
}

// NextHealthy picks the backend for the next request.
func (b *Balancer) NextHealthy() (*Backend, error) {
	n := len(b.backends)
	if n == 0 {
		return nil, ErrNoHealthyBackend
	}

	start := 0
	if b.strategy == config.StrategyRoundRobin {
		start = int((b.next.Add(1) - 1) % uint64(n))
	}

	for i := 0; i < n; i++ {
		be := b.backends[(start+i)%n]
		if be.Healthy() {
			return be, nil
		}
	}
	return nil, ErrNoHealthyBackend
}

// CheckHealth reports whether at least one backend can take traffic.
func (b *Balancer) CheckHealth() error {
	for _, be := range b.backends {
		if be.Healthy() {
			return nil
		}
	}
	return ErrNoHealthyBackend
}

// ServeHTTP implements the http.Handler interface
func (b *Balancer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestStart := time.Now()

	if b.prometheusMetrics != nil {
		b.prometheusMetrics.RequestStarted()
		defer b.prometheusMetrics.RequestFinished()
	}

	be, err := b.NextHealthy()
	if err != nil {
		b.handleNoBackend(w, r)
		if b.prometheusMetrics != nil {
			b.prometheusMetrics.RecordError("none", "no_healthy_backend")
			b.prometheusMetrics.RecordRequest("none", r.Method, "503", time.Since(requestStart))
		}
		return
	}

	logger.Debug("Routing request", logger.Fields{
		"method":  r.Method,
		"path":    r.URL.Path,
		"backend": be.Name,
	})

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	be.proxy.ServeHTTP(rec, r)

	if b.prometheusMetrics != nil {
		b.prometheusMetrics.RecordRequest(be.Name, r.Method, strconv.Itoa(rec.status), time.Since(requestStart))
	}

	logger.Debug("Request completed", logger.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": rec.status,
		"backend":     be.Name,
		"duration_ms": time.Since(requestStart).Milliseconds(),
	})
}

// proxyErrorHandler answers 502 when a backend cannot be reached and takes
// the backend out of rotation until the next successful check.
func (b *Balancer) proxyErrorHandler(be *Backend) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("Request to backend failed", err, logger.Fields{
			"backend": be.Name,
			"method":  r.Method,
			"path":    r.URL.Path,
		})
		// A client that went away says nothing about the backend.
		if r.Context().Err() == nil {
			b.markHealth(be, false, fmt.Errorf("proxy: %w", err))
		}
		if b.prometheusMetrics != nil {
			b.prometheusMetrics.RecordError(be.Name, "upstream_unreachable")
		}
		http.Error(w, "Backend unavailable", http.StatusBadGateway)
	}
}
