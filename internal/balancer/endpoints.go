package balancer

import (
	"net/http"

	"github.com/zeek-r/go-greeter/internal/logger"
)

// NewMux routes the status and metrics endpoints to the balancer itself and
// everything else to the backends.
func NewMux(b *Balancer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", b)

	cfg := b.config
	if cfg == nil {
		return mux
	}

	if cfg.StatusEndpoint != "" {
		mux.HandleFunc(cfg.StatusEndpoint, StatusHandler(b))
		logger.Info("Enabling status endpoint", logger.Fields{"endpoint": cfg.StatusEndpoint})
	}

	if cfg.Metrics.Enabled {
		RegisterPrometheusEndpoint(mux, cfg.Metrics.Endpoint, b.gatherer)
		logger.Info("Enabling Prometheus metrics endpoint", logger.Fields{"endpoint": cfg.Metrics.Endpoint})
	}

	return mux
}
