package balancer

import (
	"fmt"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/zeek-r/go-greeter/internal/config"
)

// Backend is one upstream greeting server together with its health state.
type Backend struct {
	Name string
	URL  *url.URL

	proxy *httputil.ReverseProxy

	mu        sync.RWMutex
	healthy   bool
	lastCheck time.Time
	lastError string
}

// BackendStatus is a point-in-time copy of a backend's health.
type BackendStatus struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

func newBackend(cfg config.Backend) (*Backend, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %s: %w", cfg.URL, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %s: scheme and host are required", cfg.URL)
	}

	name := cfg.Name
	if name == "" {
		name = target.Host
	}

	be := &Backend{
		Name:    name,
		URL:     target,
		healthy: true,
	}
	be.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
	}
	return be, nil
}

// Healthy reports the result of the last health check.
func (be *Backend) Healthy() bool {
	be.mu.RLock()
	defer be.mu.RUnlock()
	return be.healthy
}

// setHealth stores a check result and reports whether the state flipped.
func (be *Backend) setHealth(healthy bool, checkErr error) bool {
	be.mu.Lock()
	defer be.mu.Unlock()

	changed := be.healthy != healthy
	be.healthy = healthy
	be.lastCheck = time.Now()
	be.lastError = ""
	if checkErr != nil {
		be.lastError = checkErr.Error()
	}
	return changed
}

// Status returns a snapshot of the backend's health.
func (be *Backend) Status() BackendStatus {
	be.mu.RLock()
	defer be.mu.RUnlock()
	return BackendStatus{
		Name:      be.Name,
		URL:       be.URL.String(),
		Healthy:   be.healthy,
		LastCheck: be.lastCheck,
		LastError: be.lastError,
	}
}

func backendNames(backends []*Backend) []string {
	names := make([]string, len(backends))
	for i, be := range backends {
		names[i] = be.Name
	}
	return names
}
