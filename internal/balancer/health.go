package balancer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/zeek-r/go-greeter/internal/logger"
)

// healthURL is the probe target for a backend.
func (b *Balancer) healthURL(be *Backend) string {
	return be.URL.ResolveReference(&url.URL{Path: b.healthPath}).String()
}

// CheckBackend probes one backend. It is healthy iff the probe answers 200
// within the health timeout.
func (b *Balancer) CheckBackend(ctx context.Context, be *Backend) bool {
	if b.healthTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.healthTimeout)
		defer cancel()
	}

	target := b.healthURL(be)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		b.markHealth(be, false, err)
		return false
	}

	resp, err := b.client.Do(req)
	if err != nil {
		b.markHealth(be, false, err)
		return false
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.markHealth(be, false, fmt.Errorf("health check returned status %d", resp.StatusCode))
		return false
	}

	b.markHealth(be, true, nil)
	return true
}

// CheckAll probes every backend concurrently and returns how many are
// healthy. A round takes as long as the slowest probe, at most one timeout.
func (b *Balancer) CheckAll(ctx context.Context) int {
	var (
		wg      sync.WaitGroup
		healthy atomic.Int64
	)
	for _, be := range b.backends {
		wg.Add(1)
		go func(be *Backend) {
			defer wg.Done()
			if b.CheckBackend(ctx, be) {
				healthy.Add(1)
			}
		}(be)
	}
	wg.Wait()
	return int(healthy.Load())
}

func (b *Balancer) markHealth(be *Backend, healthy bool, checkErr error) {
	changed := be.setHealth(healthy, checkErr)

	if b.prometheusMetrics != nil {
		b.prometheusMetrics.SetBackendHealth(be.Name, healthy)
	}

	fields := logger.Fields{"backend": be.Name, "url": be.URL.String()}
	switch {
	case changed && healthy:
		logger.Info("Backend is healthy again", fields)
	case changed:
		logger.Error("Backend is not healthy", checkErr, fields)
	case healthy:
		logger.Debug("Backend is healthy", fields)
	default:
		logger.Debug("Backend is still not healthy", fields)
	}
}

// HealthChecker runs CheckAll on a fixed interval.
type HealthChecker struct {
	balancer  *Balancer
	interval  time.Duration
	scheduler *gocron.Scheduler
}

// NewHealthChecker schedules checks for b every interval.
func NewHealthChecker(b *Balancer, interval time.Duration) *HealthChecker {
	scheduler := gocron.NewScheduler(time.Local)
	// A slow round must finish before the next one starts.
	scheduler.SingletonModeAll()

	return &HealthChecker{
		balancer:  b,
		interval:  interval,
		scheduler: scheduler,
	}
}

// Start runs the first round immediately and then keeps checking in the
// background until Stop.
func (h *HealthChecker) Start() error {
	_, err := h.scheduler.Every(h.interval).Do(func() {
		healthy := h.balancer.CheckAll(context.Background())
		logger.Debug("Health check round finished", logger.Fields{
			"healthy":  healthy,
			"backends": len(h.balancer.backends),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to schedule health checks: %w", err)
	}

	h.scheduler.StartAsync()
	logger.Info("Health checks started", logger.Fields{
		"interval": h.interval.String(),
		"backends": backendNames(h.balancer.backends),
	})
	return nil
}

// Stop halts the schedule. A round that is already running completes.
func (h *HealthChecker) Stop() {
	h.scheduler.Stop()
}
