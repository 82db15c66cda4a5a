package balancer

import (
	"encoding/json"
	"net/http"
	"time"
)

// StatusData is the JSON document served on the status endpoint
type StatusData struct {
	Strategy        string          `json:"strategy"`
	HealthyBackends int             `json:"healthy_backends"`
	Backends        []BackendStatus `json:"backends"`
	UptimeSeconds   float64         `json:"uptime_seconds"`
	StartTime       time.Time       `json:"start_time"`
}

// Status snapshots every backend in config order.
func (b *Balancer) Status() []BackendStatus {
	statuses := make([]BackendStatus, len(b.backends))
	for i, be := range b.backends {
		statuses[i] = be.Status()
	}
	return statuses
}

// StatusHandler reports backend health as JSON
func StatusHandler(b *Balancer) http.HandlerFunc {
	startTime := time.Now()

	return func(w http.ResponseWriter, r *http.Request) {
		backends := b.Status()
		healthy := 0
		for _, s := range backends {
			if s.Healthy {
				healthy++
			}
		}

		data := StatusData{
			Strategy:        string(b.strategy),
			HealthyBackends: healthy,
			Backends:        backends,
			UptimeSeconds:   time.Since(startTime).Seconds(),
			StartTime:       startTime,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(data)
	}
}
