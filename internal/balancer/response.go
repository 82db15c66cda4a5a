package balancer

import (
	"net/http"

	"github.com/zeek-r/go-greeter/internal/logger"
)

// statusRecorder remembers the status code written through it
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// handleNoBackend handles the case when every backend is down
func (b *Balancer) handleNoBackend(w http.ResponseWriter, r *http.Request) {
	logger.Warn("No healthy backend for request", logger.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	})
	http.Error(w, "No healthy backend available", http.StatusServiceUnavailable)
}
