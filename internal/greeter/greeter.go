// Package greeter serves a fixed greeting on the root path.
package greeter

import (
	"net/http"

	"github.com/zeek-r/go-greeter/internal/config"
)

// Greeting returns the body served on "/".
func Greeting(serverName string) string {
	return "Hello from " + serverName + " !"
}

// NewHandler routes GET "/" to the greeting and leaves every other path and
// method to the mux defaults (404 and 405).
func NewHandler(cfg config.Greeter) http.Handler {
	body := []byte(Greeting(cfg.ServerName))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})
	return mux
}
