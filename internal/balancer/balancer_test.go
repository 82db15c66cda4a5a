package balancer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zeek-r/go-greeter/internal/config"
	"github.com/zeek-r/go-greeter/internal/greeter"
)

// startGreeter runs a real greeting handler behind an httptest server
func startGreeter(t *testing.T, name string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(greeter.NewHandler(config.Greeter{ServerName: name}))
	t.Cleanup(srv.Close)
	return srv
}

// deadURL returns the URL of a server that has already been shut down
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

func testConfig(strategy config.Strategy, urls ...string) *config.Balancer {
	cfg := &config.Balancer{
		Port:     8000,
		Strategy: strategy,
		Health: config.HealthConfig{
			Interval: 50 * time.Millisecond,
			Timeout:  time.Second,
			Path:     "/",
		},
		StatusEndpoint: "/status",
	}
	for _, u := range urls {
		cfg.Backends = append(cfg.Backends, config.Backend{URL: u + "/"})
	}
	return cfg
}

func createTestBalancer(t *testing.T, strategy config.Strategy, urls ...string) *Balancer {
	t.Helper()
	b, err := New(testConfig(strategy, urls...))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return b
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	h.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "http://balancer.local"+path, nil))
	return recorder
}

func TestNewRejectsInvalidURL(t *testing.T) {
	tests := []string{"://bad", "127.0.0.1:5000", "/relative"}

	for _, u := range tests {
		t.Run(u, func(t *testing.T) {
			cfg := &config.Balancer{Backends: []config.Backend{{URL: u}}}
			if _, err := New(cfg); err == nil {
				t.Errorf("Expected error for %q", u)
			}
		})
	}
}

func TestNewNamesBackendsByHost(t *testing.T) {
	b := createTestBalancer(t, config.StrategyFirst, "http://127.0.0.1:5000")
	if name := b.Backends()[0].Name; name != "127.0.0.1:5000" {
		t.Errorf("Expected host as backend name, got %q", name)
	}
	if !b.Backends()[0].Healthy() {
		t.Errorf("Backends should start healthy")
	}
}

func TestNextHealthy(t *testing.T) {
	urls := []string{"http://a.local", "http://b.local", "http://c.local"}

	tests := []struct {
		name      string
		strategy  config.Strategy
		unhealthy []int
		expected  []string
	}{
		{
			name:     "first picks first",
			strategy: config.StrategyFirst,
			expected: []string{"a.local", "a.local", "a.local"},
		},
		{
			name:      "first skips unhealthy",
			strategy:  config.StrategyFirst,
			unhealthy: []int{0},
			expected:  []string{"b.local", "b.local"},
		},
		{
			name:     "round robin rotates",
			strategy: config.StrategyRoundRobin,
			expected: []string{"a.local", "b.local", "c.local", "a.local"},
		},
		{
			name:      "round robin skips unhealthy",
			strategy:  config.StrategyRoundRobin,
			unhealthy: []int{1},
			expected:  []string{"a.local", "c.local", "c.local", "a.local"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b := createTestBalancer(t, test.strategy, urls...)
			for _, i := range test.unhealthy {
				b.backends[i].setHealth(false, nil)
			}

			for i, want := range test.expected {
				be, err := b.NextHealthy()
				if err != nil {
					t.Fatalf("Pick %d: unexpected error %v", i, err)
				}
				if be.Name != want {
					t.Errorf("Pick %d: expected %s, got %s", i, want, be.Name)
				}
			}
		})
	}
}

func TestNextHealthyNoneHealthy(t *testing.T) {
	b := createTestBalancer(t, config.StrategyRoundRobin, "http://a.local", "http://b.local")
	for _, be := range b.backends {
		be.setHealth(false, nil)
	}

	if _, err := b.NextHealthy(); !errors.Is(err, ErrNoHealthyBackend) {
		t.Errorf("Expected ErrNoHealthyBackend, got %v", err)
	}
	if err := b.CheckHealth(); !errors.Is(err, ErrNoHealthyBackend) {
		t.Errorf("Expected CheckHealth to fail, got %v", err)
	}
}

func TestServeHTTPProxiesToGreeter(t *testing.T) {
	alpha := startGreeter(t, "alpha")
	beta := startGreeter(t, "beta")
	b := createTestBalancer(t, config.StrategyRoundRobin, alpha.URL, beta.URL)

	for _, want := range []string{"Hello from alpha !", "Hello from beta !", "Hello from alpha !"} {
		recorder := get(t, b, "/")
		if recorder.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", recorder.Code)
		}
		if recorder.Body.String() != want {
			t.Errorf("Expected %q, got %q", want, recorder.Body.String())
		}
	}

	if recorder := get(t, b, "/missing"); recorder.Code != http.StatusNotFound {
		t.Errorf("Expected backend 404 to pass through, got %d", recorder.Code)
	}
}

func TestServeHTTPNoHealthyBackend(t *testing.T) {
	b := createTestBalancer(t, config.StrategyFirst, "http://a.local")
	b.backends[0].setHealth(false, nil)

	recorder := get(t, b, "/")
	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "No healthy backend available") {
		t.Errorf("Unexpected body %q", recorder.Body.String())
	}
}

func TestServeHTTPUnreachableBackend(t *testing.T) {
	alpha := startGreeter(t, "alpha")
	b := createTestBalancer(t, config.StrategyFirst, deadURL(t), alpha.URL)

	recorder := get(t, b, "/")
	if recorder.Code != http.StatusBadGateway {
		t.Fatalf("Expected status 502, got %d", recorder.Code)
	}
	if b.backends[0].Healthy() {
		t.Errorf("Unreachable backend should be marked unhealthy")
	}

	recorder = get(t, b, "/")
	if recorder.Body.String() != "Hello from alpha !" {
		t.Errorf("Expected failover to alpha, got %d %q", recorder.Code, recorder.Body.String())
	}
}

func TestCheckBackend(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{name: "greeter", url: startGreeter(t, "alpha").URL, expected: true},
		{name: "server error", url: failing.URL, expected: false},
		{name: "connection refused", url: deadURL(t), expected: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b := createTestBalancer(t, config.StrategyFirst, test.url)
			be := b.backends[0]

			if got := b.CheckBackend(context.Background(), be); got != test.expected {
				t.Errorf("Expected %v, got %v", test.expected, got)
			}

			status := be.Status()
			if status.Healthy != test.expected {
				t.Errorf("Status healthy should be %v", test.expected)
			}
			if status.LastCheck.IsZero() {
				t.Errorf("LastCheck should be set")
			}
			if !test.expected && status.LastError == "" {
				t.Errorf("LastError should be set for a failed check")
			}
		})
	}
}

func TestCheckBackendTimeout(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	b := createTestBalancer(t, config.StrategyFirst, slow.URL)
	b.healthTimeout = 50 * time.Millisecond

	if b.CheckBackend(context.Background(), b.backends[0]) {
		t.Errorf("A backend slower than the timeout should be unhealthy")
	}
}

func TestCheckAllRecovers(t *testing.T) {
	alpha := startGreeter(t, "alpha")
	b := createTestBalancer(t, config.StrategyFirst, alpha.URL, deadURL(t))
	b.backends[0].setHealth(false, nil)

	if healthy := b.CheckAll(context.Background()); healthy != 1 {
		t.Errorf("Expected 1 healthy backend, got %d", healthy)
	}
	if !b.backends[0].Healthy() {
		t.Errorf("Alpha should have recovered")
	}
	if b.backends[1].Healthy() {
		t.Errorf("Dead backend should be unhealthy")
	}
}

func TestCheckAllDoesNotQueueBehindHungBackends(t *testing.T) {
	release := make(chan struct{})
	hung := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer hung.Close()
	defer close(release)

	alpha := startGreeter(t, "alpha")
	b := createTestBalancer(t, config.StrategyFirst, hung.URL, hung.URL, hung.URL, alpha.URL)
	timeout := 300 * time.Millisecond
	b.healthTimeout = timeout
	b.backends[3].setHealth(false, nil)

	start := time.Now()
	healthy := b.CheckAll(context.Background())
	elapsed := time.Since(start)

	if healthy != 1 {
		t.Errorf("Expected 1 healthy backend, got %d", healthy)
	}
	if !b.backends[3].Healthy() {
		t.Errorf("Alpha should have recovered in the same round")
	}
	for i := 0; i < 3; i++ {
		if b.backends[i].Healthy() {
			t.Errorf("Hung backend %d should be unhealthy", i)
		}
	}
	if elapsed >= 2*timeout {
		t.Errorf("Round took %v, expected about one timeout (%v)", elapsed, timeout)
	}
}

func TestHealthCheckerRuns(t *testing.T) {
	b := createTestBalancer(t, config.StrategyFirst, deadURL(t))
	checker := NewHealthChecker(b, 50*time.Millisecond)

	if err := checker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer checker.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for b.backends[0].Healthy() {
		if time.Now().After(deadline) {
			t.Fatal("Health checker never marked the dead backend unhealthy")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStatusEndpoint(t *testing.T) {
	alpha := startGreeter(t, "alpha")
	b := createTestBalancer(t, config.StrategyFirst, alpha.URL, "http://down.local")
	b.backends[1].setHealth(false, errors.New("dial tcp: refused"))
	mux := NewMux(b)

	recorder := get(t, mux, "/status")
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	body, _ := io.ReadAll(recorder.Body)
	for _, want := range []string{`"healthy_backends":1`, `"strategy":"first"`, `"name":"down.local"`, `"last_error":"dial tcp: refused"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Expected %s in %s", want, body)
		}
	}

	// Anything else goes to the backends.
	if recorder := get(t, mux, "/"); recorder.Body.String() != "Hello from alpha !" {
		t.Errorf("Expected greeting through the mux, got %q", recorder.Body.String())
	}
}
