package config

import (
	"fmt"
	"os"
	"time"

	"github.com/zeek-r/go-greeter/internal/logger"
	"gopkg.in/yaml.v3"
)

// Strategy selects which healthy backend serves a request.
type Strategy string

const (
	// StrategyFirst always picks the first healthy backend in config order.
	StrategyFirst Strategy = "first"
	// StrategyRoundRobin rotates across healthy backends.
	StrategyRoundRobin Strategy = "round_robin"
)

// Balancer holds the load balancer configuration
type Balancer struct {
	Port     int           `yaml:"port"`
	Backends []Backend     `yaml:"backends"`
	Strategy Strategy      `yaml:"strategy,omitempty"`
	Health   HealthConfig  `yaml:"health,omitempty"`
	Logging  logger.Config `yaml:"logging,omitempty"`
	Metrics  MetricsConfig `yaml:"metrics,omitempty"`
	// AccessLog writes one NCSA line per request to stdout
	AccessLog bool `yaml:"accessLog,omitempty"`
	// StatusEndpoint exposes backend health as JSON
	StatusEndpoint string `yaml:"statusEndpoint,omitempty"`
}

// Backend is a greeting server behind the balancer
type Backend struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// HealthConfig controls the periodic health checks
type HealthConfig struct {
	Interval time.Duration `yaml:"interval,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Path     string        `yaml:"path,omitempty"`
}

// MetricsConfig defines how metrics are exposed
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LoadBalancer reads the configuration from the specified file
func LoadBalancer(filename string) (*Balancer, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return ParseBalancer(data)
}

// ParseBalancer decodes YAML, applies defaults and validates the result.
func ParseBalancer(data []byte) (*Balancer, error) {
	var cfg Balancer
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyFirst
	}
	if cfg.Health.Interval == 0 {
		cfg.Health.Interval = 2 * time.Second
	}
	if cfg.Health.Timeout == 0 {
		cfg.Health.Timeout = time.Second
	}
	if cfg.Health.Path == "" {
		cfg.Health.Path = "/"
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Endpoint == "" {
		cfg.Metrics.Endpoint = "/metrics"
	}
	if cfg.StatusEndpoint == "" {
		cfg.StatusEndpoint = "/status"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields that have no sensible default.
func (b *Balancer) Validate() error {
	if len(b.Backends) == 0 {
		return fmt.Errorf("invalid config: at least one backend is required")
	}
	for i, be := range b.Backends {
		if be.URL == "" {
			return fmt.Errorf("invalid config: backend %d has no url", i)
		}
	}
	switch b.Strategy {
	case StrategyFirst, StrategyRoundRobin:
	default:
		return fmt.Errorf("invalid config: unknown strategy %q", b.Strategy)
	}
	return nil
}
