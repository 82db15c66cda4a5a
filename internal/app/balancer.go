package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rusq/osenv/v2"
	"gocloud.dev/server/health"
	"gocloud.dev/server/requestlog"
	"gocloud.dev/server"

	"github.com/zeek-r/go-greeter/internal/balancer"
	"github.com/zeek-r/go-greeter/internal/config"
	"github.com/zeek-r/go-greeter/internal/logger"
)

const shutdownTimeout = 5 * time.Second

// RunBalancer starts the load balancer in front of the configured greeting
// servers and blocks until SIGINT or SIGTERM.
func RunBalancer(args []string) error {
	fs := flag.NewFlagSet("balancer", flag.ContinueOnError)
	configFile := fs.String("config", osenv.Value("BALANCER_CONFIG", "config.yaml"), "Path to configuration file")
	verbose := fs.Bool("verbose", false, "Enable verbose logging (overrides config file setting)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadBalancer(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *verbose {
		cfg.Logging.Level = logger.LevelDebug
	}
	logger.Initialize(cfg.Logging)

	lb, err := balancer.New(cfg)
	if err != nil {
		return err
	}

	checker := balancer.NewHealthChecker(lb, cfg.Health.Interval)
	if err := checker.Start(); err != nil {
		return err
	}
	defer checker.Stop()

	srv := newBalancerServer(cfg, lb)
	addr := fmt.Sprintf(":%d", cfg.Port)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Starting balancer on port %d", cfg.Port), logger.Fields{
			"backends": len(cfg.Backends),
			"strategy": string(cfg.Strategy),
		})
		serveErr <- srv.ListenAndServe(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}

	logger.Info("Shutting down balancer...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func newBalancerServer(cfg *config.Balancer, lb *balancer.Balancer) *server.Server {
	opts := &server.Options{
		HealthChecks: []health.Checker{lb},
	}
	if cfg.AccessLog {
		opts.RequestLogger = requestlog.NewNCSALogger(os.Stdout, func(err error) {
			logger.Error("Failed to write access log", err)
		})
	}
	return server.New(balancer.NewMux(lb), opts)
}
