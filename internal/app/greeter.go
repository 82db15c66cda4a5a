// Package app wires configuration, logging and servers into runnable programs.
package app

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/zeek-r/go-greeter/internal/config"
	"github.com/zeek-r/go-greeter/internal/greeter"
	"github.com/zeek-r/go-greeter/internal/logger"
)

// RunGreeter parses <serverName> <port>, binds the listener and serves until
// SIGINT or SIGTERM. Argument and bind errors are returned before anything is
// served.
func RunGreeter(args []string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	return runGreeter(args, stop)
}

func runGreeter(args []string, stop <-chan os.Signal) error {
	cfg, err := config.ParseGreeterArgs(args)
	if err != nil {
		return err
	}

	srv, err := greeter.Listen(cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve()
	}()

	logger.Info("Greeting server listening", logger.Fields{
		"server_name": cfg.ServerName,
		"addr":        srv.Addr().String(),
	})

	select {
	case err := <-serveErr:
		return err
	case sig := <-stop:
		logger.Info("Shutting down greeting server", logger.Fields{"signal": sig.String()})
		return nil
	}
}
