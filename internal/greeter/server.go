package greeter

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/zeek-r/go-greeter/internal/config"
)

// BindError reports that the listener could not be opened.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Server is a greeting server that has already bound its listener.
type Server struct {
	cfg      config.Greeter
	listener net.Listener
	http     *http.Server
}

// Listen binds the configured port on all interfaces. Nothing is served until
// Serve is called, so a bind failure never leaves a half-started server.
func Listen(cfg config.Greeter) (*Server, error) {
	addr := cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}

	return &Server{
		cfg:      cfg,
		listener: ln,
		http:     &http.Server{Handler: NewHandler(cfg)},
	}, nil
}

// Addr is the bound address, with the real port when 0 was requested.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve blocks answering requests until the listener is closed.
func (s *Server) Serve() error {
	if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops accepting connections and drops open ones.
func (s *Server) Close() error {
	err := s.http.Close()
	// Serve may never have run, in which case http.Server does not own the listener.
	if lerr := s.listener.Close(); lerr != nil && !errors.Is(lerr, net.ErrClosed) && err == nil {
		err = lerr
	}
	return err
}
