package config

import (
	"errors"
	"fmt"
	"strconv"
)

// GreeterUsage is printed when the greeting server is started with bad arguments.
const GreeterUsage = "usage: greeter <serverName> <port>"

var (
	ErrMissingServerName = errors.New("missing required argument: serverName")
	ErrMissingPort       = errors.New("missing required argument: port")
	ErrInvalidPort       = errors.New("port must be an integer")
)

// UsageError reports bad command line arguments.
type UsageError struct {
	Usage string
	Err   error
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%v\n%s", e.Err, e.Usage)
}

func (e *UsageError) Unwrap() error { return e.Err }

// Greeter is the immutable startup configuration of a greeting server.
type Greeter struct {
	ServerName string
	Port       int
}

// Addr is the listen address on all interfaces.
func (g Greeter) Addr() string {
	return fmt.Sprintf(":%d", g.Port)
}

// ParseGreeterArgs reads <serverName> <port> from positional arguments.
// Arguments past the second are ignored. The name is taken verbatim, including
// the empty string, and the port range is left to the listener.
func ParseGreeterArgs(args []string) (Greeter, error) {
	if len(args) < 1 {
		return Greeter{}, &UsageError{Usage: GreeterUsage, Err: ErrMissingServerName}
	}
	if len(args) < 2 {
		return Greeter{}, &UsageError{Usage: GreeterUsage, Err: ErrMissingPort}
	}

	port, err := strconv.Atoi(args[1])
	if err != nil {
		return Greeter{}, &UsageError{
			Usage: GreeterUsage,
			Err:   fmt.Errorf("%w: %q: %v", ErrInvalidPort, args[1], err),
		}
	}

	return Greeter{ServerName: args[0], Port: port}, nil
}
