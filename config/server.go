package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/zhubert/appctl/paths"
)

// TransportKind selects how the control server listens.
type TransportKind string

const (
	// TransportLocal is a Unix domain socket, or a named pipe on Windows.
	TransportLocal TransportKind = "local"
	// TransportTCP is a TCP socket bound to host:port.
	TransportTCP TransportKind = "tcp"
)

// ServerConfig describes where the control server listens. It is either
// Local(path) or Network(host, port) and cannot be changed after construction.
// The zero value is Local with the default path.
type ServerConfig struct {
	kind TransportKind
	path string
	host string
	port int
}

// Local returns a local-socket config. An empty path selects
// paths.DefaultSocketPath().
func Local(path string) ServerConfig {
	return ServerConfig{kind: TransportLocal, path: path}
}

// Network returns a TCP config for host:port. Port 0 asks the OS for a free port.
func Network(host string, port int) ServerConfig {
	return ServerConfig{kind: TransportTCP, host: host, port: port}
}

// Kind returns the transport kind.
func (c ServerConfig) Kind() TransportKind {
	if c.kind == "" {
		return TransportLocal
	}
	return c.kind
}

// Path returns the local socket path, resolving the default when none was given.
// It is empty for TCP configs.
func (c ServerConfig) Path() string {
	if c.Kind() != TransportLocal {
		return ""
	}
	if c.path == "" {
		return paths.DefaultSocketPath()
	}
	return c.path
}

// Host returns the TCP host.
func (c ServerConfig) Host() string { return c.host }

// Port returns the TCP port.
func (c ServerConfig) Port() int { return c.port }

// Address returns the socket path for local configs and host:port for TCP.
func (c ServerConfig) Address() string {
	if c.Kind() == TransportTCP {
		return net.JoinHostPort(c.host, strconv.Itoa(c.port))
	}
	return c.Path()
}

func (c ServerConfig) String() string {
	return fmt.Sprintf("%s:%s", c.Kind(), c.Address())
}

// Validate checks that the config can be bound.
func (c ServerConfig) Validate() error {
	switch c.Kind() {
	case TransportLocal:
		return nil
	case TransportTCP:
		if c.port < 0 || c.port > 65535 {
			return fmt.Errorf("invalid port %d: must be between 0 and 65535", c.port)
		}
		return nil
	default:
		return errors.New("unknown transport " + strconv.Quote(string(c.kind)))
	}
}
