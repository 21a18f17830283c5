// Package transport hides the difference between the control server's two
// listener kinds behind one accept/read/write surface.
//
// Local sockets are Unix domain sockets bound to a filesystem path, except on
// Windows where they are named pipes in the \\.\pipe\ namespace. Network
// sockets are plain TCP. Listeners that support deadlines (Unix and TCP) are
// polled on a short interval so Accept observes context cancellation without
// relying on the listener being closed; named-pipe listeners block until a
// client arrives or Close is called.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/zhubert/appctl/config"
)

// PollInterval bounds how long a polling Accept waits before re-checking its
// context.
const PollInterval = 100 * time.Millisecond

var (
	// ErrListenerClosed is returned by Accept once the listener is closed or
	// its context is done. The accept loop treats it as a normal stop.
	ErrListenerClosed = errors.New("listener closed")

	// ErrAddrInUse is wrapped by a BindError when another live server owns
	// the address.
	ErrAddrInUse = errors.New("address already in use")
)

// Conn is one accepted client connection.
type Conn interface {
	io.ReadWriteCloser

	// Duplicate returns an independent handle to the same stream so reading
	// and writing can be driven from separate owners. The stream is closed
	// when every handle has been closed.
	Duplicate() (Conn, error)

	// Kind reports the transport the connection arrived on.
	Kind() config.TransportKind

	// RemoteAddr describes the peer for logging.
	RemoteAddr() string
}

// Listener accepts connections on one transport.
type Listener interface {
	// Accept blocks until a client connects, ctx is done, or the listener
	// fails. It returns ErrListenerClosed after Close or cancellation.
	Accept(ctx context.Context) (Conn, error)

	// Close stops the listener. It is safe to call more than once and from a
	// goroutine other than the one blocked in Accept.
	Close() error

	Addr() net.Addr
	Kind() config.TransportKind
}

// BindError reports that a listener could not be created at Addr.
type BindError struct {
	Addr  string
	InUse bool
	Err   error
}

func (e *BindError) Error() string {
	if e.InUse {
		return fmt.Sprintf("bind %s: address already in use: %v", e.Addr, e.Err)
	}
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Listen creates the listener described by cfg.
func Listen(cfg config.ServerConfig) (Listener, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &BindError{Addr: cfg.Address(), Err: err}
	}
	switch cfg.Kind() {
	case config.TransportTCP:
		return listenTCP(cfg.Address())
	default:
		return listenLocal(cfg.Path())
	}
}

// Dial connects to the server described by cfg. It is the client-side
// counterpart of Listen.
func Dial(ctx context.Context, cfg config.ServerConfig) (net.Conn, error) {
	switch cfg.Kind() {
	case config.TransportTCP:
		var d net.Dialer
		return d.DialContext(ctx, "tcp", cfg.Address())
	default:
		return dialLocal(ctx, cfg.Path())
	}
}

func listenTCP(addr string) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, InUse: isAddrInUse(err), Err: err}
	}
	return newPollListener(ln.(*net.TCPListener), config.TransportTCP), nil
}
