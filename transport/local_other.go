//go:build !unix && !windows

package transport

import (
	"context"
	"errors"
	"net"
)

var errLocalUnsupported = errors.New("local sockets are not supported on this platform")

func listenLocal(path string) (Listener, error) {
	return nil, &BindError{Addr: path, Err: errLocalUnsupported}
}

func dialLocal(context.Context, string) (net.Conn, error) {
	return nil, errLocalUnsupported
}
