//go:build windows

package transport

import (
	"context"
	"errors"
	"net"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"

	"github.com/zhubert/appctl/config"
)

// Named pipes leave nothing behind on disk, so there is no stale cleanup here.
func listenLocal(path string) (Listener, error) {
	name := PipeName(path)

	ln, err := winio.ListenPipe(name, &winio.PipeConfig{})
	if err != nil {
		inUse := errors.Is(err, windows.ERROR_ACCESS_DENIED) || errors.Is(err, windows.ERROR_PIPE_BUSY)
		return nil, &BindError{Addr: name, InUse: inUse, Err: err}
	}

	return newBlockingListener(ln, config.TransportLocal), nil
}

func dialLocal(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, PipeName(path))
}
