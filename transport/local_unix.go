//go:build unix

package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/zhubert/appctl/config"
)

// staleProbeTimeout bounds the connect attempt used to tell a live server
// from a leftover socket file.
const staleProbeTimeout = 500 * time.Millisecond

func listenLocal(path string) (Listener, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &BindError{Addr: path, Err: fmt.Errorf("failed to get absolute path: %w", err)}
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, &BindError{Addr: absPath, Err: fmt.Errorf("failed to create parent directory: %w", err)}
	}

	if err := removeStaleSocket(absPath); err != nil {
		return nil, err
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: absPath, Net: "unix"})
	if err != nil {
		return nil, &BindError{Addr: absPath, InUse: isAddrInUse(err), Err: err}
	}
	ln.SetUnlinkOnClose(true)

	return newPollListener(ln, config.TransportLocal), nil
}

// removeStaleSocket clears a socket file left by a server that is no longer
// running. A path answered by a live listener, or a path that is not a
// socket at all, is reported as a BindError and left untouched.
func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &BindError{Addr: path, Err: err}
	}

	if info.Mode()&os.ModeSocket == 0 {
		return &BindError{Addr: path, Err: fmt.Errorf("%s exists and is not a socket", path)}
	}

	conn, err := net.DialTimeout("unix", path, staleProbeTimeout)
	if err == nil {
		conn.Close()
		return &BindError{Addr: path, InUse: true, Err: ErrAddrInUse}
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &BindError{Addr: path, Err: fmt.Errorf("failed to remove stale socket: %w", err)}
	}
	return nil
}

func dialLocal(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}
