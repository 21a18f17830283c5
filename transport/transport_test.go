package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhubert/appctl/config"
)

// shortSocketPath keeps Unix socket paths under the ~104 byte limit on macOS.
func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ac")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "t.sock")
}

func skipUnlessUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix domain sockets only")
	}
}

func acceptAsync(ctx context.Context, ln Listener) <-chan Conn {
	ch := make(chan Conn, 1)
	go func() {
		c, err := ln.Accept(ctx)
		if err != nil {
			close(ch)
			return
		}
		ch <- c
	}()
	return ch
}

func TestListenTCP_AcceptAndEcho(t *testing.T) {
	ln, err := Listen(config.Network("127.0.0.1", 0))
	require.NoError(t, err)
	defer ln.Close()

	assert.Equal(t, config.TransportTCP, ln.Kind())
	addr := ln.Addr().(*net.TCPAddr)
	require.NotZero(t, addr.Port)

	accepted := acceptAsync(context.Background(), ln)

	client, err := Dial(context.Background(), config.Network("127.0.0.1", addr.Port))
	require.NoError(t, err)
	defer client.Close()

	var srv Conn
	select {
	case srv = <-accepted:
		require.NotNil(t, srv)
	case <-time.After(2 * time.Second):
		t.Fatal("accept did not return")
	}
	defer srv.Close()

	assert.Equal(t, config.TransportTCP, srv.Kind())
	assert.NotEmpty(t, srv.RemoteAddr())

	_, err = client.Write([]byte("hi\n"))
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, err = io.ReadFull(srv, buf)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(buf))
}

func TestListenTCP_PortInUse(t *testing.T) {
	first, err := Listen(config.Network("127.0.0.1", 0))
	require.NoError(t, err)
	defer first.Close()

	port := first.Addr().(*net.TCPAddr).Port
	_, err = Listen(config.Network("127.0.0.1", port))
	require.Error(t, err)

	var be *BindError
	require.ErrorAs(t, err, &be)
	assert.True(t, be.InUse, "expected InUse for %v", err)
}

func TestListen_InvalidConfig(t *testing.T) {
	_, err := Listen(config.Network("127.0.0.1", 70000))
	var be *BindError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, err.Error(), "invalid port")
}

func TestPollListener_CancelUnblocksAccept(t *testing.T) {
	ln, err := Listen(config.Network("127.0.0.1", 0))
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := ln.Accept(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrListenerClosed)
	case <-time.After(5 * PollInterval):
		t.Fatal("Accept did not observe cancellation within the poll interval")
	}
}

func TestPollListener_CloseUnblocksAccept(t *testing.T) {
	ln, err := Listen(config.Network("127.0.0.1", 0))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := ln.Accept(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, ln.Close())
	assert.NoError(t, ln.Close(), "second Close should be a no-op")

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrListenerClosed)
	case <-time.After(time.Second):
		t.Fatal("Accept did not return after Close")
	}
}

func TestListenLocal_RemovesStaleSocket(t *testing.T) {
	skipUnlessUnix(t)
	path := shortSocketPath(t)

	// Leave a socket file behind with nothing listening on it.
	stale, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	require.NoError(t, err)
	stale.SetUnlinkOnClose(false)
	require.NoError(t, stale.Close())
	_, err = os.Lstat(path)
	require.NoError(t, err, "stale socket file should still exist")

	ln, err := Listen(config.Local(path))
	require.NoError(t, err)
	assert.Equal(t, config.TransportLocal, ln.Kind())

	require.NoError(t, ln.Close())
	_, err = os.Lstat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "socket file should be removed on close")
}

func TestListenLocal_LiveSocketIsInUse(t *testing.T) {
	skipUnlessUnix(t)
	path := shortSocketPath(t)

	first, err := Listen(config.Local(path))
	require.NoError(t, err)
	defer first.Close()

	// Keep the first listener answering the liveness check.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for {
			c, err := first.Accept(ctx)
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	_, err = Listen(config.Local(path))
	require.Error(t, err)
	var be *BindError
	require.ErrorAs(t, err, &be)
	assert.True(t, be.InUse)
	assert.ErrorIs(t, err, ErrAddrInUse)

	_, err = os.Lstat(path)
	assert.NoError(t, err, "live socket must not be removed")
}

func TestListenLocal_RefusesNonSocketFile(t *testing.T) {
	skipUnlessUnix(t)
	path := shortSocketPath(t)
	require.NoError(t, os.WriteFile(path, []byte("keep me"), 0644))

	_, err := Listen(config.Local(path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a socket")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestListenLocal_CreatesParentDir(t *testing.T) {
	skipUnlessUnix(t)
	dir, err := os.MkdirTemp("", "ac")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "n", "s.sock")
	ln, err := Listen(config.Local(path))
	require.NoError(t, err)
	defer ln.Close()

	info, err := os.Lstat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSocket)
}

func TestListenLocal_DialRoundTrip(t *testing.T) {
	skipUnlessUnix(t)
	path := shortSocketPath(t)
	cfg := config.Local(path)

	ln, err := Listen(cfg)
	require.NoError(t, err)
	defer ln.Close()

	accepted := acceptAsync(context.Background(), ln)
	client, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	srv := <-accepted
	require.NotNil(t, srv)
	defer srv.Close()

	_, err = srv.Write([]byte("ok"))
	require.NoError(t, err)
	buf := make([]byte, 2)
	_, err = io.ReadFull(client, buf)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(buf))
}

func TestConn_DuplicateRefcount(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	c := NewConn(a, config.TransportLocal)
	dup, err := c.Duplicate()
	require.NoError(t, err)

	// Closing one handle leaves the stream usable through the other.
	require.NoError(t, c.Close())
	_, err = c.Write([]byte("x"))
	assert.ErrorIs(t, err, net.ErrClosed)

	go func() { dup.Write([]byte("y")) }()
	buf := make([]byte, 1)
	_, err = io.ReadFull(b, buf)
	require.NoError(t, err)
	assert.Equal(t, "y", string(buf))

	// Closing the last handle closes the stream.
	require.NoError(t, dup.Close())
	_, err = b.Read(buf)
	assert.ErrorIs(t, err, io.EOF)

	_, err = c.Duplicate()
	assert.ErrorIs(t, err, net.ErrClosed)
	assert.NoError(t, c.Close(), "double Close is a no-op")
}

func TestConn_RemoteAddrFallsBackToKind(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	c := NewConn(a, config.TransportLocal)
	// net.Pipe reports "pipe" as its address.
	assert.NotEmpty(t, c.RemoteAddr())
	assert.Equal(t, config.TransportLocal, c.Kind())
}

func TestPipeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`\\.\pipe\appctl`, `\\.\pipe\appctl`},
		{`\\.\PIPE\Mixed`, `\\.\PIPE\Mixed`},
		{"/tmp/appctl.sock", `\\.\pipe\appctl.sock`},
		{`C:\Users\me\AppData\Local\Temp\appctl.sock`, `\\.\pipe\appctl.sock`},
		{"plain", `\\.\pipe\plain`},
		{"/tmp/", `\\.\pipe\appctl.sock`},
		{"", `\\.\pipe\appctl.sock`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PipeName(tt.in))
		})
	}
}

func TestIsDisconnect(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"epipe", &net.OpError{Op: "write", Err: os.NewSyscallError("write", syscall.EPIPE)}, true},
		{"reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, true},
		{"pipe signature", errors.New("read: " + PipeDisconnectSignature), true},
		{"flattened broken pipe", errors.New("write unix @: broken pipe"), true},
		{"eof", io.EOF, false},
		{"other", errors.New("permission denied"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDisconnect(tt.err))
		})
	}
}

func TestIsDisconnectPanic(t *testing.T) {
	assert.True(t, IsDisconnectPanic(PipeDisconnectSignature))
	assert.True(t, IsDisconnectPanic("failed printing to stdout: "+PipeDisconnectSignature+" (os error 233)"))
	assert.True(t, IsDisconnectPanic(errors.New(PipeDisconnectSignature)))
	assert.False(t, IsDisconnectPanic("index out of range"))
	assert.False(t, IsDisconnectPanic(errors.New("nil map")))
	assert.False(t, IsDisconnectPanic(42))
	assert.False(t, IsDisconnectPanic(nil))
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(timeoutErr{}))
	assert.True(t, IsTransient(errors.New("accept: "+PipeDisconnectSignature)))
	assert.False(t, IsTransient(errors.New("listener exploded")))
	assert.False(t, IsTransient(ErrListenerClosed))
}

func TestBindError(t *testing.T) {
	inner := errors.New("boom")
	e := &BindError{Addr: "127.0.0.1:1", Err: inner}
	assert.Equal(t, "bind 127.0.0.1:1: boom", e.Error())
	assert.ErrorIs(t, e, inner)

	e.InUse = true
	assert.Contains(t, e.Error(), "address already in use")
}
