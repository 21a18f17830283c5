package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/zhubert/appctl/config"
)

// deadlineListener is a net.Listener whose Accept can be bounded in time.
// *net.TCPListener and *net.UnixListener both satisfy it.
type deadlineListener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

// pollListener accepts with a short deadline and retries until ctx is done.
type pollListener struct {
	ln       deadlineListener
	kind     config.TransportKind
	interval time.Duration

	closeOnce sync.Once
	closeErr  error
}

func newPollListener(ln deadlineListener, kind config.TransportKind) *pollListener {
	return &pollListener{ln: ln, kind: kind, interval: PollInterval}
}

func (l *pollListener) Accept(ctx context.Context) (Conn, error) {
	for {
		if ctx.Err() != nil {
			return nil, ErrListenerClosed
		}
		if err := l.ln.SetDeadline(time.Now().Add(l.interval)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil, ErrListenerClosed
			}
			return nil, err
		}
		c, err := l.ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil, ErrListenerClosed
			}
			return nil, err
		}
		if ctx.Err() != nil {
			c.Close()
			return nil, ErrListenerClosed
		}
		return newStream(c, l.kind), nil
	}
}

func (l *pollListener) Close() error {
	l.closeOnce.Do(func() { l.closeErr = l.ln.Close() })
	return l.closeErr
}

func (l *pollListener) Addr() net.Addr             { return l.ln.Addr() }
func (l *pollListener) Kind() config.TransportKind { return l.kind }

// blockingListener wraps a listener without deadline support. Close is the
// only way to interrupt a pending Accept.
type blockingListener struct {
	ln   net.Listener
	kind config.TransportKind

	closeOnce sync.Once
	closeErr  error
}

func newBlockingListener(ln net.Listener, kind config.TransportKind) *blockingListener {
	return &blockingListener{ln: ln, kind: kind}
}

func (l *blockingListener) Accept(ctx context.Context) (Conn, error) {
	if ctx.Err() != nil {
		return nil, ErrListenerClosed
	}
	c, err := l.ln.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
			return nil, ErrListenerClosed
		}
		return nil, err
	}
	if ctx.Err() != nil {
		c.Close()
		return nil, ErrListenerClosed
	}
	return newStream(c, l.kind), nil
}

func (l *blockingListener) Close() error {
	l.closeOnce.Do(func() { l.closeErr = l.ln.Close() })
	return l.closeErr
}

func (l *blockingListener) Addr() net.Addr             { return l.ln.Addr() }
func (l *blockingListener) Kind() config.TransportKind { return l.kind }
