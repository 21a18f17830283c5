package transport

import (
	"net"
	"sync/atomic"

	"github.com/zhubert/appctl/config"
)

// sharedConn is the underlying stream behind every duplicated handle.
type sharedConn struct {
	conn net.Conn
	refs atomic.Int32
}

// stream is one handle on a sharedConn. net.Conn already permits one reader
// and one writer concurrently, so handles share it rather than dup'ing the
// file descriptor.
type stream struct {
	shared *sharedConn
	kind   config.TransportKind
	closed atomic.Bool
}

// NewConn wraps an established net.Conn as a Conn, for connections made
// outside Listen such as one end of a net.Pipe.
func NewConn(c net.Conn, kind config.TransportKind) Conn {
	return newStream(c, kind)
}

func newStream(c net.Conn, kind config.TransportKind) *stream {
	sc := &sharedConn{conn: c}
	sc.refs.Store(1)
	return &stream{shared: sc, kind: kind}
}

func (s *stream) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, net.ErrClosed
	}
	return s.shared.conn.Read(p)
}

func (s *stream) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, net.ErrClosed
	}
	return s.shared.conn.Write(p)
}

func (s *stream) Duplicate() (Conn, error) {
	if s.closed.Load() {
		return nil, net.ErrClosed
	}
	s.shared.refs.Add(1)
	return &stream{shared: s.shared, kind: s.kind}, nil
}

// Close releases this handle and closes the stream when it was the last one.
func (s *stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.shared.refs.Add(-1) == 0 {
		return s.shared.conn.Close()
	}
	return nil
}

func (s *stream) Kind() config.TransportKind { return s.kind }

func (s *stream) RemoteAddr() string {
	if addr := s.shared.conn.RemoteAddr(); addr != nil && addr.String() != "" {
		return addr.String()
	}
	return string(s.kind)
}
