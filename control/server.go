package control

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/zhubert/appctl/config"
	"github.com/zhubert/appctl/logger"
	"github.com/zhubert/appctl/protocol"
	"github.com/zhubert/appctl/transport"
)

// DefaultMaxConnections is the admission cap used when none is configured.
const DefaultMaxConnections = config.DefaultMaxConnections

var (
	// ErrAlreadyRunning is returned by Start on a server that is running.
	ErrAlreadyRunning = errors.New("server already running")

	// ErrServerBusy is sent to clients that connect while the server is at
	// its connection limit.
	ErrServerBusy = errors.New("server busy: connection limit reached")
)

// Server accepts clients on one transport and dispatches their requests to a
// CommandHandler.
type Server struct {
	cfg      config.ServerConfig
	handler  CommandHandler
	log      *slog.Logger
	connLog  func(connID string) *slog.Logger
	maxConns int64
	trace    bool
	listen   func(config.ServerConfig) (transport.Listener, error)

	mu      sync.Mutex // Guards running and run
	running bool
	run     *runState

	active atomic.Int64
}

// runState is everything created by one successful Start.
type runState struct {
	ln     transport.Listener
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	wg     sync.WaitGroup // Accept loop plus one per connection
	done   chan struct{}  // Closed when wg drains
}

// Option configures a Server.
type Option func(*Server)

// WithLogger routes server and connection logs to log instead of the
// package logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
		s.connLog = func(connID string) *slog.Logger {
			return log.With("connID", connID)
		}
	}
}

// WithMaxConnections caps the number of concurrently served clients. Values
// below 1 select DefaultMaxConnections.
func WithMaxConnections(n int) Option {
	return func(s *Server) {
		if n < 1 {
			n = DefaultMaxConnections
		}
		s.maxConns = int64(n)
	}
}

// WithTrace logs raw bytes read and written on every connection at debug
// level.
func WithTrace(enabled bool) Option {
	return func(s *Server) {
		s.trace = enabled
	}
}

// New creates a stopped server. A nil handler answers every command with an
// unknown-command failure.
func New(cfg config.ServerConfig, handler CommandHandler, opts ...Option) *Server {
	if handler == nil {
		handler = unknownCommands
	}
	s := &Server{
		cfg:      cfg,
		handler:  handler,
		maxConns: DefaultMaxConnections,
		listen:   transport.Listen,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.WithComponent("control")
		s.connLog = func(connID string) *slog.Logger {
			return logger.WithConnection(connID).With("component", "control")
		}
	}
	return s
}

// Config returns the configuration the server was built with.
func (s *Server) Config() config.ServerConfig {
	return s.cfg
}

// Start binds the listener and launches the accept loop. It returns once the
// listener is bound; a bind failure is returned as *transport.BindError and
// leaves the server stopped.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	ln, err := s.listen(s.cfg)
	if err != nil {
		s.log.Error("failed to bind", "config", s.cfg.String(), "error", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs := &runState{
		ln:     ln,
		cancel: cancel,
		sem:    semaphore.NewWeighted(s.maxConns),
		done:   make(chan struct{}),
	}
	s.run = rs
	s.running = true

	s.log.Info("listening", "transport", ln.Kind(), "addr", ln.Addr().String(), "maxConnections", s.maxConns)

	// Add before launching to avoid racing the drain goroutine.
	rs.wg.Add(1)
	go s.acceptLoop(ctx, rs)
	go func() {
		rs.wg.Wait()
		close(rs.done)
	}()
	return nil
}

// Stop stops accepting new connections and returns immediately. Connections
// already accepted keep being served until their clients disconnect. Stop is
// safe to call repeatedly and before Start.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.shutdownLocked(s.run)
	s.log.Info("stopped accepting connections", "active", s.active.Load())
}

// shutdownLocked cancels the accept loop and closes the listener, so that
// new connection attempts are refused as soon as Stop returns.
func (s *Server) shutdownLocked(rs *runState) {
	rs.cancel()
	if err := rs.ln.Close(); err != nil {
		s.log.Debug("listener close", "error", err)
	}
}

// Wait blocks until the accept loop and every connection started by the most
// recent Start have finished, or ctx is done. It returns nil immediately if
// the server was never started.
func (s *Server) Wait(ctx context.Context) error {
	s.mu.Lock()
	rs := s.run
	s.mu.Unlock()

	if rs == nil {
		return nil
	}
	select {
	case <-rs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Addr returns the bound address, or nil when the server is stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	return s.run.ln.Addr()
}

// SocketPath returns the local socket path, or "" for TCP servers.
func (s *Server) SocketPath() string {
	return s.cfg.Path()
}

// TCPPort returns the bound TCP port, which differs from the configured one
// when port 0 was requested. It returns 0 for local servers and stopped
// servers.
func (s *Server) TCPPort() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// ActiveConnections returns the number of connections being served.
func (s *Server) ActiveConnections() int {
	return int(s.active.Load())
}

func (s *Server) acceptLoop(ctx context.Context, rs *runState) {
	defer rs.wg.Done()
	defer recoverDisconnect(s.log)

	// Handlers outlive Stop, so they get a context that is never cancelled
	// by it.
	handlerCtx := context.WithoutCancel(ctx)

	for {
		conn, err := rs.ln.Accept(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrListenerClosed) {
				s.log.Info("listener closed, stopping accept loop")
				return
			}
			if transport.IsTransient(err) {
				s.log.Warn("accept error (continuing)", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(transport.TransientBackoff):
				}
				continue
			}
			s.log.Error("accept failed, stopping accept loop", "error", err)
			s.acceptFailed(rs)
			return
		}

		if !rs.sem.TryAcquire(1) {
			rs.wg.Add(1)
			go s.reject(rs, conn)
			continue
		}

		rs.wg.Add(1)
		go func() {
			defer rs.wg.Done()
			defer rs.sem.Release(1)
			s.serveConn(handlerCtx, conn)
		}()
	}
}

// acceptFailed marks the server stopped after the listener broke, unless a
// Stop or a newer Start already replaced rs.
func (s *Server) acceptFailed(rs *runState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != rs || !s.running {
		return
	}
	s.running = false
	s.shutdownLocked(rs)
}

// reject answers a connection over the admission cap with a single failure
// line and closes it.
func (s *Server) reject(rs *runState, conn transport.Conn) {
	defer rs.wg.Done()
	defer recoverDisconnect(s.log)
	defer conn.Close()

	s.log.Warn("rejecting connection", "remote", conn.RemoteAddr(), "limit", s.maxConns)
	if err := protocol.NewWriter(conn).WriteResponse(protocol.Failure(ErrServerBusy.Error())); err != nil && !transport.IsDisconnect(err) {
		s.log.Debug("failed to write busy response", "error", err)
	}
}
