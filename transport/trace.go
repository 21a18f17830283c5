package transport

import "log/slog"

// tracedConn logs every chunk read from and written to the wrapped Conn at
// debug level.
type tracedConn struct {
	Conn
	log *slog.Logger
}

// Trace wraps c so that raw traffic is logged to log. Duplicates of the
// returned Conn are traced too.
func Trace(c Conn, log *slog.Logger) Conn {
	if _, ok := c.(*tracedConn); ok {
		return c
	}
	return &tracedConn{Conn: c, log: log}
}

func (c *tracedConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.log.Debug("read", "bytes", n, "data", string(p[:n]))
	}
	return n, err
}

func (c *tracedConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		c.log.Debug("write", "bytes", n, "data", string(p[:n]))
	}
	return n, err
}

func (c *tracedConn) Duplicate() (Conn, error) {
	d, err := c.Conn.Duplicate()
	if err != nil {
		return nil, err
	}
	return &tracedConn{Conn: d, log: c.log}, nil
}
