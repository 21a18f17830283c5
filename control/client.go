package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/zhubert/appctl/config"
	"github.com/zhubert/appctl/protocol"
	"github.com/zhubert/appctl/transport"
)

// Client is a connection to a control server. Requests are sent one at a time
// and each waits for its response line.
type Client struct {
	cfg    config.ServerConfig
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
	mu     sync.Mutex // Serializes Send
}

// Dial connects to the server described by cfg.
func Dial(ctx context.Context, cfg config.ServerConfig) (*Client, error) {
	conn, err := transport.Dial(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg, err)
	}
	return &Client{
		cfg:    cfg,
		conn:   conn,
		reader: protocol.NewReader(conn),
		writer: protocol.NewWriter(conn),
	}, nil
}

// DialLocal connects to a local-socket server. An empty path selects the
// default socket path.
func DialLocal(ctx context.Context, path string) (*Client, error) {
	return Dial(ctx, config.Local(path))
}

// DialTCP connects to a TCP server at host:port.
func DialTCP(ctx context.Context, host string, port int) (*Client, error) {
	return Dial(ctx, config.Network(host, port))
}

// Send issues one command and returns the server's response. A nil payload
// is sent as an empty object. The deadline of ctx, if any, bounds both the
// write and the read.
func (c *Client) Send(ctx context.Context, command string, payload any) (protocol.Response, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return protocol.Response{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	// Unblock a pending read when ctx is cancelled without a deadline.
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := c.writer.WriteRequest(protocol.Request{Command: command, Payload: raw}); err != nil {
		return protocol.Response{}, c.wrapErr("send request", ctx, err)
	}

	resp, err := c.reader.ReadResponse()
	if err != nil {
		return protocol.Response{}, c.wrapErr("read response", ctx, err)
	}
	return resp, nil
}

// SendRaw writes line verbatim (a newline is appended if missing) and returns
// the decoded response. It exists for exercising the server with malformed
// input.
func (c *Client) SendRaw(ctx context.Context, line []byte) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line[:len(line):len(line)], '\n')
	}
	if _, err := c.conn.Write(line); err != nil {
		return protocol.Response{}, c.wrapErr("send request", ctx, err)
	}
	resp, err := c.reader.ReadResponse()
	if err != nil {
		return protocol.Response{}, c.wrapErr("read response", ctx, err)
	}
	return resp, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) wrapErr(op string, ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s to %s: %w", op, c.cfg, ctxErr)
	}
	return fmt.Errorf("%s to %s: %w", op, c.cfg, err)
}

func marshalPayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		return raw, nil
	}
}
