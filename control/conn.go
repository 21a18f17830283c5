package control

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/zhubert/appctl/protocol"
	"github.com/zhubert/appctl/transport"
)

// serveConn owns conn until the client goes away. Reads and writes go through
// separate handles so each direction has a single owner.
func (s *Server) serveConn(ctx context.Context, conn transport.Conn) {
	connID := uuid.NewString()
	log := s.connLog(connID).With("transport", conn.Kind(), "remote", conn.RemoteAddr())
	defer recoverDisconnect(log)

	if s.trace {
		conn = transport.Trace(conn, log)
	}
	defer conn.Close()

	out, err := conn.Duplicate()
	if err != nil {
		log.Error("failed to duplicate connection", "error", err)
		return
	}
	defer out.Close()

	s.active.Add(1)
	defer s.active.Add(-1)
	log.Info("connection accepted")

	err = s.serveRequests(ctx, log, protocol.NewReader(conn), protocol.NewWriter(out))
	switch {
	case err == nil:
		log.Info("connection closed")
	case transport.IsDisconnect(err):
		log.Info("peer disconnected", "error", err)
	default:
		log.Error("connection failed", "error", err)
	}
}

// serveRequests runs the read, dispatch, write loop. It returns nil on a
// clean EOF and the I/O error otherwise.
func (s *Server) serveRequests(ctx context.Context, log *slog.Logger, r *protocol.Reader, w *protocol.Writer) error {
	for {
		req, err := r.ReadRequest()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			var de *protocol.DecodeError
			if !errors.As(err, &de) {
				return err
			}
			log.Warn("invalid request", "error", de.Err)
			if err := w.WriteResponse(protocol.Failure(de.Error())); err != nil {
				return err
			}
			continue
		}

		resp := s.dispatch(ctx, log, req)
		if err := w.WriteResponse(resp); err != nil {
			return err
		}
	}
}

// dispatch calls the handler and turns its error, or an unencodable result,
// into a failure response.
func (s *Server) dispatch(ctx context.Context, log *slog.Logger, req protocol.Request) protocol.Response {
	log.Debug("dispatching command", "command", req.Command)

	resp, err := s.handler.HandleCommand(ctx, req.Command, req.Payload)
	if err != nil {
		log.Info("command failed", "command", req.Command, "error", err)
		return protocol.Failure(err.Error())
	}
	if resp.Success && len(resp.Data) > 0 && !json.Valid(resp.Data) {
		log.Error("handler returned invalid JSON data", "command", req.Command)
		return protocol.Failuref("command %s returned invalid data", req.Command)
	}
	return resp
}
