// Package protocol implements the line-delimited JSON wire format spoken on the
// control socket.
//
// Every message is a single UTF-8 JSON object followed by '\n':
//
//	client → server  {"command":"ping","payload":{}}
//	server → client  {"success":true,"data":{"pong":true}}
//	server → client  {"success":false,"error":"Unknown command: foo"}
//
// Field names are lower camel case. Exactly one of data/error is present on a
// response and success agrees with which one it is.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Request is one command sent by a client. Payload is opaque to the server and
// interpreted by the command handler.
type Request struct {
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// Response is the single reply written for each Request.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// defaultFailure is used when a handler reports failure without a message.
const defaultFailure = "command failed"

// OK builds a successful response carrying data. A nil data value is encoded as
// JSON null so the data field is still present on the wire.
func OK(data any) (Response, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Response{}, fmt.Errorf("marshal response data: %w", err)
	}
	return Response{Success: true, Data: raw}, nil
}

// Failure builds an error response.
func Failure(msg string) Response {
	return Response{Success: false, Error: msg}.Normalize()
}

// Failuref builds an error response from a format string.
func Failuref(format string, args ...any) Response {
	return Failure(fmt.Sprintf(format, args...))
}

// Normalize enforces success ⇔ data present ⇔ error absent.
func (r Response) Normalize() Response {
	if r.Success {
		r.Error = ""
		if len(r.Data) == 0 {
			r.Data = json.RawMessage("null")
		}
		return r
	}
	r.Data = nil
	if r.Error == "" {
		r.Error = defaultFailure
	}
	return r
}

// DecodeError reports a request line that could not be decoded. Its message is
// what the client sees in the error field.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "Invalid request format: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// wireRequest distinguishes absent fields from zero values.
type wireRequest struct {
	Command *string         `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeRequest parses one request line. Both fields are required; payload may
// be any JSON value including null.
func DecodeRequest(line []byte) (Request, error) {
	var w wireRequest
	if err := json.Unmarshal(line, &w); err != nil {
		return Request{}, &DecodeError{Err: err}
	}
	if w.Command == nil {
		return Request{}, &DecodeError{Err: errors.New("missing field `command`")}
	}
	if w.Payload == nil {
		return Request{}, &DecodeError{Err: errors.New("missing field `payload`")}
	}
	return Request{Command: *w.Command, Payload: w.Payload}, nil
}

// DecodeResponse parses one response line (client side).
func DecodeResponse(line []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// EncodeResponse serializes resp as one newline-terminated line.
func EncodeResponse(resp Response) ([]byte, error) {
	return encodeLine(resp.Normalize())
}

// EncodeRequest serializes req as one newline-terminated line. A nil payload
// is sent as an empty object.
func EncodeRequest(req Request) ([]byte, error) {
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage("{}")
	}
	return encodeLine(req)
}

func encodeLine(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
