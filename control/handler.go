package control

import (
	"context"
	"encoding/json"

	"github.com/zhubert/appctl/protocol"
)

// CommandHandler executes one command. It may take arbitrary time; only the
// calling connection waits on it. A returned error is sent to the client as
// a failure response carrying err.Error().
type CommandHandler interface {
	HandleCommand(ctx context.Context, command string, payload json.RawMessage) (protocol.Response, error)
}

// HandlerFunc adapts a function to CommandHandler.
type HandlerFunc func(ctx context.Context, command string, payload json.RawMessage) (protocol.Response, error)

func (f HandlerFunc) HandleCommand(ctx context.Context, command string, payload json.RawMessage) (protocol.Response, error) {
	return f(ctx, command, payload)
}

// unknownCommands is used when a Server is built without a handler.
var unknownCommands = HandlerFunc(func(_ context.Context, command string, _ json.RawMessage) (protocol.Response, error) {
	return protocol.Failuref("Unknown command: %s", command), nil
})
