// Package commands provides a name-to-function CommandHandler with a few
// built-in commands every server answers.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/zhubert/appctl/protocol"
)

// ErrUnknownCommand is returned by HandleCommand for unregistered names.
var ErrUnknownCommand = errors.New("Unknown command")

// Func runs one command. The returned value is marshalled as the response
// data; a nil value is sent as JSON null.
type Func func(ctx context.Context, payload json.RawMessage) (any, error)

// Info describes one registered command, as listed by list_commands.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type entry struct {
	description string
	fn          Func
}

// Registry maps command names to functions. It is safe for concurrent use,
// including registering while serving.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]entry
}

// NewRegistry returns a registry holding the built-in commands.
func NewRegistry() *Registry {
	r := &Registry{commands: make(map[string]entry)}
	r.mustRegister("ping", "Check that the server is responding", ping)
	r.mustRegister("echo", "Return the payload unchanged", echo)
	r.mustRegister("list_commands", "List registered commands with their descriptions", r.listCommands)
	return r
}

// Register adds a command. It fails if name is empty or already taken.
func (r *Registry) Register(name, description string, fn Func) error {
	if name == "" {
		return errors.New("command name is required")
	}
	if fn == nil {
		return fmt.Errorf("command %s: nil function", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command %s already registered", name)
	}
	r.commands[name] = entry{description: description, fn: fn}
	return nil
}

func (r *Registry) mustRegister(name, description string, fn Func) {
	if err := r.Register(name, description, fn); err != nil {
		panic(err)
	}
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Description returns the help text for name.
func (r *Registry) Description(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.commands[name]
	return e.description, ok
}

// List returns every registered command, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.commands))
	for name, e := range r.commands {
		infos = append(infos, Info{Name: name, Description: e.description})
	}
	slices.SortFunc(infos, func(a, b Info) int { return strings.Compare(a.Name, b.Name) })
	return infos
}

// HandleCommand looks up command and runs it. Unknown names and failing
// commands are reported as errors, which the server turns into failure
// responses.
func (r *Registry) HandleCommand(ctx context.Context, command string, payload json.RawMessage) (protocol.Response, error) {
	r.mu.RLock()
	e, ok := r.commands[command]
	r.mu.RUnlock()

	if !ok {
		return protocol.Response{}, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}

	data, err := e.fn(ctx, payload)
	if err != nil {
		return protocol.Response{}, err
	}
	if raw, ok := data.(json.RawMessage); ok {
		return protocol.Response{Success: true, Data: raw}.Normalize(), nil
	}
	return protocol.OK(data)
}

func ping(context.Context, json.RawMessage) (any, error) {
	return map[string]bool{"pong": true}, nil
}

func echo(_ context.Context, payload json.RawMessage) (any, error) {
	return payload, nil
}

func (r *Registry) listCommands(context.Context, json.RawMessage) (any, error) {
	return r.List(), nil
}
