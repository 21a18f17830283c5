package commands

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Ping(t *testing.T) {
	r := NewRegistry()

	resp, err := r.HandleCommand(context.Background(), "ping", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"pong":true}`, string(resp.Data))
	assert.Empty(t, resp.Error)
}

func TestRegistry_Echo(t *testing.T) {
	r := NewRegistry()

	for _, payload := range []string{`{"a":[1,2,3]}`, `"text"`, `null`, `42`} {
		resp, err := r.HandleCommand(context.Background(), "echo", json.RawMessage(payload))
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, payload, string(resp.Data))
	}
}

func TestRegistry_ListCommands(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("window_list", "", func(context.Context, json.RawMessage) (any, error) {
		return nil, nil
	}))

	resp, err := r.HandleCommand(context.Background(), "list_commands", json.RawMessage(`{}`))
	require.NoError(t, err)

	var infos []Info
	require.NoError(t, json.Unmarshal(resp.Data, &infos))
	require.Len(t, infos, 4)

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	assert.Equal(t, []string{"echo", "list_commands", "ping", "window_list"}, names)
	assert.Equal(t, "Check that the server is responding", infos[2].Description)
	assert.Empty(t, infos[3].Description)
	assert.NotContains(t, string(resp.Data), `"description":""`)
}

func TestRegistry_UnknownCommand(t *testing.T) {
	r := NewRegistry()

	_, err := r.HandleCommand(context.Background(), "nope", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Equal(t, "Unknown command: nope", err.Error())
}

func TestRegistry_CommandError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("window not found")
	require.NoError(t, r.Register("focus", "Focus a window", func(context.Context, json.RawMessage) (any, error) {
		return nil, boom
	}))

	_, err := r.HandleCommand(context.Background(), "focus", json.RawMessage(`{"id":1}`))
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_NilResultIsNull(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("noop", "", func(context.Context, json.RawMessage) (any, error) {
		return nil, nil
	}))

	resp, err := r.HandleCommand(context.Background(), "noop", nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "null", string(resp.Data))
}

func TestRegistry_PayloadIsPassedThrough(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("add", "", func(_ context.Context, payload json.RawMessage) (any, error) {
		var args struct{ A, B int }
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		return map[string]int{"sum": args.A + args.B}, nil
	}))

	resp, err := r.HandleCommand(context.Background(), "add", json.RawMessage(`{"a":2,"b":3}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":5}`, string(resp.Data))
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := NewRegistry()
	fn := func(context.Context, json.RawMessage) (any, error) { return nil, nil }

	assert.Error(t, r.Register("", "", fn))
	assert.Error(t, r.Register("x", "", nil))
	assert.ErrorContains(t, r.Register("ping", "", fn), "already registered")

	desc, ok := r.Description("ping")
	assert.True(t, ok)
	assert.NotEmpty(t, desc)
	_, ok = r.Description("missing")
	assert.False(t, ok)
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := r.HandleCommand(context.Background(), "ping", nil)
			assert.NoError(t, err)
		}()
		go func(i int) {
			defer wg.Done()
			r.Register(string(rune('a'+i)), "", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
		}(i)
	}
	wg.Wait()
	assert.Len(t, r.Names(), 23)
}
