package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhubert/appctl/control"
	"github.com/zhubert/appctl/protocol"
)

const defaultRequestTimeout = 30 * time.Second

func newSendCommand(opts *options) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "send <command> [payload-json]",
		Short: "Send one command to a running server and print the result",
		Example: `  appctl send list_commands
  appctl send echo '{"hello":"world"}'
  appctl send --port 9000 ping`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload json.RawMessage
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("payload is not valid JSON: %s", args[1])
				}
				payload = json.RawMessage(args[1])
			}

			resp, err := opts.roundTrip(cmd, timeout, args[0], payload)
			if err != nil {
				return err
			}
			return opts.printResponse(cmd, resp)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultRequestTimeout, "How long to wait for the response")
	return cmd
}

// roundTrip connects to the configured server, sends one command and closes
// the connection.
func (o *options) roundTrip(cmd *cobra.Command, timeout time.Duration, command string, payload json.RawMessage) (protocol.Response, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return protocol.Response{}, err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client, err := control.Dial(ctx, cfg.ServerConfig())
	if err != nil {
		return protocol.Response{}, err
	}
	defer client.Close()

	return client.Send(ctx, command, payload)
}

func (o *options) printResponse(cmd *cobra.Command, resp protocol.Response) error {
	out := cmd.OutOrStdout()
	if o.jsonOutput {
		line, err := protocol.EncodeResponse(resp)
		if err != nil {
			return err
		}
		_, err = out.Write(line)
		if err != nil {
			return err
		}
		if !resp.Success {
			return errors.New(resp.Error)
		}
		return nil
	}

	if !resp.Success {
		return errors.New(resp.Error)
	}
	var v any
	if err := json.Unmarshal(resp.Data, &v); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(pretty))
	return nil
}
