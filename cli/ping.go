package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPingCommand(opts *options) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that a server is running and responding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			resp, err := opts.roundTrip(cmd, timeout, "ping", nil)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return opts.printResponse(cmd, resp)
			}
			if !resp.Success {
				return errors.New(resp.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pong (%s)\n", time.Since(start).Round(time.Microsecond))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for the response")
	return cmd
}
