// Package cli implements the appctl command line: serve runs the control
// server, send and ping talk to a running one.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/zhubert/appctl/config"
	"github.com/zhubert/appctl/paths"
)

// options holds the flags shared by every subcommand.
type options struct {
	configPath string
	jsonOutput bool
	debug      bool

	// Target selection, overriding appctl.yaml when set.
	transport string
	path      string
	host      string
	port      int
}

// NewRootCommand builds the appctl command tree.
func NewRootCommand(version, commit string) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "appctl",
		Short: "appctl exposes a running application to automation clients",
		Long: `appctl serves a line-delimited JSON command channel over a local socket
(a Unix domain socket, or a named pipe on Windows) or TCP.

Settings are read from appctl.yaml in the config directory and can be
overridden with flags.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.bindFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCommand(opts),
		newSendCommand(opts),
		newPingCommand(opts),
		newConfigCommand(opts),
	)
	return root
}

// Execute runs the command tree and exits non-zero on error.
func Execute(version, commit string) {
	if err := NewRootCommand(version, commit).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (o *options) bindFlags(f *pflag.FlagSet) {
	f.StringVar(&o.configPath, "config", "", "Path to appctl.yaml (default: config directory)")
	f.BoolVar(&o.jsonOutput, "json", false, "Print raw JSON responses")
	f.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	f.StringVar(&o.transport, "transport", "", "Transport to use: local or tcp")
	f.StringVar(&o.path, "path", "", "Local socket path or pipe name")
	f.StringVar(&o.host, "host", "", "TCP host")
	f.IntVar(&o.port, "port", 0, "TCP port")
}

// configFile returns the config file this invocation reads.
func (o *options) configFile() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return paths.ConfigFilePath()
}

// loadConfig reads appctl.yaml and applies the target flags the user set on
// cmd.
func (o *options) loadConfig(cmd *cobra.Command) (*config.FileConfig, error) {
	var (
		cfg *config.FileConfig
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFileFrom(o.configPath)
	} else {
		cfg, err = config.LoadFile()
	}
	if err != nil {
		return nil, err
	}

	o.applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides cfg with the target and debug flags set on cmd.
func (o *options) applyFlags(cmd *cobra.Command, cfg *config.FileConfig) {
	flags := cmd.Flags()
	if flags.Changed("transport") {
		cfg.Transport = config.TransportKind(o.transport)
	}
	if flags.Changed("path") {
		cfg.Path = o.path
		if !flags.Changed("transport") {
			cfg.Transport = config.TransportLocal
		}
	}
	if flags.Changed("host") {
		cfg.Host = o.host
	}
	if flags.Changed("port") {
		cfg.Port = o.port
		if !flags.Changed("transport") {
			cfg.Transport = config.TransportTCP
		}
	}
	if o.debug {
		cfg.Debug = true
	}
}
