package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/zhubert/appctl/commands"
	"github.com/zhubert/appctl/config"
	"github.com/zhubert/appctl/control"
	"github.com/zhubert/appctl/logger"
)

type serveOptions struct {
	maxConnections  int
	logFile         string
	trace           bool
	shutdownTimeout time.Duration
	quiet           bool
}

func newServeCommand(opts *options) *cobra.Command {
	so := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			so.apply(cmd, cfg)
			fp, err := opts.configFile()
			if err != nil {
				return err
			}
			return runServe(cmd, cfg, fp, so, flagMerger(cmd, opts, so))
		},
	}

	so.bindFlags(cmd.Flags())
	return cmd
}

func (so *serveOptions) bindFlags(f *pflag.FlagSet) {
	f.IntVar(&so.maxConnections, "max-connections", 0, "Maximum concurrent clients")
	f.StringVar(&so.logFile, "log-file", "", "Log file path (default: state directory)")
	f.BoolVar(&so.trace, "trace", false, "Log every byte read and written (implies --debug)")
	f.DurationVar(&so.shutdownTimeout, "shutdown-timeout", 0, "How long to wait for clients after a signal")
	f.BoolVar(&so.quiet, "quiet", false, "Do not mirror logs to stderr")
}

// flagMerger returns a function that layers the command line over a freshly
// loaded file, the same way the initial config was built.
func flagMerger(cmd *cobra.Command, opts *options, so *serveOptions) func(*config.FileConfig) {
	return func(cfg *config.FileConfig) {
		opts.applyFlags(cmd, cfg)
		so.apply(cmd, cfg)
	}
}

func (so *serveOptions) apply(cmd *cobra.Command, cfg *config.FileConfig) {
	f := cmd.Flags()
	if f.Changed("max-connections") {
		cfg.MaxConnections = so.maxConnections
	}
	if f.Changed("log-file") {
		cfg.LogFile = so.logFile
	}
	if f.Changed("shutdown-timeout") {
		cfg.ShutdownTimeout = &config.Duration{Duration: so.shutdownTimeout}
	}
	if so.trace {
		cfg.Debug = true
	}
}

func runServe(cmd *cobra.Command, cfg *config.FileConfig, configFile string, so *serveOptions, merge func(*config.FileConfig)) error {
	logOpts := logger.Options{
		Path:   cfg.LogFile,
		Format: logger.Format(cfg.LogFormat),
		Debug:  cfg.Debug,
	}
	if !so.quiet {
		logOpts.Mirror = cmd.ErrOrStderr()
	}
	if err := logger.Setup(logOpts); err != nil {
		return err
	}
	defer logger.Close()

	log := logger.WithComponent("serve")

	srv := control.New(cfg.ServerConfig(), commands.NewRegistry(),
		control.WithMaxConnections(cfg.MaxConnections),
		control.WithTrace(so.trace),
	)
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "appctl listening on %s\n", describe(srv))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.Watch(ctx, configFile, reloader(log, cfg, merge)); err != nil {
		log.Debug("config reload disabled", "path", configFile, "error", err)
	}
	<-ctx.Done()

	log.Info("shutting down", "active", srv.ActiveConnections())
	srv.Stop()

	waitCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown())
	defer cancel()
	if err := srv.Wait(waitCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("clients still connected after shutdown timeout", "active", srv.ActiveConnections(), "timeout", cfg.Shutdown())
			return nil
		}
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// reloader applies the settings that can change without a restart and warns
// about the ones that cannot. merge layers the command-line overrides onto
// each reloaded file.
func reloader(log *slog.Logger, running *config.FileConfig, merge func(*config.FileConfig)) func(*config.FileConfig, error) {
	return func(next *config.FileConfig, err error) {
		if err == nil {
			merge(next)
			err = next.Validate()
		}
		if err != nil {
			log.Warn("ignoring config change", "error", err)
			return
		}
		logger.SetDebug(next.Debug)
		log.Info("config reloaded", "debug", logger.DebugEnabled())

		if next.ServerConfig() != running.ServerConfig() {
			log.Warn("listener settings changed; restart required",
				"running", running.ServerConfig().String(), "configured", next.ServerConfig().String())
		}
	}
}

func describe(srv *control.Server) string {
	if port := srv.TCPPort(); port != 0 {
		return fmt.Sprintf("tcp %s", srv.Addr())
	}
	return fmt.Sprintf("local %s", srv.Config().Address())
}
