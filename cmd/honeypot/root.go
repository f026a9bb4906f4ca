package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omkar861856/agentic-honeypot32/internal/app"
	"github.com/omkar861856/agentic-honeypot32/internal/config"
	"github.com/omkar861856/agentic-honeypot32/internal/logging"
)

type rootOptions struct {
	envFiles []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "honeypot",
		Short:        "Engage scam messages with a victim persona and collect intelligence",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load before the environment")

	cmd.AddCommand(
		newServeCmd(opts),
		newTelegramCmd(opts),
		newSimulateCmd(opts),
	)
	return cmd
}

// bootstrap loads configuration and wires the application. The returned
// cleanup must be called once the command is done.
func bootstrap(ctx context.Context, opts *rootOptions) (*app.App, func(), error) {
	cfg, err := config.Load(opts.envFiles...)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	cleanup := func() {
		if err := a.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return a, cleanup, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
