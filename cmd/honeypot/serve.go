package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omkar861856/agentic-honeypot32/internal/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the honeypot API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, cleanup, err := bootstrap(ctx, root)
			if err != nil {
				return err
			}
			defer cleanup()

			srv, err := server.New(server.Config{
				Handler:  a.Handler,
				Handbook: a.Handbook,
				Registry: a.Registry,
				Logger:   a.Logger.Named("server"),
			})
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.Config.HTTPAddr
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Listen(addr) }()
			a.Logger.Info("listening", zap.String("addr", addr))

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			a.Logger.Info("shutting down")
			return srv.ShutdownWithTimeout(10 * time.Second)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to HTTP_ADDR)")
	return cmd
}
