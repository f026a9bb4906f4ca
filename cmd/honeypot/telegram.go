package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/omkar861856/agentic-honeypot32/internal/bot"
)

func newTelegramCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "telegram",
		Short: "Run the honeypot as a Telegram bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, cleanup, err := bootstrap(ctx, root)
			if err != nil {
				return err
			}
			defer cleanup()

			if a.Config.TelegramToken == "" {
				return errors.New("TELEGRAM_TOKEN is required for the telegram command")
			}
			api, err := bot.Dial(a.Config.TelegramToken)
			if err != nil {
				return err
			}
			b, err := bot.New(api, a.Service, a.Logger.Named("bot"))
			if err != nil {
				return err
			}
			a.Logger.Info("telegram bot started")
			return b.Run(ctx)
		},
	}
}
