package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/omkar861856/agentic-honeypot32/internal/app"
	"github.com/omkar861856/agentic-honeypot32/internal/config"
	"github.com/omkar861856/agentic-honeypot32/internal/logging"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// ---- Clients and handler ----
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to wire honeypot", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	lambda.Start(a.Handler.Handle)
}
