// Package app wires configuration into the honeypot service and its
// transports. Both binaries under cmd/ build through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/omkar861856/agentic-honeypot32/handler"
	"github.com/omkar861856/agentic-honeypot32/internal/classifier"
	"github.com/omkar861856/agentic-honeypot32/internal/config"
	"github.com/omkar861856/agentic-honeypot32/internal/handbook"
	"github.com/omkar861856/agentic-honeypot32/internal/integrations/gemini"
	"github.com/omkar861856/agentic-honeypot32/internal/integrations/mem0"
	"github.com/omkar861856/agentic-honeypot32/internal/integrations/openai"
	"github.com/omkar861856/agentic-honeypot32/internal/integrations/paramstore"
	"github.com/omkar861856/agentic-honeypot32/internal/integrations/redisstore"
	"github.com/omkar861856/agentic-honeypot32/internal/memory"
	"github.com/omkar861856/agentic-honeypot32/internal/metrics"
	"github.com/omkar861856/agentic-honeypot32/internal/persona"
	"github.com/omkar861856/agentic-honeypot32/internal/repository"
	"github.com/omkar861856/agentic-honeypot32/internal/usecase"
)

const memoryTTL = 30 * 24 * time.Hour

// App holds the wired components. Close releases any pooled connections.
type App struct {
	Config   *config.Config
	Service  *usecase.HoneypotService
	Handler  *handler.Handler
	Handbook *handbook.Handbook
	Registry *prometheus.Registry
	Logger   *zap.Logger

	closers []func() error
}

// Build constructs every component selected by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var (
		getter paramstore.Getter
		dynamo *awsdynamodb.Client
	)
	if cfg.NeedsAWS() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load aws config: %w", err)
		}
		if cfg.ParamPrefix != "" {
			ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
			if err != nil {
				return nil, err
			}
			getter = ps
		}
		if cfg.MemoryBackend == config.BackendDynamoDB {
			dynamo = awsdynamodb.NewFromConfig(awsCfg)
		}
	}

	cls, err := classifier.New(cfg.ClassifierMode)
	if err != nil {
		return nil, err
	}
	responder, err := newResponder(cfg, getter)
	if err != nil {
		return nil, err
	}
	store, err := a.newMemory(ctx, cfg, getter, dynamo)
	if err != nil {
		a.Close()
		return nil, err
	}
	personas, err := persona.Load()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Handbook, err = handbook.Load()
	if err != nil {
		a.Close()
		return nil, err
	}
	recorder, err := metrics.NewRecorder(a.Registry)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Service, err = usecase.NewHoneypotService(cls, responder, store, personas, usecase.Options{
		MaxMessageLength: cfg.MaxMessageLength,
		Logger:           logger.Named("usecase"),
		Observer:         recorder,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []handler.Option{
		handler.WithLogger(logger.Named("handler")),
		handler.WithTimeout(cfg.GenerationTimeout),
	}
	switch {
	case cfg.APIKey != "":
		opts = append(opts, handler.WithAPIKey(cfg.APIKey))
	case getter != nil:
		opts = append(opts, handler.WithAPIKeyParameter(getter, paramstore.Join(cfg.ParamPrefix, "api-key")))
	}
	a.Handler, err = handler.NewHandler(a.Service, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("honeypot wired",
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("memory_backend", cfg.MemoryBackend),
		zap.String("classifier", cfg.ClassifierMode),
	)
	return a, nil
}

func newResponder(cfg *config.Config, getter paramstore.Getter) (usecase.Responder, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		opts := []gemini.Option{gemini.WithModel(cfg.GeminiModel), gemini.WithTemperature(cfg.Temperature)}
		if cfg.GeminiAPIKey != "" {
			opts = append(opts, gemini.WithAPIKey(cfg.GeminiAPIKey))
		}
		return gemini.NewClient(getter, cfg.ParamPrefix, opts...)
	default:
		opts := []openai.Option{openai.WithModel(cfg.OpenAIModel), openai.WithTemperature(cfg.Temperature)}
		if cfg.OpenAIAPIKey != "" {
			opts = append(opts, openai.WithAPIKey(cfg.OpenAIAPIKey))
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		return openai.NewClient(getter, cfg.ParamPrefix, opts...)
	}
}

func (a *App) newMemory(ctx context.Context, cfg *config.Config, getter paramstore.Getter, dynamo *awsdynamodb.Client) (usecase.MemoryGateway, error) {
	switch cfg.MemoryBackend {
	case config.BackendDynamoDB:
		if dynamo == nil {
			return nil, errors.New("app: dynamodb backend selected without aws config")
		}
		return repository.New(dynamo, cfg.StateTable, cfg.MemorySearchLimit)
	case config.BackendMem0:
		var opts []mem0.Option
		if cfg.Mem0BaseURL != "" {
			opts = append(opts, mem0.WithBaseURL(cfg.Mem0BaseURL))
		}
		if cfg.Mem0APIKey != "" {
			opts = append(opts, mem0.WithAPIKey(cfg.Mem0APIKey))
		}
		return mem0.NewClient(getter, cfg.ParamPrefix, opts...)
	case config.BackendRedis:
		client, err := redisstore.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return redisstore.New(client, memoryTTL, cfg.MemorySearchLimit)
	default:
		return memory.New(cfg.MemorySearchLimit), nil
	}
}

// Close releases resources opened by Build. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
