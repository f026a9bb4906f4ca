// Package server exposes the honeypot over plain HTTP for deployments that
// do not sit behind API Gateway.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/aws/aws-lambda-go/events"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/omkar861856/agentic-honeypot32/internal/handbook"
)

// EventHandler is the API Gateway handler the HTTP routes delegate to.
type EventHandler interface {
	Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)
}

type Config struct {
	Handler  EventHandler
	Handbook *handbook.Handbook
	Registry *prometheus.Registry
	Logger   *zap.Logger
	// RequestTimeout bounds reads and writes on each connection.
	RequestTimeout time.Duration
}

// New builds the fiber app with every route registered.
func New(cfg Config) (*fiber.App, error) {
	if cfg.Handler == nil {
		return nil, errors.New("server: handler must not be nil")
	}
	if cfg.Handbook == nil {
		return nil, errors.New("server: handbook must not be nil")
	}
	if cfg.Registry == nil {
		return nil, errors.New("server: registry must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	app := fiber.New(fiber.Config{
		AppName:               "honeypot",
		ReadTimeout:           cfg.RequestTimeout,
		WriteTimeout:          cfg.RequestTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(cfg.Logger),
	})
	app.Use(recover.New())

	prom := fiberprometheus.NewWithRegistry(cfg.Registry, "honeypot", "http", "", nil)
	app.Use(prom.Middleware)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := app.Group("/api")
	api.Post("/honeypot", proxy(cfg.Handler))

	hb := &handbookRoutes{handbook: cfg.Handbook}
	api.Get("/handbook", hb.list)
	api.Get("/handbook/:category", hb.get)

	return app, nil
}

// proxy turns a fiber request into an API Gateway event so the HTTP and
// Lambda deployments share one request path.
func proxy(h EventHandler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		headers := make(map[string]string)
		for k, v := range c.GetReqHeaders() {
			if len(v) > 0 {
				headers[k] = v[0]
			}
		}
		event := events.APIGatewayProxyRequest{
			HTTPMethod: c.Method(),
			Path:       c.Path(),
			Headers:    headers,
			Body:       string(c.Body()),
		}
		resp, err := h.Handle(c.UserContext(), event)
		if err != nil {
			return err
		}
		for k, v := range resp.Headers {
			c.Set(k, v)
		}
		return c.Status(resp.StatusCode).SendString(resp.Body)
	}
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{"status": "error", "error": err.Error()})
	}
}
