package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/token-lend/token_lend/internal/apierror"
	"github.com/token-lend/token_lend/internal/config"
	"github.com/token-lend/token_lend/internal/escrow"
	"github.com/token-lend/token_lend/internal/metrics"
	"github.com/token-lend/token_lend/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app    *fiber.App
	cfg    config.Config
	engine *escrow.Service
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// cache may be nil outside production.
func New(cfg config.Config, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: apierror.Handler(logger),
	})

	var recorder *metrics.Recorder
	if cfg.MetricsEnabled {
		recorder = metrics.NewRecorder()
	}

	engine, err := routes.Setup(app, routes.Deps{Cfg: cfg, Cache: cache, Logger: logger, Metrics: recorder})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, engine: engine}, nil
}

// App exposes the underlying Fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Engine returns the escrow engine backing the ledger routes.
func (s *Server) Engine() *escrow.Service {
	return s.engine
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
