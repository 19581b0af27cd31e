package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/token-lend/token_lend/internal/account"
	"github.com/token-lend/token_lend/internal/config"
	"github.com/token-lend/token_lend/internal/did"
	"github.com/token-lend/token_lend/internal/escrow"
	"github.com/token-lend/token_lend/internal/ledger"
	"github.com/token-lend/token_lend/internal/metrics"
	"github.com/token-lend/token_lend/internal/middleware"
	"github.com/token-lend/token_lend/internal/notification"
	"github.com/token-lend/token_lend/internal/trustline"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// Setup configures middlewares and all application routes. It returns the
// escrow engine so callers can inspect or reset ledger state.
func Setup(app *fiber.App, d Deps) (*escrow.Service, error) {
	if d.Cache == nil && d.Cfg.IsProduction() {
		return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	deriver, err := account.NewDeriver(d.Cfg.AccountDerivation)
	if err != nil {
		return nil, err
	}
	engine, err := escrow.NewService(ledger.NewInMemory(), deriver, escrow.Options{
		IssuerAddress:      d.Cfg.IssuerAddress,
		EmptyBalancePolicy: d.Cfg.EmptyBalancePolicy,
		EnforceFinishAfter: d.Cfg.EnforceFinishAfter,
		Notifier:           notification.NewLoggerNotifier(d.Logger),
		Metrics:            d.Metrics,
	})
	if err != nil {
		return nil, err
	}
	dids := did.NewService(did.NewMemoryRepository(), deriver)
	trustlines := trustline.NewService(trustline.NewMemoryRepository(), deriver)

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in the form: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Ops
	RegisterHealthRoutes(app, d)
	if d.Cfg.MetricsEnabled && d.Metrics != nil {
		RegisterMetricsRoute(app, d.Metrics)
	}

	api := app.Group(d.Cfg.BasePath)
	api.Use(middleware.WriteRateLimit(d.Cache, d.Cfg.RateLimitPerMinute, d.Logger))
	if d.Cache != nil {
		api.Use(middleware.Idempotency(d.Cache, middleware.IdempotencyConfig{
			TTL:      d.Cfg.IdempotencyTTL,
			Required: d.Cfg.IdempotencyRequired,
		}, d.Logger))
	}
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterLedgerRoutes(api, escrow.NewHandler(engine))
	RegisterDIDRoutes(api, did.NewHandler(dids))
	RegisterTrustlineRoutes(api, trustline.NewHandler(trustlines))

	return engine, nil
}
