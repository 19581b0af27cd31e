package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/token-lend/token_lend/internal/metrics"
)

// RegisterMetricsRoute exposes the recorder's registry in Prometheus text format.
func RegisterMetricsRoute(app *fiber.App, rec *metrics.Recorder) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{})))
}
