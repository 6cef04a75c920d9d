package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is reported by /health.
const Version = "1.1.0"

// LogSource returns recent log lines. *logging.LogBuffer implements it.
type LogSource interface {
	Lines() []string
}

// Health handles GET /health.
func Health(backend string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": Version,
			"backend": backend,
		})
	}
}

// Logs handles GET /logs.
func Logs(src LogSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": src.Lines(),
		})
	}
}

// Metrics serves the Prometheus registry.
func Metrics(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
