package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bug-tracker/internal/observability"
)

// MetricsHandler exposes in-process counters as JSON.
type MetricsHandler struct {
	metrics *observability.Metrics
}

// NewMetricsHandler constructs handler.
func NewMetricsHandler(metrics *observability.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Get handles GET /metrics.
func (h *MetricsHandler) Get(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"message": "metrics snapshot",
		"metrics": h.metrics.Snapshot(),
	})
}
