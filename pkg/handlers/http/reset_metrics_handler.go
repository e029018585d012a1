package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/cyberguard/guardian/pkg/app/metrics"
)

type resetMetricsHandler struct {
	logger  *logrus.Logger
	tracker *metrics.Tracker
}

func NewResetMetricsHandler(logger *logrus.Logger, tracker *metrics.Tracker) Handler {
	return &resetMetricsHandler{
		logger:  logger,
		tracker: tracker,
	}
}

func (h *resetMetricsHandler) Handle(c *fiber.Ctx) error {
	h.tracker.Reset()
	h.logger.WithField("ip", c.IP()).Warn("Metrics reset requested")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "reset"})
}
