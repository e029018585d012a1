package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cyberguard/guardian/pkg/app/metrics"
)

type statsHandler struct {
	tracker *metrics.Tracker
}

func NewStatsHandler(tracker *metrics.Tracker) Handler {
	return &statsHandler{tracker: tracker}
}

func (h *statsHandler) Handle(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.tracker.Snapshot())
}
