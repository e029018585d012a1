package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cyberguard/guardian/pkg/app/metrics"
	appPlatform "github.com/cyberguard/guardian/pkg/app/platform"
	"github.com/cyberguard/guardian/pkg/infra/broadcast"
)

// PlatformLister exposes the connected-platform view of the manager.
type PlatformLister interface {
	ListConnected() []appPlatform.Status
}

type healthHandler struct {
	tracker *metrics.Tracker
	hub     *broadcast.Hub
	manager PlatformLister
	started time.Time
}

func NewHealthHandler(tracker *metrics.Tracker, hub *broadcast.Hub, manager PlatformLister) Handler {
	return &healthHandler{
		tracker: tracker,
		hub:     hub,
		manager: manager,
		started: time.Now(),
	}
}

func (h *healthHandler) Handle(c *fiber.Ctx) error {
	snapshot := h.tracker.Snapshot()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":              "healthy",
		"uptime_seconds":      int64(time.Since(h.started).Seconds()),
		"connected_platforms": h.manager.ListConnected(),
		"websocket_clients":   h.hub.Count(),
		"total_scanned":       snapshot.TotalScanned,
	})
}
