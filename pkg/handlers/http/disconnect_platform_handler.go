package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	appPlatform "github.com/cyberguard/guardian/pkg/app/platform"
)

type disconnectPlatformHandler struct {
	logger  *logrus.Logger
	manager *appPlatform.Manager
}

func NewDisconnectPlatformHandler(logger *logrus.Logger, manager *appPlatform.Manager) Handler {
	return &disconnectPlatformHandler{
		logger:  logger,
		manager: manager,
	}
}

func (h *disconnectPlatformHandler) Handle(c *fiber.Ctx) error {
	name := c.Params("platform")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "platform is required"})
	}

	h.manager.Disconnect(c.Context(), name)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"platform": name,
		"status":   "disconnected",
	})
}
