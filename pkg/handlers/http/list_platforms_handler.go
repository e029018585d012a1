package http

import (
	"github.com/gofiber/fiber/v2"

	appPlatform "github.com/cyberguard/guardian/pkg/app/platform"
)

type listPlatformsHandler struct {
	manager *appPlatform.Manager
}

func NewListPlatformsHandler(manager *appPlatform.Manager) Handler {
	return &listPlatformsHandler{manager: manager}
}

func (h *listPlatformsHandler) Handle(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"platforms": h.manager.ListConnected(),
	})
}
