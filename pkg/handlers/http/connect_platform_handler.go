package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	appPlatform "github.com/cyberguard/guardian/pkg/app/platform"
)

type connectPlatformRequest struct {
	Credentials map[string]interface{} `json:"credentials"`
}

type connectPlatformHandler struct {
	logger  *logrus.Logger
	manager *appPlatform.Manager
}

func NewConnectPlatformHandler(logger *logrus.Logger, manager *appPlatform.Manager) Handler {
	return &connectPlatformHandler{
		logger:  logger,
		manager: manager,
	}
}

func (h *connectPlatformHandler) Handle(c *fiber.Ctx) error {
	name := c.Params("platform")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "platform is required"})
	}

	var req connectPlatformRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.manager.Connect(c.Context(), name, req.Credentials); err != nil {
		h.logger.WithError(err).WithField("platform", name).Error("failed to connect platform")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"platform": name,
		"status":   "connected",
	})
}
