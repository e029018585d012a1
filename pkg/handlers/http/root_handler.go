package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cyberguard/guardian/pkg/version"
)

type rootHandler struct{}

func NewRootHandler() Handler {
	return &rootHandler{}
}

func (h *rootHandler) Handle(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"service": "guardian",
		"message": "multi-platform content moderation pipeline",
		"version": version.Version,
	})
}
