package http

import "github.com/gofiber/fiber/v2"

type Handler interface {
	Handle(ctx *fiber.Ctx) error
}

type HandlerTransport struct {
	// Service
	RootHandler         Handler
	HealthHandler       Handler
	StatsHandler        Handler
	ResetMetricsHandler Handler

	// Platforms
	ConnectPlatformHandler    Handler
	DisconnectPlatformHandler Handler
	ListPlatformsHandler      Handler
}
